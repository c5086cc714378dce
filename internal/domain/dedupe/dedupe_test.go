package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/talentboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "k1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a retry with the same key is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And after Unrecord the key can be used again", func() {
				d.Unrecord(ctx, "k1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given keys scoped to callers", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When two callers reuse the same client key", func() {
			a := d.SeenAndRecord(ctx, dedupe.Key("0xA", "create-1"))
			b := d.SeenAndRecord(ctx, dedupe.Key("0xB", " create-1 "))

			Convey("Then neither collides with the other", func() {
				So(a, ShouldBeFalse)
				So(b, ShouldBeFalse)
				So(d.SeenAndRecord(ctx, dedupe.Key("0xB", "create-1")), ShouldBeTrue)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more keys than the bound are recorded", func() {
			for i := 1; i <= 4; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
			}

			Convey("Then the oldest key is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
			})
		})

		Convey("When an unrecorded key leaves room", func() {
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "c")
			d.Unrecord(ctx, "b")
			d.SeenAndRecord(ctx, "d")

			Convey("Then nothing else is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many keys are recorded", func() {
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
			}

			Convey("Then none are evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "k0"), ShouldBeTrue)
			})
		})
	})

	Convey("Given concurrent callers racing on one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var winners atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "shared") {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one of them records it", func() {
			So(winners.Load(), ShouldEqual, 1)
		})
	})
}
