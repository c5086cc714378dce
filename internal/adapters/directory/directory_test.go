package directory_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/talentboard/internal/adapters/directory"
	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var (
	ada   = model.MustParseIdentity("0x1111111111111111111111111111111111111111")
	grace = model.MustParseIdentity("0x2222222222222222222222222222222222222222")
	linus = model.MustParseIdentity("0x3333333333333333333333333333333333333333")
)

func put(ctx context.Context, s repository.Store, t model.Talent) {
	So(s.Update(ctx, func(tx repository.Tx) error {
		return tx.PutTalent(ctx, t)
	}), ShouldBeNil)
}

func talent(id model.Identity, name, career string, rating, projects uint64, verified bool, certs ...string) model.Talent {
	return model.Talent{
		Identity:            id,
		Profile:             model.Profile{Name: name, Career: career, Certifications: certs},
		IsVerified:          verified,
		Rating:              rating,
		ProjectCount:        projects,
		LastUpdateTimestamp: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestDirectory(t *testing.T) {
	Convey("Given a store with three talents", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		put(ctx, store, talent(ada, "Ada", "analyst", 5, 1, true, "CPA"))
		put(ctx, store, talent(grace, "Grace", "compiler engineer", 5, 3, false))
		put(ctx, store, talent(linus, "Linus", "kernel engineer", 2, 9, true, "cpa", "LPI"))

		dir := directory.New(store, directory.WithMaxLimit(2))

		Convey("It starts empty until rebuilt", func() {
			So(dir.Len(), ShouldEqual, 0)
			So(dir.Rebuild(ctx), ShouldBeNil)
			So(dir.Len(), ShouldEqual, 3)
		})

		Convey("When rebuilt", func() {
			So(dir.Rebuild(ctx), ShouldBeNil)

			Convey("Search orders by rating, project count, then identity", func() {
				items, total := dir.Search(directory.Query{Limit: 10})
				So(total, ShouldEqual, 3)
				So(items, ShouldHaveLength, 2)
				So(items[0].Identity, ShouldEqual, grace)
				So(items[1].Identity, ShouldEqual, ada)

				rest, _ := dir.Search(directory.Query{Offset: 2})
				So(rest, ShouldHaveLength, 1)
				So(rest[0].Identity, ShouldEqual, linus)
			})

			Convey("Filters combine", func() {
				items, total := dir.Search(directory.Query{Text: "ENGINEER"})
				So(total, ShouldEqual, 2)
				So(items[0].Identity, ShouldEqual, grace)

				items, total = dir.Search(directory.Query{Text: "lpi"})
				So(total, ShouldEqual, 1)
				So(items[0].Identity, ShouldEqual, linus)

				items, total = dir.Search(directory.Query{Certification: "CPA", VerifiedOnly: true})
				So(total, ShouldEqual, 2)
				So(items[0].Identity, ShouldEqual, ada)

				_, total = dir.Search(directory.Query{MinRating: 3, VerifiedOnly: true})
				So(total, ShouldEqual, 1)
			})

			Convey("An offset past the end yields an empty page", func() {
				items, total := dir.Search(directory.Query{Offset: 10})
				So(items, ShouldBeEmpty)
				So(total, ShouldEqual, 3)
			})

			Convey("Results do not alias the index", func() {
				got, ok := dir.Get(linus)
				So(ok, ShouldBeTrue)
				got.Certifications[0] = "mutated"
				again, _ := dir.Get(linus)
				So(again.Certifications[0], ShouldEqual, "cpa")
			})
		})

		Convey("When an event arrives for a changed talent", func() {
			So(dir.Rebuild(ctx), ShouldBeNil)
			updated := talent(ada, "Ada Lovelace", "mathematician", 5, 1, true)
			put(ctx, store, updated)

			err := dir.Apply(ctx, model.Event{Seq: 4, Kind: model.EventTalentUpdated, Caller: ada, Talent: ada})
			So(err, ShouldBeNil)

			Convey("The entry reflects the committed record", func() {
				got, ok := dir.Get(ada)
				So(ok, ShouldBeTrue)
				So(got.Name, ShouldEqual, "Ada Lovelace")
			})

			Convey("Replaying the event converges to the same state", func() {
				So(dir.Apply(ctx, model.Event{Seq: 4, Kind: model.EventTalentUpdated, Talent: ada}), ShouldBeNil)
				So(dir.Len(), ShouldEqual, 3)
			})
		})

		Convey("Events that touch no talent are ignored", func() {
			So(dir.Apply(ctx, model.Event{Seq: 1, Kind: model.EventProjectCreated, ProjectID: 1}), ShouldBeNil)
			So(dir.Len(), ShouldEqual, 0)
		})

		Convey("A talent missing from the store is dropped from the index", func() {
			So(dir.Rebuild(ctx), ShouldBeNil)
			ghost := model.MustParseIdentity("0x4444444444444444444444444444444444444444")
			So(dir.Apply(ctx, model.Event{Kind: model.EventTalentUpdated, Talent: ghost}), ShouldBeNil)
			_, ok := dir.Get(ghost)
			So(ok, ShouldBeFalse)
		})

		Convey("A closed store surfaces as an apply error", func() {
			So(store.Close(), ShouldBeNil)
			So(dir.Apply(ctx, model.Event{Kind: model.EventTalentVerified, Talent: ada}), ShouldNotBeNil)
			So(dir.Rebuild(ctx), ShouldNotBeNil)
		})
	})
}
