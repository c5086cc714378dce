// Package storetest holds the behaviour every repository.Store must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Identities used by the suite.
var (
	Alice = model.MustParseIdentity("0x8ba1f109551bd432803012645ac136ddd64dba72")
	Bob   = model.MustParseIdentity("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	Carol = model.MustParseIdentity("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
)

var (
	epoch   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errStop = errors.New("stop")
)

// Run exercises newStore against the shared store contract. newStore must
// return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		store := newStore(t)
		Reset(func() { _ = store.Close() })

		Convey("Then reads return nothing", func() {
			err := store.View(ctx, func(r repository.Reader) error {
				_, err := r.Talent(ctx, Alice)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = r.Project(ctx, 1)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				n, err := r.ProjectCount(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				talents, err := r.Talents(ctx)
				So(err, ShouldBeNil)
				So(talents, ShouldBeEmpty)

				events, err := r.Events(ctx, 0, 0)
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)

				st, err := r.Stats(ctx)
				So(err, ShouldBeNil)
				So(st, ShouldResemble, repository.Stats{})
				return nil
			})
			So(err, ShouldBeNil)
		})

		Convey("When a transaction commits", func() {
			talent := sampleTalent(Alice, "John Doe")
			var allocated uint64
			err := store.Update(ctx, func(tx repository.Tx) error {
				if err := tx.PutTalent(ctx, talent); err != nil {
					return err
				}
				id, err := tx.NextProjectID(ctx)
				if err != nil {
					return err
				}
				allocated = id
				if err := tx.PutProject(ctx, sampleProject(id, Bob)); err != nil {
					return err
				}

				// reads inside the transaction see its staged writes
				got, err := tx.Talent(ctx, Alice)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "John Doe")
				n, _ := tx.ProjectCount(ctx)
				So(n, ShouldEqual, 1)

				e, err := tx.AppendEvent(ctx, model.Event{Kind: model.EventTalentRegistered, Caller: Alice, Talent: Alice, At: epoch})
				So(err, ShouldBeNil)
				So(e.Seq, ShouldEqual, 1)
				return nil
			})
			So(err, ShouldBeNil)
			So(allocated, ShouldEqual, 1)

			Convey("Then every write is visible", func() {
				err := store.View(ctx, func(r repository.Reader) error {
					got, err := r.Talent(ctx, Alice)
					So(err, ShouldBeNil)
					assertTalent(got, talent)

					p, err := r.Project(ctx, 1)
					So(err, ShouldBeNil)
					assertProject(p, sampleProject(1, Bob))

					events, err := r.Events(ctx, 0, 10)
					So(err, ShouldBeNil)
					So(len(events), ShouldEqual, 1)
					So(events[0].Kind, ShouldEqual, model.EventTalentRegistered)
					So(events[0].Talent, ShouldEqual, Alice)
					So(events[0].At.Equal(epoch), ShouldBeTrue)

					st, err := r.Stats(ctx)
					So(err, ShouldBeNil)
					So(st, ShouldResemble, repository.Stats{Talents: 1, Projects: 1, ActiveProjects: 1, Events: 1})
					return nil
				})
				So(err, ShouldBeNil)
			})

			Convey("Then returned records do not alias stored ones", func() {
				_ = store.View(ctx, func(r repository.Reader) error {
					got, _ := r.Talent(ctx, Alice)
					got.Certifications[0] = "mutated"
					p, _ := r.Project(ctx, 1)
					p.RequiredSkills[0] = "mutated"
					return nil
				})
				_ = store.View(ctx, func(r repository.Reader) error {
					got, _ := r.Talent(ctx, Alice)
					So(got.Certifications[0], ShouldEqual, "OSHA 30")
					p, _ := r.Project(ctx, 1)
					So(p.RequiredSkills[0], ShouldEqual, "framing")
					return nil
				})
			})

			Convey("Then an upsert keeps registration order and replaces fields", func() {
				So(store.Update(ctx, func(tx repository.Tx) error {
					if err := tx.PutTalent(ctx, sampleTalent(Bob, "Bob")); err != nil {
						return err
					}
					updated := talent
					updated.IsVerified = true
					updated.ProjectCount = 3
					return tx.PutTalent(ctx, updated)
				}), ShouldBeNil)

				_ = store.View(ctx, func(r repository.Reader) error {
					talents, err := r.Talents(ctx)
					So(err, ShouldBeNil)
					So(len(talents), ShouldEqual, 2)
					So(talents[0].Identity, ShouldEqual, Alice)
					So(talents[0].IsVerified, ShouldBeTrue)
					So(talents[0].ProjectCount, ShouldEqual, 3)
					So(talents[1].Identity, ShouldEqual, Bob)

					st, _ := r.Stats(ctx)
					So(st.Talents, ShouldEqual, 2)
					So(st.VerifiedTalents, ShouldEqual, 1)
					return nil
				})
			})

			Convey("Then a project transition is stored", func() {
				So(store.Update(ctx, func(tx repository.Tx) error {
					p, err := tx.Project(ctx, 1)
					if err != nil {
						return err
					}
					p.IsActive = false
					p.AssignedTalent = Alice
					return tx.PutProject(ctx, p)
				}), ShouldBeNil)

				_ = store.View(ctx, func(r repository.Reader) error {
					p, err := r.Project(ctx, 1)
					So(err, ShouldBeNil)
					So(p.State(), ShouldEqual, model.ProjectAssigned)
					So(p.AssignedTalent, ShouldEqual, Alice)
					st, _ := r.Stats(ctx)
					So(st.ActiveProjects, ShouldEqual, 0)
					return nil
				})
			})
		})

		Convey("When a transaction fails", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				if err := tx.PutTalent(ctx, sampleTalent(Alice, "John Doe")); err != nil {
					return err
				}
				id, err := tx.NextProjectID(ctx)
				if err != nil {
					return err
				}
				if err := tx.PutProject(ctx, sampleProject(id, Bob)); err != nil {
					return err
				}
				if _, err := tx.AppendEvent(ctx, model.Event{Kind: model.EventProjectCreated, Caller: Bob, ProjectID: id, At: epoch}); err != nil {
					return err
				}
				return errStop
			})

			Convey("Then the error is returned unchanged", func() {
				So(err, ShouldEqual, errStop)
			})

			Convey("Then nothing was written and no id or sequence was consumed", func() {
				_ = store.View(ctx, func(r repository.Reader) error {
					_, err := r.Talent(ctx, Alice)
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
					n, _ := r.ProjectCount(ctx)
					So(n, ShouldEqual, 0)
					events, _ := r.Events(ctx, 0, 0)
					So(events, ShouldBeEmpty)
					return nil
				})
				So(store.Update(ctx, func(tx repository.Tx) error {
					id, err := tx.NextProjectID(ctx)
					So(id, ShouldEqual, 1)
					if err != nil {
						return err
					}
					e, err := tx.AppendEvent(ctx, model.Event{Kind: model.EventProjectCreated, Caller: Bob, ProjectID: id, At: epoch})
					So(e.Seq, ShouldEqual, 1)
					return err
				}), ShouldBeNil)
			})
		})

		Convey("When a project is stored under an id that was never allocated", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.PutProject(ctx, sampleProject(5, Bob))
			})
			So(errors.Is(err, repository.ErrUnallocatedID), ShouldBeTrue)
		})

		Convey("When events are paged", func() {
			So(store.Update(ctx, func(tx repository.Tx) error {
				for i := 0; i < 5; i++ {
					if _, err := tx.AppendEvent(ctx, model.Event{Kind: model.EventTalentUpdated, Caller: Alice, Talent: Alice, At: epoch}); err != nil {
						return err
					}
				}
				return nil
			}), ShouldBeNil)

			_ = store.View(ctx, func(r repository.Reader) error {
				page, err := r.Events(ctx, 1, 2)
				So(err, ShouldBeNil)
				So(len(page), ShouldEqual, 2)
				So(page[0].Seq, ShouldEqual, 2)
				So(page[1].Seq, ShouldEqual, 3)

				tail, _ := r.Events(ctx, 3, 0)
				So(len(tail), ShouldEqual, 2)
				So(tail[1].Seq, ShouldEqual, 5)

				past, _ := r.Events(ctx, 9, 10)
				So(past, ShouldBeEmpty)
				return nil
			})
		})

		Convey("When many writers allocate ids concurrently", func() {
			const writers = 16
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- store.Update(ctx, func(tx repository.Tx) error {
						id, err := tx.NextProjectID(ctx)
						if err != nil {
							return err
						}
						return tx.PutProject(ctx, sampleProject(id, Bob))
					})
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				So(err, ShouldBeNil)
			}

			Convey("Then ids are dense and unique", func() {
				_ = store.View(ctx, func(r repository.Reader) error {
					n, _ := r.ProjectCount(ctx)
					So(n, ShouldEqual, writers)
					for id := uint64(1); id <= writers; id++ {
						p, err := r.Project(ctx, id)
						So(err, ShouldBeNil)
						So(p.ID, ShouldEqual, id)
					}
					return nil
				})
			})
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)

			Convey("Then transactions fail", func() {
				err := store.View(ctx, func(repository.Reader) error { return nil })
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				err = store.Update(ctx, func(repository.Tx) error { return nil })
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
			})
		})
	})
}

func sampleTalent(id model.Identity, name string) model.Talent {
	return model.Talent{
		Identity: id,
		Profile: model.Profile{
			Name:            name,
			Gender:          "female",
			Birthday:        time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
			PhysicalAddress: "12 Main St",
			GovernmentID:    "A-1234",
			Career:          "Carpenter",
			Certifications:  []string{"OSHA 30", "Forklift", "OSHA 30"},
		},
		Rating:              4,
		LastUpdateTimestamp: epoch,
	}
}

func sampleProject(id uint64, client model.Identity) model.Project {
	return model.Project{
		ID:             id,
		Title:          fmt.Sprintf("Project %d", id),
		Description:    "Frame the garage",
		Budget:         model.Ether(2),
		Client:         client,
		RequiredSkills: []string{"framing", "roofing"},
		Deadline:       epoch.Add(72 * time.Hour),
		IsActive:       true,
		CreatedAt:      epoch,
	}
}

func assertTalent(got, want model.Talent) {
	So(got.Identity, ShouldEqual, want.Identity)
	So(got.Name, ShouldEqual, want.Name)
	So(got.Gender, ShouldEqual, want.Gender)
	So(got.Birthday.Equal(want.Birthday), ShouldBeTrue)
	So(got.PhysicalAddress, ShouldEqual, want.PhysicalAddress)
	So(got.GovernmentID, ShouldEqual, want.GovernmentID)
	So(got.Career, ShouldEqual, want.Career)
	So(got.Certifications, ShouldResemble, want.Certifications)
	So(got.IsVerified, ShouldEqual, want.IsVerified)
	So(got.Rating, ShouldEqual, want.Rating)
	So(got.ProjectCount, ShouldEqual, want.ProjectCount)
	So(got.LastUpdateTimestamp.Equal(want.LastUpdateTimestamp), ShouldBeTrue)
}

func assertProject(got, want model.Project) {
	So(got.ID, ShouldEqual, want.ID)
	So(got.Title, ShouldEqual, want.Title)
	So(got.Description, ShouldEqual, want.Description)
	So(got.Budget.Cmp(want.Budget), ShouldEqual, 0)
	So(got.Client, ShouldEqual, want.Client)
	So(got.RequiredSkills, ShouldResemble, want.RequiredSkills)
	So(got.Deadline.Equal(want.Deadline), ShouldBeTrue)
	So(got.IsActive, ShouldEqual, want.IsActive)
	So(got.AssignedTalent, ShouldEqual, want.AssignedTalent)
	So(got.CreatedAt.Equal(want.CreatedAt), ShouldBeTrue)
}
