package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/talentboard/internal/adapters/directory"
	"github.com/okian/talentboard/internal/adapters/repository"
	service "github.com/okian/talentboard/internal/app"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	owner  = model.MustParseIdentity("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	client = model.MustParseIdentity("0x8ba1f109551bd432803012645ac136ddd64dba72")
	talent = model.MustParseIdentity("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	other  = model.MustParseIdentity("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")

	epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type backend struct {
	name string
	open func(t *testing.T) repository.Store
}

func backends() []backend {
	return []backend{
		{"memory", func(*testing.T) repository.Store { return repository.NewMemoryStore() }},
		{"sqlite", func(t *testing.T) repository.Store {
			s, err := repository.OpenSQLite(context.Background(), ":memory:")
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		}},
	}
}

// fixedClock returns the same instant until advanced.
type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newService(t *testing.T, b backend, opts ...service.Option) (*service.Service, *fixedClock) {
	clock := &fixedClock{now: epoch}
	opts = append([]service.Option{
		service.WithStore(b.open(t)),
		service.WithOwner(owner),
		service.WithClock(clock),
		service.WithWorkerCount(2),
	}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return svc, clock
}

func draft() model.ProjectDraft {
	return model.ProjectDraft{
		Title:          "Ledger audit",
		Description:    "Reconcile the 2025 books",
		Budget:         model.Ether(1),
		RequiredSkills: []string{"accounting", "golang"},
		Deadline:       epoch.Add(24 * time.Hour),
	}
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it can start, stop and refuse a restart", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			st, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(st.Started, ShouldBeTrue)
			So(st.Workers, ShouldBeGreaterThan, 0)
			So(st.Owner, ShouldBeEmpty)

			svc.Stop()
			svc.Stop()
			So(svc.Start(ctx), ShouldNotBeNil)

			_, err = svc.TalentInfo(ctx, talent)
			So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "TalentInfo: ")
		})

		Convey("Then without an owner nobody can verify", func() {
			ctx := context.Background()
			defer svc.Stop()
			_, err := svc.RegisterTalent(ctx, talent, model.Profile{Name: "John Doe"})
			So(err, ShouldBeNil)
			_, err = svc.VerifyTalent(ctx, model.Identity(""), talent)
			So(errors.Is(err, model.ErrNotOwner), ShouldBeTrue)
		})
	})
}

func TestService_Talents(t *testing.T) {
	for _, b := range backends() {
		Convey("Given a started service on the "+b.name+" store", t, func() {
			ctx := context.Background()
			svc, clock := newService(t, b)
			Reset(svc.Stop)

			Convey("When a talent registers", func() {
				got, err := svc.RegisterTalent(ctx, talent, model.Profile{
					Name:           "  John Doe ",
					Career:         "auditor",
					Certifications: []string{"CPA", "CPA"},
				})
				So(err, ShouldBeNil)

				Convey("Then the record starts unverified with zeroed statistics", func() {
					info, err := svc.TalentInfo(ctx, talent)
					So(err, ShouldBeNil)
					So(info.Exists(), ShouldBeTrue)
					So(info.Name, ShouldEqual, "John Doe")
					So(info.IsVerified, ShouldBeFalse)
					So(info.Rating, ShouldEqual, 0)
					So(info.ProjectCount, ShouldEqual, 0)
					So(info.Certifications, ShouldResemble, []string{"CPA", "CPA"})
					So(info.LastUpdateTimestamp.Equal(epoch), ShouldBeTrue)
					So(got.Identity, ShouldEqual, talent)

					n, err := svc.TalentCount(ctx)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)
				})

				Convey("Then registering again is rejected", func() {
					_, err := svc.RegisterTalent(ctx, talent, model.Profile{Name: "Impostor"})
					So(errors.Is(err, model.ErrAlreadyRegistered), ShouldBeTrue)
					So(errors.Is(err, model.ErrState), ShouldBeTrue)

					info, _ := svc.TalentInfo(ctx, talent)
					So(info.Name, ShouldEqual, "John Doe")
				})

				Convey("Then a profile update keeps verification and statistics", func() {
					_, err := svc.VerifyTalent(ctx, owner, talent)
					So(err, ShouldBeNil)
					clock.now = epoch.Add(time.Hour)

					updated, err := svc.UpdateTalentProfile(ctx, talent, model.Profile{Name: "John Q. Doe", Career: "partner"})
					So(err, ShouldBeNil)
					So(updated.IsVerified, ShouldBeTrue)
					So(updated.Career, ShouldEqual, "partner")
					So(updated.Certifications, ShouldBeEmpty)
					So(updated.LastUpdateTimestamp.Equal(epoch.Add(time.Hour)), ShouldBeTrue)
				})

				Convey("Then blanking the name is rejected and nothing changes", func() {
					_, err := svc.UpdateTalentProfile(ctx, talent, model.Profile{Name: "   ", Career: "x"})
					So(errors.Is(err, model.ErrEmptyName), ShouldBeTrue)

					info, _ := svc.TalentInfo(ctx, talent)
					So(info.Career, ShouldEqual, "auditor")
				})

				Convey("Then verifying twice succeeds and logs one event", func() {
					first, err := svc.VerifyTalent(ctx, owner, talent)
					So(err, ShouldBeNil)
					So(first.IsVerified, ShouldBeTrue)
					second, err := svc.VerifyTalent(ctx, owner, talent)
					So(err, ShouldBeNil)
					So(second.IsVerified, ShouldBeTrue)

					events, err := svc.Events(ctx, 0, 0)
					So(err, ShouldBeNil)
					So(events, ShouldHaveLength, 2)
					So(events[1].Kind, ShouldEqual, model.EventTalentVerified)
					So(events[1].Caller, ShouldEqual, owner)
				})

				Convey("Then the directory catches up", func() {
					So(eventually(func() bool {
						items, total := svc.SearchTalents(ctx, directory.Query{Text: "john"})
						return total == 1 && items[0].Identity == talent
					}), ShouldBeTrue)
				})
			})

			Convey("An empty name is rejected and leaves no state", func() {
				_, err := svc.RegisterTalent(ctx, talent, model.Profile{Name: ""})
				So(errors.Is(err, model.ErrEmptyName), ShouldBeTrue)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

				info, err := svc.TalentInfo(ctx, talent)
				So(err, ShouldBeNil)
				So(info.Exists(), ShouldBeFalse)
				events, _ := svc.Events(ctx, 0, 0)
				So(events, ShouldBeEmpty)
			})

			Convey("An unknown identity reads as the empty record", func() {
				info, err := svc.TalentInfo(ctx, other)
				So(err, ShouldBeNil)
				So(info.Exists(), ShouldBeFalse)
				So(info.Identity, ShouldEqual, other)
			})

			Convey("Updating an unregistered profile is rejected", func() {
				_, err := svc.UpdateTalentProfile(ctx, other, model.Profile{Name: "Ghost"})
				So(errors.Is(err, model.ErrNotRegistered), ShouldBeTrue)
			})

			Convey("Verifying an unregistered identity is rejected", func() {
				_, err := svc.VerifyTalent(ctx, owner, other)
				So(errors.Is(err, model.ErrNotRegistered), ShouldBeTrue)
			})

			Convey("The zero identity cannot register", func() {
				_, err := svc.RegisterTalent(ctx, model.Identity(""), model.Profile{Name: "Nobody"})
				So(errors.Is(err, model.ErrInvalidIdentity), ShouldBeTrue)
			})
		})
	}
}

func TestService_Projects(t *testing.T) {
	for _, b := range backends() {
		Convey("Given a started service on the "+b.name+" store", t, func() {
			ctx := context.Background()
			svc, clock := newService(t, b)
			Reset(svc.Stop)

			_, err := svc.RegisterTalent(ctx, talent, model.Profile{Name: "John Doe"})
			So(err, ShouldBeNil)

			Convey("Scenario: verify, create and assign", func() {
				_, err := svc.VerifyTalent(ctx, owner, talent)
				So(err, ShouldBeNil)
				p, err := svc.CreateProject(ctx, client, draft())
				So(err, ShouldBeNil)
				So(p.ID, ShouldEqual, 1)
				So(p.State(), ShouldEqual, model.ProjectOpen)

				assigned, err := svc.AssignProject(ctx, client, 1, talent)
				So(err, ShouldBeNil)
				So(assigned.State(), ShouldEqual, model.ProjectAssigned)

				info, err := svc.ProjectInfo(ctx, 1)
				So(err, ShouldBeNil)
				So(info.IsActive, ShouldBeFalse)
				So(info.AssignedTalent, ShouldEqual, talent)
				So(info.Budget.Cmp(model.Ether(1)), ShouldEqual, 0)

				tinfo, _ := svc.TalentInfo(ctx, talent)
				So(tinfo.ProjectCount, ShouldEqual, 1)

				events, _ := svc.Events(ctx, 0, 0)
				So(events, ShouldHaveLength, 4)
				So(events[3].Kind, ShouldEqual, model.EventProjectAssigned)
				So(events[3].Talent, ShouldEqual, talent)
				So(events[3].ProjectID, ShouldEqual, 1)

				Convey("And a second assignment is rejected", func() {
					_, err := svc.AssignProject(ctx, client, 1, talent)
					So(errors.Is(err, model.ErrProjectNotActive), ShouldBeTrue)
				})
			})

			Convey("Scenario: a non-owner cannot verify", func() {
				_, err := svc.CreateProject(ctx, client, draft())
				So(err, ShouldBeNil)

				_, err = svc.VerifyTalent(ctx, other, talent)
				So(errors.Is(err, model.ErrNotOwner), ShouldBeTrue)
				So(errors.Is(err, model.ErrAuthorization), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "Ownable: caller is not the owner")

				info, _ := svc.TalentInfo(ctx, talent)
				So(info.IsVerified, ShouldBeFalse)
			})

			Convey("Scenario: close then assign", func() {
				_, err := svc.VerifyTalent(ctx, owner, talent)
				So(err, ShouldBeNil)
				_, err = svc.CreateProject(ctx, client, draft())
				So(err, ShouldBeNil)

				closed, err := svc.CloseProject(ctx, client, 1)
				So(err, ShouldBeNil)
				So(closed.IsActive, ShouldBeFalse)
				So(closed.AssignedTalent.IsZero(), ShouldBeTrue)
				So(closed.State(), ShouldEqual, model.ProjectClosed)

				_, err = svc.AssignProject(ctx, client, 1, talent)
				So(errors.Is(err, model.ErrProjectNotActive), ShouldBeTrue)
				_, err = svc.CloseProject(ctx, client, 1)
				So(errors.Is(err, model.ErrProjectNotActive), ShouldBeTrue)
			})

			Convey("Assigning an unverified talent leaves the project open", func() {
				_, err := svc.CreateProject(ctx, client, draft())
				So(err, ShouldBeNil)
				_, err = svc.AssignProject(ctx, client, 1, talent)
				So(errors.Is(err, model.ErrTalentNotVerified), ShouldBeTrue)

				info, _ := svc.ProjectInfo(ctx, 1)
				So(info.IsActive, ShouldBeTrue)
				tinfo, _ := svc.TalentInfo(ctx, talent)
				So(tinfo.ProjectCount, ShouldEqual, 0)
			})

			Convey("Assignment checks run in order", func() {
				_, err := svc.AssignProject(ctx, client, 1, talent)
				So(errors.Is(err, model.ErrProjectNotFound), ShouldBeTrue)

				_, err = svc.CreateProject(ctx, client, draft())
				So(err, ShouldBeNil)
				_, err = svc.AssignProject(ctx, other, 1, other)
				So(errors.Is(err, model.ErrNotProjectClient), ShouldBeTrue)
				_, err = svc.AssignProject(ctx, client, 1, other)
				So(errors.Is(err, model.ErrTalentNotFound), ShouldBeTrue)
				_, err = svc.CloseProject(ctx, other, 1)
				So(errors.Is(err, model.ErrNotProjectClient), ShouldBeTrue)
			})

			Convey("Invalid drafts are rejected in order and allocate no id", func() {
				d := draft()
				d.Title, d.Budget = " ", model.Amount{}
				_, err := svc.CreateProject(ctx, client, d)
				So(errors.Is(err, model.ErrEmptyTitle), ShouldBeTrue)

				d = draft()
				d.Description = ""
				_, err = svc.CreateProject(ctx, client, d)
				So(errors.Is(err, model.ErrEmptyDescription), ShouldBeTrue)

				d = draft()
				d.Budget = model.Amount{}
				_, err = svc.CreateProject(ctx, client, d)
				So(errors.Is(err, model.ErrInvalidBudget), ShouldBeTrue)

				d = draft()
				d.Deadline = epoch
				_, err = svc.CreateProject(ctx, client, d)
				So(errors.Is(err, model.ErrDeadlineInPast), ShouldBeTrue)

				n, err := svc.ProjectCount(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				p, err := svc.CreateProject(ctx, client, draft())
				So(err, ShouldBeNil)
				So(p.ID, ShouldEqual, 1)
			})

			Convey("The deadline is judged against the clock at call time", func() {
				clock.now = epoch.Add(48 * time.Hour)
				_, err := svc.CreateProject(ctx, client, draft())
				So(errors.Is(err, model.ErrDeadlineInPast), ShouldBeTrue)
			})

			Convey("Unknown projects are not found", func() {
				_, err := svc.ProjectInfo(ctx, 42)
				So(errors.Is(err, model.ErrProjectNotFound), ShouldBeTrue)
				So(model.IsNotFound(err), ShouldBeTrue)
			})

			Convey("Listings filter and page in id order", func() {
				_, err := svc.VerifyTalent(ctx, owner, talent)
				So(err, ShouldBeNil)
				for range 5 {
					_, err := svc.CreateProject(ctx, client, draft())
					So(err, ShouldBeNil)
				}
				_, err = svc.CreateProject(ctx, other, draft())
				So(err, ShouldBeNil)
				_, err = svc.AssignProject(ctx, client, 2, talent)
				So(err, ShouldBeNil)
				_, err = svc.CloseProject(ctx, client, 3)
				So(err, ShouldBeNil)

				all, total, err := svc.Projects(ctx, service.ProjectFilter{})
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 6)
				So(all, ShouldHaveLength, 6)
				So(all[0].ID, ShouldEqual, 1)

				open, total, _ := svc.Projects(ctx, service.ProjectFilter{State: model.ProjectOpen, Client: client})
				So(total, ShouldEqual, 3)
				So(open[0].ID, ShouldEqual, 1)
				So(open[1].ID, ShouldEqual, 4)

				mine, total, _ := svc.Projects(ctx, service.ProjectFilter{Talent: talent})
				So(total, ShouldEqual, 1)
				So(mine[0].ID, ShouldEqual, 2)

				page, total, _ := svc.Projects(ctx, service.ProjectFilter{Offset: 4, Limit: 10})
				So(total, ShouldEqual, 6)
				So(page, ShouldHaveLength, 2)
				So(page[0].ID, ShouldEqual, 5)

				events, _ := svc.Events(ctx, 5, 2)
				So(events, ShouldHaveLength, 2)
				So(events[0].Seq, ShouldEqual, 6)

				st, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(st.Projects, ShouldEqual, 6)
				So(st.ActiveProjects, ShouldEqual, 4)
				So(st.VerifiedTalents, ShouldEqual, 1)
				So(st.Events, ShouldEqual, 10)
			})
		})
	}
}

func TestService_Paging(t *testing.T) {
	Convey("Given a service with a small page cap", t, func() {
		ctx := context.Background()
		svc, _ := newService(t, backends()[0], service.WithMaxPageSize(2))
		Reset(svc.Stop)

		for range 3 {
			_, err := svc.CreateProject(ctx, client, draft())
			So(err, ShouldBeNil)
		}

		Convey("Then no listing exceeds the cap", func() {
			items, total, err := svc.Projects(ctx, service.ProjectFilter{Limit: 50})
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 3)
			So(items, ShouldHaveLength, 2)

			events, err := svc.Events(ctx, 0, 50)
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 2)
		})
	})
}

func TestService_Dedupe(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithDedupeSize(10))
		Reset(svc.Stop)

		Convey("When a key is recorded", func() {
			So(svc.SeenAndRecord(ctx, "k1"), ShouldBeFalse)

			Convey("Then it is reported as seen", func() {
				So(svc.SeenAndRecord(ctx, "k1"), ShouldBeTrue)
			})

			Convey("Then unrecording allows it again", func() {
				svc.Unrecord(ctx, "k1")
				So(svc.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
			})
		})
	})
}
