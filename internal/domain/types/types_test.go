package types_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/talentboard/internal/domain/model"
	types "github.com/okian/talentboard/internal/domain/types"
)

var (
	client = model.MustParseIdentity("0x1111111111111111111111111111111111111111")
	talent = model.MustParseIdentity("0x2222222222222222222222222222222222222222")
	now    = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestTalentView(t *testing.T) {
	Convey("Given a registered talent", t, func() {
		rec, err := model.NewTalent(talent, model.Profile{Name: "Ada", Career: "analyst"}, now)
		So(err, ShouldBeNil)

		Convey("When converted", func() {
			v := types.NewTalentView(rec)

			Convey("Then it is marked registered and keeps its fields", func() {
				So(v.Registered, ShouldBeTrue)
				So(v.Identity, ShouldEqual, talent.String())
				So(v.Name, ShouldEqual, "Ada")
				So(v.Certifications, ShouldNotBeNil)
				So(v.Birthday, ShouldBeNil)
				So(v.LastUpdateTimestamp.Equal(now), ShouldBeTrue)
			})

			Convey("Then it encodes with snake_case keys", func() {
				raw, err := json.Marshal(v)
				So(err, ShouldBeNil)
				var m map[string]any
				So(json.Unmarshal(raw, &m), ShouldBeNil)
				So(m, ShouldContainKey, "is_verified")
				So(m, ShouldContainKey, "project_count")
				So(m, ShouldNotContainKey, "birthday")
			})
		})
	})

	Convey("Given the empty record", t, func() {
		v := types.NewTalentView(model.Talent{})

		Convey("Then it reports not registered with empty lists", func() {
			So(v.Registered, ShouldBeFalse)
			So(v.Certifications, ShouldResemble, []string{})
			So(v.LastUpdateTimestamp, ShouldBeNil)
		})
	})
}

func TestProjectView(t *testing.T) {
	Convey("Given an open project", t, func() {
		p, err := model.NewProject(1, client, model.ProjectDraft{
			Title:       "Audit",
			Description: "Review the books",
			Budget:      model.Ether(1),
			Deadline:    now.Add(24 * time.Hour),
		}, now)
		So(err, ShouldBeNil)

		Convey("When converted and encoded", func() {
			raw, err := json.Marshal(types.NewProjectView(p))
			So(err, ShouldBeNil)
			var m map[string]any
			So(json.Unmarshal(raw, &m), ShouldBeNil)

			Convey("Then the budget is a decimal string and no talent is shown", func() {
				So(m["budget"], ShouldEqual, "1000000000000000000")
				So(m["state"], ShouldEqual, "open")
				So(m, ShouldNotContainKey, "assigned_talent")
				So(m["required_skills"], ShouldResemble, []any{})
			})
		})
	})
}

func TestEventPage(t *testing.T) {
	Convey("Given committed events", t, func() {
		events := []model.Event{
			{Seq: 1, Kind: model.EventTalentRegistered, Caller: talent, Talent: talent, At: now},
			{Seq: 2, Kind: model.EventProjectCreated, Caller: client, ProjectID: 1, At: now},
		}

		Convey("When mapped to views", func() {
			views := types.Map(events, types.NewEventView)

			Convey("Then order and optional fields are preserved", func() {
				So(views, ShouldHaveLength, 2)
				So(views[0].Talent, ShouldEqual, talent.String())
				So(views[0].ProjectID, ShouldEqual, 0)
				So(views[1].Talent, ShouldBeEmpty)
				So(views[1].ProjectID, ShouldEqual, 1)
			})
		})
	})
}
