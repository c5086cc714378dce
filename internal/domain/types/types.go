// Package types contains the wire representations of registry records.
package types

import (
	"time"

	"github.com/okian/talentboard/internal/domain/model"
)

// TalentView is the public form of a talent. Registered is false for the
// empty record returned for unknown identities.
type TalentView struct {
	Identity            string     `json:"identity"`
	Registered          bool       `json:"registered"`
	Name                string     `json:"name"`
	Gender              string     `json:"gender"`
	Birthday            *time.Time `json:"birthday,omitempty"`
	PhysicalAddress     string     `json:"physical_address"`
	GovernmentID        string     `json:"government_id"`
	Career              string     `json:"career"`
	Certifications      []string   `json:"certifications"`
	IsVerified          bool       `json:"is_verified"`
	Rating              uint64     `json:"rating"`
	ProjectCount        uint64     `json:"project_count"`
	LastUpdateTimestamp *time.Time `json:"last_update_timestamp,omitempty"`
}

// NewTalentView converts a talent record.
func NewTalentView(t model.Talent) TalentView {
	v := TalentView{
		Identity:        t.Identity.String(),
		Registered:      t.Exists(),
		Name:            t.Name,
		Gender:          t.Gender,
		Birthday:        optionalTime(t.Birthday),
		PhysicalAddress: t.PhysicalAddress,
		GovernmentID:    t.GovernmentID,
		Career:          t.Career,
		Certifications:  t.Certifications,
		IsVerified:      t.IsVerified,
		Rating:          t.Rating,
		ProjectCount:    t.ProjectCount,

		LastUpdateTimestamp: optionalTime(t.LastUpdateTimestamp),
	}
	if v.Certifications == nil {
		v.Certifications = []string{}
	}
	return v
}

// ProjectView is the public form of a project.
type ProjectView struct {
	ID             uint64             `json:"id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Budget         model.Amount       `json:"budget"`
	Client         string             `json:"client"`
	RequiredSkills []string           `json:"required_skills"`
	Deadline       time.Time          `json:"deadline"`
	IsActive       bool               `json:"is_active"`
	AssignedTalent string             `json:"assigned_talent,omitempty"`
	State          model.ProjectState `json:"state"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewProjectView converts a project record.
func NewProjectView(p model.Project) ProjectView {
	v := ProjectView{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Budget:         p.Budget,
		Client:         p.Client.String(),
		RequiredSkills: p.RequiredSkills,
		Deadline:       p.Deadline,
		IsActive:       p.IsActive,
		AssignedTalent: p.AssignedTalent.String(),
		State:          p.State(),
		CreatedAt:      p.CreatedAt,
	}
	if v.RequiredSkills == nil {
		v.RequiredSkills = []string{}
	}
	return v
}

// EventView is the public form of an event log entry.
type EventView struct {
	Seq       uint64          `json:"seq"`
	Kind      model.EventKind `json:"kind"`
	Caller    string          `json:"caller"`
	Talent    string          `json:"talent,omitempty"`
	ProjectID uint64          `json:"project_id,omitempty"`
	At        time.Time       `json:"at"`
}

// NewEventView converts an event.
func NewEventView(e model.Event) EventView {
	return EventView{
		Seq:       e.Seq,
		Kind:      e.Kind,
		Caller:    e.Caller.String(),
		Talent:    e.Talent.String(),
		ProjectID: e.ProjectID,
		At:        e.At,
	}
}

// Page is one page of a listing. Total counts every match.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// EventPage is one page of the event log. Next is the cursor for the
// following page.
type EventPage struct {
	Items []EventView `json:"items"`
	Next  uint64      `json:"next"`
}

// Map converts every element of in with fn.
func Map[S, T any](in []S, fn func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, s := range in {
		out = append(out, fn(s))
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
