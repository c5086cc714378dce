package model

import (
	"strings"
	"time"
)

// ProjectState is derived from IsActive and AssignedTalent.
type ProjectState string

// Project states. Assigned and Closed are terminal.
const (
	ProjectOpen     ProjectState = "open"
	ProjectAssigned ProjectState = "assigned"
	ProjectClosed   ProjectState = "closed"
)

// ParseProjectState parses a state name; the empty string is not a state.
func ParseProjectState(s string) (ProjectState, bool) {
	switch ProjectState(strings.ToLower(strings.TrimSpace(s))) {
	case ProjectOpen:
		return ProjectOpen, true
	case ProjectAssigned:
		return ProjectAssigned, true
	case ProjectClosed:
		return ProjectClosed, true
	default:
		return "", false
	}
}

// ProjectDraft carries the client-supplied fields of a new project.
type ProjectDraft struct {
	Title          string
	Description    string
	Budget         Amount
	RequiredSkills []string
	Deadline       time.Time
}

// Validate checks the draft against the clock reading now. Checks run in a
// fixed order so the first failing rule is reported.
func (d ProjectDraft) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return ErrEmptyTitle
	case strings.TrimSpace(d.Description) == "":
		return ErrEmptyDescription
	case d.Budget.IsZero():
		return ErrInvalidBudget
	case !d.Deadline.After(now):
		return ErrDeadlineInPast
	}
	return nil
}

// Project is a client's posting. It is created open and moves once, either
// to assigned or to closed.
type Project struct {
	ID             uint64
	Title          string
	Description    string
	Budget         Amount
	Client         Identity
	RequiredSkills []string
	Deadline       time.Time
	IsActive       bool
	AssignedTalent Identity
	CreatedAt      time.Time
}

// NewProject validates the draft and builds an open project with the given id.
func NewProject(id uint64, client Identity, d ProjectDraft, now time.Time) (Project, error) {
	if client.IsZero() {
		return Project{}, ErrInvalidIdentity
	}
	if err := d.Validate(now); err != nil {
		return Project{}, err
	}
	return Project{
		ID:             id,
		Title:          strings.TrimSpace(d.Title),
		Description:    strings.TrimSpace(d.Description),
		Budget:         d.Budget,
		Client:         client,
		RequiredSkills: cloneStrings(d.RequiredSkills),
		Deadline:       d.Deadline,
		IsActive:       true,
		CreatedAt:      now,
	}, nil
}

// State derives the lifecycle state.
func (p Project) State() ProjectState {
	switch {
	case p.IsActive:
		return ProjectOpen
	case !p.AssignedTalent.IsZero():
		return ProjectAssigned
	default:
		return ProjectClosed
	}
}

// checkClientAction guards every transition out of the open state.
func (p Project) checkClientAction(caller Identity) error {
	if !p.IsActive {
		return ErrProjectNotActive
	}
	if caller != p.Client {
		return ErrNotProjectClient
	}
	return nil
}

// Assign moves the project to assigned and counts the assignment on talent.
// Both p and talent are left untouched when an error is returned.
func (p *Project) Assign(caller Identity, talent *Talent) error {
	if err := p.checkClientAction(caller); err != nil {
		return err
	}
	if talent == nil || !talent.Exists() {
		return ErrTalentNotFound
	}
	if !talent.IsVerified {
		return ErrTalentNotVerified
	}
	p.IsActive = false
	p.AssignedTalent = talent.Identity
	talent.ProjectCount++
	return nil
}

// Close moves the project to closed.
func (p *Project) Close(caller Identity) error {
	if err := p.checkClientAction(caller); err != nil {
		return err
	}
	p.IsActive = false
	return nil
}

// Clone returns a deep copy of p.
func (p Project) Clone() Project {
	p.RequiredSkills = cloneStrings(p.RequiredSkills)
	return p
}
