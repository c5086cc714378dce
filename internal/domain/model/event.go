// Package model contains the registry's domain records and their rules.
package model

import "time"

// EventKind names a committed registry mutation.
type EventKind string

// Event kinds.
const (
	EventTalentRegistered EventKind = "talent_registered"
	EventTalentUpdated    EventKind = "talent_updated"
	EventTalentVerified   EventKind = "talent_verified"
	EventProjectCreated   EventKind = "project_created"
	EventProjectAssigned  EventKind = "project_assigned"
	EventProjectClosed    EventKind = "project_closed"
)

// Event records one committed mutation. Seq is assigned by the store in
// the same transaction as the mutation and has no gaps.
type Event struct {
	Seq       uint64
	Kind      EventKind
	Caller    Identity
	Talent    Identity // zero when the mutation touched no talent
	ProjectID uint64   // zero when the mutation touched no project
	At        time.Time
}

// AffectsTalent reports whether the event changed a talent record.
func (e Event) AffectsTalent() bool { return !e.Talent.IsZero() }
