package model

import (
	"slices"
	"strings"
	"time"
)

// Profile holds the self-declared fields of a talent.
type Profile struct {
	Name            string
	Gender          string
	Birthday        time.Time
	PhysicalAddress string
	GovernmentID    string
	Career          string
	Certifications  []string
}

// Normalize trims the name and copies the certifications so the profile
// owns its slices.
func (p Profile) Normalize() Profile {
	p.Name = strings.TrimSpace(p.Name)
	p.Certifications = cloneStrings(p.Certifications)
	return p
}

// Validate checks the profile can identify a talent.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Talent is a registered identity with its profile and registry statistics.
// A talent exists iff its name is non-empty.
type Talent struct {
	Identity Identity
	Profile

	IsVerified          bool
	Rating              uint64
	ProjectCount        uint64
	LastUpdateTimestamp time.Time
}

// NewTalent builds an unverified talent with zeroed statistics.
func NewTalent(id Identity, p Profile, now time.Time) (Talent, error) {
	if id.IsZero() {
		return Talent{}, ErrInvalidIdentity
	}
	if err := p.Validate(); err != nil {
		return Talent{}, err
	}
	return Talent{
		Identity:            id,
		Profile:             p.Normalize(),
		LastUpdateTimestamp: now,
	}, nil
}

// Exists reports whether t is a registered talent rather than the empty sentinel.
func (t Talent) Exists() bool { return t.Name != "" }

// UpdateProfile overwrites the profile fields and refreshes the update
// timestamp. Verification and statistics are untouched.
func (t *Talent) UpdateProfile(p Profile, now time.Time) error {
	if !t.Exists() {
		return ErrNotRegistered
	}
	if err := p.Validate(); err != nil {
		return err
	}
	t.Profile = p.Normalize()
	t.LastUpdateTimestamp = now
	return nil
}

// Verify marks the talent verified and reports whether anything changed.
func (t *Talent) Verify() bool {
	if t.IsVerified {
		return false
	}
	t.IsVerified = true
	return true
}

// Clone returns a deep copy of t.
func (t Talent) Clone() Talent {
	t.Certifications = cloneStrings(t.Certifications)
	return t
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
