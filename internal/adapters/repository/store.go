// Package repository defines the transactional registry store and its
// in-memory and SQLite implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/talentboard/internal/domain/model"
)

// Stats summarises the stored registry.
type Stats struct {
	Talents         int
	VerifiedTalents int
	Projects        uint64
	ActiveProjects  int
	Events          uint64
}

// Reader exposes the committed registry state.
type Reader interface {
	// Talent returns ErrNotFound for unknown identities.
	Talent(ctx context.Context, id model.Identity) (model.Talent, error)
	// Talents returns every talent in registration order.
	Talents(ctx context.Context) ([]model.Talent, error)
	// Project returns ErrNotFound for unknown ids.
	Project(ctx context.Context, id uint64) (model.Project, error)
	// ProjectCount returns the last allocated project id.
	ProjectCount(ctx context.Context) (uint64, error)
	// Events returns up to limit events with Seq greater than after, oldest
	// first. A non-positive limit returns all of them.
	Events(ctx context.Context, after uint64, limit int) ([]model.Event, error)
	Stats(ctx context.Context) (Stats, error)
}

// Tx is a writer transaction. Writes become visible to other callers only
// when the enclosing Update commits.
type Tx interface {
	Reader
	PutTalent(ctx context.Context, t model.Talent) error
	// PutProject stores p under an id previously returned by NextProjectID.
	PutProject(ctx context.Context, p model.Project) error
	// NextProjectID allocates the next sequential project id.
	NextProjectID(ctx context.Context) (uint64, error)
	// AppendEvent assigns the next sequence number and stores e.
	AppendEvent(ctx context.Context, e model.Event) (model.Event, error)
}

// Store runs registry transactions. Update calls are serialised; fn's
// writes are committed only when it returns nil.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(r Reader) error) error
	Close() error
}

// Store backends accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend; path is used by the SQLite backend only.
func Open(ctx context.Context, backend, path string, opts ...SQLiteOption) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, path, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
