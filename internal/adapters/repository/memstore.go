package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/talentboard/internal/domain/model"
)

// MemoryStore keeps the registry in process memory. Writers are serialised
// by a RWMutex and stage their changes until the transaction succeeds.
type MemoryStore struct {
	mu       sync.RWMutex
	talents  map[model.Identity]model.Talent
	order    []model.Identity
	projects map[uint64]model.Project
	lastID   uint64
	events   []model.Event
	closed   bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		talents:  make(map[model.Identity]model.Talent),
		projects: make(map[uint64]model.Project),
	}
}

// Update runs fn in a writer transaction.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx := &memTx{
		s:        s,
		writable: true,
		talents:  make(map[model.Identity]model.Talent),
		projects: make(map[uint64]model.Project),
		lastID:   s.lastID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against the committed state. Views run concurrently.
func (s *MemoryStore) View(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(&memTx{s: s, lastID: s.lastID})
}

// Close releases the store; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// memTx reads through its staged writes to the committed maps. A read-only
// memTx has nil staging maps.
type memTx struct {
	s        *MemoryStore
	writable bool

	talents    map[model.Identity]model.Talent
	newTalents []model.Identity
	projects   map[uint64]model.Project
	lastID     uint64
	events     []model.Event
}

func (tx *memTx) commit() {
	s := tx.s
	for id, t := range tx.talents {
		s.talents[id] = t
	}
	s.order = append(s.order, tx.newTalents...)
	for id, p := range tx.projects {
		s.projects[id] = p
	}
	s.lastID = tx.lastID
	s.events = append(s.events, tx.events...)
}

func (tx *memTx) Talent(_ context.Context, id model.Identity) (model.Talent, error) {
	if t, ok := tx.talents[id]; ok {
		return t.Clone(), nil
	}
	if t, ok := tx.s.talents[id]; ok {
		return t.Clone(), nil
	}
	return model.Talent{}, ErrNotFound
}

func (tx *memTx) Talents(ctx context.Context) ([]model.Talent, error) {
	ids := make([]model.Identity, 0, len(tx.s.order)+len(tx.newTalents))
	ids = append(ids, tx.s.order...)
	ids = append(ids, tx.newTalents...)

	out := make([]model.Talent, 0, len(ids))
	for _, id := range ids {
		t, err := tx.Talent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("talent %s: %w", id, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (tx *memTx) Project(_ context.Context, id uint64) (model.Project, error) {
	if p, ok := tx.projects[id]; ok {
		return p.Clone(), nil
	}
	if p, ok := tx.s.projects[id]; ok {
		return p.Clone(), nil
	}
	return model.Project{}, ErrNotFound
}

func (tx *memTx) ProjectCount(context.Context) (uint64, error) {
	return tx.lastID, nil
}

func (tx *memTx) Events(_ context.Context, after uint64, limit int) ([]model.Event, error) {
	all := tx.s.events
	if len(tx.events) > 0 {
		all = append(all[:len(all):len(all)], tx.events...)
	}
	if after >= uint64(len(all)) {
		return []model.Event{}, nil
	}
	page := all[after:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	out := make([]model.Event, len(page))
	copy(out, page)
	return out, nil
}

func (tx *memTx) Stats(ctx context.Context) (Stats, error) {
	talents, err := tx.Talents(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Talents:  len(talents),
		Projects: tx.lastID,
		Events:   uint64(len(tx.s.events) + len(tx.events)),
	}
	for _, t := range talents {
		if t.IsVerified {
			st.VerifiedTalents++
		}
	}
	for id := uint64(1); id <= tx.lastID; id++ {
		p, err := tx.Project(ctx, id)
		if err != nil {
			return Stats{}, fmt.Errorf("project %d: %w", id, err)
		}
		if p.IsActive {
			st.ActiveProjects++
		}
	}
	return st, nil
}

func (tx *memTx) PutTalent(_ context.Context, t model.Talent) error {
	if !tx.writable {
		return fmt.Errorf("put talent: read-only transaction")
	}
	if t.Identity.IsZero() {
		return model.ErrInvalidIdentity
	}
	_, staged := tx.talents[t.Identity]
	_, committed := tx.s.talents[t.Identity]
	if !staged && !committed {
		tx.newTalents = append(tx.newTalents, t.Identity)
	}
	tx.talents[t.Identity] = t.Clone()
	return nil
}

func (tx *memTx) PutProject(_ context.Context, p model.Project) error {
	if !tx.writable {
		return fmt.Errorf("put project: read-only transaction")
	}
	if p.ID == 0 || p.ID > tx.lastID {
		return fmt.Errorf("put project %d: %w", p.ID, ErrUnallocatedID)
	}
	tx.projects[p.ID] = p.Clone()
	return nil
}

func (tx *memTx) NextProjectID(context.Context) (uint64, error) {
	if !tx.writable {
		return 0, fmt.Errorf("next project id: read-only transaction")
	}
	tx.lastID++
	return tx.lastID, nil
}

func (tx *memTx) AppendEvent(_ context.Context, e model.Event) (model.Event, error) {
	if !tx.writable {
		return model.Event{}, fmt.Errorf("append event: read-only transaction")
	}
	e.Seq = uint64(len(tx.s.events)+len(tx.events)) + 1
	tx.events = append(tx.events, e)
	return e, nil
}
