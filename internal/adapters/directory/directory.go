// Package directory keeps a searchable read model of registered talents.
// It is fed from committed registry events and lags the store slightly.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/pkg/logger"
	"github.com/okian/talentboard/pkg/metrics"
)

const (
	defaultLimit    = 20
	defaultMaxLimit = 100
)

// Query filters and pages a directory search. Zero values disable a filter.
type Query struct {
	Text          string // case-insensitive match on name, career or certifications
	Certification string // exact, case-insensitive certification
	VerifiedOnly  bool
	MinRating     uint64
	Offset        int
	Limit         int
}

// Directory is an eventually consistent talent index held in go-cache.
type Directory struct {
	store    repository.Store
	cache    *gocache.Cache
	maxLimit int
	logger   logger.Logger

	// mu orders refreshes so an older read never overwrites a newer one.
	mu sync.Mutex
}

// New creates an empty directory reading from store.
func New(store repository.Store, opts ...Option) *Directory {
	d := &Directory{
		store:    store,
		cache:    gocache.New(gocache.NoExpiration, 0),
		maxLimit: defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("directory")
	}
	return d
}

// Rebuild replaces the index with every talent currently in the store.
func (d *Directory) Rebuild(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var talents []model.Talent
	err := d.store.View(ctx, func(r repository.Reader) error {
		var err error
		talents, err = r.Talents(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("rebuild directory: %w", err)
	}

	d.cache.Flush()
	for _, t := range talents {
		d.cache.Set(string(t.Identity), t, gocache.NoExpiration)
	}
	metrics.UpdateDirectoryEntries(d.cache.ItemCount())
	d.logger.Info(ctx, "directory rebuilt", logger.Int("talents", len(talents)))
	return nil
}

// Apply refreshes the entry of the talent an event touched. The latest
// committed record is read back so replays and reordering converge.
func (d *Directory) Apply(ctx context.Context, e model.Event) error {
	if !e.AffectsTalent() {
		return nil
	}
	if err := d.refresh(ctx, e.Talent); err != nil {
		return fmt.Errorf("apply event %d: %w", e.Seq, err)
	}
	return nil
}

func (d *Directory) refresh(ctx context.Context, id model.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var t model.Talent
	err := d.store.View(ctx, func(r repository.Reader) error {
		var err error
		t, err = r.Talent(ctx, id)
		return err
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		d.cache.Delete(string(id))
	case err != nil:
		return err
	default:
		d.cache.Set(string(id), t, gocache.NoExpiration)
	}
	metrics.UpdateDirectoryEntries(d.cache.ItemCount())
	return nil
}

// Get returns the indexed copy of a talent.
func (d *Directory) Get(id model.Identity) (model.Talent, bool) {
	v, found := d.cache.Get(string(id))
	if !found {
		return model.Talent{}, false
	}
	t, ok := v.(model.Talent)
	if !ok {
		return model.Talent{}, false
	}
	return t.Clone(), true
}

// Len returns the number of indexed talents.
func (d *Directory) Len() int { return d.cache.ItemCount() }

// Search returns one page of matching talents ordered by rating, then
// project count, both descending, then identity. total counts every match.
func (d *Directory) Search(q Query) (items []model.Talent, total int) {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	cert := strings.TrimSpace(q.Certification)

	hits := make([]model.Talent, 0)
	for _, item := range d.cache.Items() {
		t, ok := item.Object.(model.Talent)
		if !ok || !matches(t, q, text, cert) {
			continue
		}
		hits = append(hits, t)
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.ProjectCount != b.ProjectCount {
			return a.ProjectCount > b.ProjectCount
		}
		return a.Identity < b.Identity
	})

	total = len(hits)
	offset := max(q.Offset, 0)
	if offset >= total {
		return []model.Talent{}, total
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, d.maxLimit)
	end := min(offset+limit, total)

	items = make([]model.Talent, 0, end-offset)
	for _, t := range hits[offset:end] {
		items = append(items, t.Clone())
	}
	return items, total
}

func matches(t model.Talent, q Query, text, cert string) bool {
	if q.VerifiedOnly && !t.IsVerified {
		return false
	}
	if t.Rating < q.MinRating {
		return false
	}
	if text != "" && !containsText(t, text) {
		return false
	}
	if cert != "" {
		found := false
		for _, c := range t.Certifications {
			if strings.EqualFold(c, cert) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsText(t model.Talent, text string) bool {
	if strings.Contains(strings.ToLower(t.Name), text) ||
		strings.Contains(strings.ToLower(t.Career), text) {
		return true
	}
	for _, c := range t.Certifications {
		if strings.Contains(strings.ToLower(c), text) {
			return true
		}
	}
	return false
}
