package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/tracing"
)

const defaultPageSize = 20

// ProjectFilter narrows a project listing. Zero fields match everything.
type ProjectFilter struct {
	State  model.ProjectState
	Client model.Identity
	Talent model.Identity // assigned talent
	Offset int
	Limit  int
}

func (f ProjectFilter) matches(p model.Project) bool {
	switch {
	case f.State != "" && p.State() != f.State:
		return false
	case !f.Client.IsZero() && p.Client != f.Client:
		return false
	case !f.Talent.IsZero() && p.AssignedTalent != f.Talent:
		return false
	}
	return true
}

// CreateProject opens a project owned by caller under the next id. A
// rejected draft allocates no id.
func (s *Service) CreateProject(ctx context.Context, caller model.Identity, d model.ProjectDraft) (model.Project, error) {
	var out model.Project
	err := s.observe(ctx, "CreateProject", callerAttrs(caller), func(ctx context.Context) error {
		return s.mutate(ctx, func(tx repository.Tx, now time.Time) (model.Event, error) {
			if err := d.Validate(now); err != nil {
				return model.Event{}, err
			}
			if caller.IsZero() {
				return model.Event{}, model.ErrInvalidIdentity
			}
			id, err := tx.NextProjectID(ctx)
			if err != nil {
				return model.Event{}, err
			}
			p, err := model.NewProject(id, caller, d, now)
			if err != nil {
				return model.Event{}, err
			}
			if err := tx.PutProject(ctx, p); err != nil {
				return model.Event{}, err
			}
			out = p
			return model.Event{Kind: model.EventProjectCreated, Caller: caller, ProjectID: id}, nil
		})
	})
	if err != nil {
		return model.Project{}, err
	}
	return out, nil
}

// AssignProject hands an open project to a verified talent and counts the
// assignment on the talent, in one transaction.
func (s *Service) AssignProject(ctx context.Context, caller model.Identity, id uint64, talent model.Identity) (model.Project, error) {
	var out model.Project
	attrs := append(projectAttrs(caller, id), attribute.String(tracing.AttrTalent, talent.String()))
	err := s.observe(ctx, "AssignProject", attrs, func(ctx context.Context) error {
		return s.mutate(ctx, func(tx repository.Tx, _ time.Time) (model.Event, error) {
			p, err := loadProject(ctx, tx, id)
			if err != nil {
				return model.Event{}, err
			}
			t, err := loadTalent(ctx, tx, talent)
			if err != nil {
				return model.Event{}, err
			}
			if err := p.Assign(caller, &t); err != nil {
				return model.Event{}, err
			}
			if err := tx.PutProject(ctx, p); err != nil {
				return model.Event{}, err
			}
			if err := tx.PutTalent(ctx, t); err != nil {
				return model.Event{}, err
			}
			out = p
			return model.Event{Kind: model.EventProjectAssigned, Caller: caller, Talent: talent, ProjectID: id}, nil
		})
	})
	if err != nil {
		return model.Project{}, err
	}
	return out, nil
}

// CloseProject deactivates an open project without assigning it.
func (s *Service) CloseProject(ctx context.Context, caller model.Identity, id uint64) (model.Project, error) {
	var out model.Project
	err := s.observe(ctx, "CloseProject", projectAttrs(caller, id), func(ctx context.Context) error {
		return s.mutate(ctx, func(tx repository.Tx, _ time.Time) (model.Event, error) {
			p, err := loadProject(ctx, tx, id)
			if err != nil {
				return model.Event{}, err
			}
			if err := p.Close(caller); err != nil {
				return model.Event{}, err
			}
			if err := tx.PutProject(ctx, p); err != nil {
				return model.Event{}, err
			}
			out = p
			return model.Event{Kind: model.EventProjectClosed, Caller: caller, ProjectID: id}, nil
		})
	})
	if err != nil {
		return model.Project{}, err
	}
	return out, nil
}

// ProjectInfo returns project id or ErrProjectNotFound.
func (s *Service) ProjectInfo(ctx context.Context, id uint64) (model.Project, error) {
	var out model.Project
	attrs := []attribute.KeyValue{attribute.String(tracing.AttrProjectID, strconv.FormatUint(id, 10))}
	err := s.observe(ctx, "ProjectInfo", attrs, func(ctx context.Context) error {
		return s.store.View(ctx, func(r repository.Reader) error {
			p, err := loadProject(ctx, r, id)
			out = p
			return err
		})
	})
	return out, err
}

// Projects scans projects in id order and returns one page of those
// matching f, with the number of matches.
func (s *Service) Projects(ctx context.Context, f ProjectFilter) ([]model.Project, int, error) {
	offset, limit := s.page(f.Offset, f.Limit)
	items := make([]model.Project, 0)
	var total int
	err := s.observe(ctx, "Projects", nil, func(ctx context.Context) error {
		return s.store.View(ctx, func(r repository.Reader) error {
			count, err := r.ProjectCount(ctx)
			if err != nil {
				return err
			}
			for id := uint64(1); id <= count; id++ {
				p, err := r.Project(ctx, id)
				if err != nil {
					return err
				}
				if !f.matches(p) {
					continue
				}
				if total >= offset && len(items) < limit {
					items = append(items, p)
				}
				total++
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ProjectCount returns the last allocated project id.
func (s *Service) ProjectCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.observe(ctx, "ProjectCount", nil, func(ctx context.Context) error {
		return s.store.View(ctx, func(r repository.Reader) error {
			var err error
			n, err = r.ProjectCount(ctx)
			return err
		})
	})
	return n, err
}

// Events returns up to limit log entries after the sequence number after.
func (s *Service) Events(ctx context.Context, after uint64, limit int) ([]model.Event, error) {
	_, limit = s.page(0, limit)
	var out []model.Event
	err := s.observe(ctx, "Events", nil, func(ctx context.Context) error {
		return s.store.View(ctx, func(r repository.Reader) error {
			var err error
			out, err = r.Events(ctx, after, limit)
			return err
		})
	})
	return out, err
}

// page clamps paging parameters to the configured maximum.
func (s *Service) page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	return offset, min(limit, s.maxPageSize)
}

func projectAttrs(caller model.Identity, id uint64) []attribute.KeyValue {
	return append(callerAttrs(caller), attribute.String(tracing.AttrProjectID, strconv.FormatUint(id, 10)))
}
