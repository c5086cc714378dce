package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/talentboard/internal/adapters/directory"
	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/tracing"
)

// RegisterTalent creates the caller's talent record, unverified and with
// zeroed statistics.
func (s *Service) RegisterTalent(ctx context.Context, caller model.Identity, p model.Profile) (model.Talent, error) {
	var out model.Talent
	err := s.observe(ctx, "RegisterTalent", callerAttrs(caller), func(ctx context.Context) error {
		if caller.IsZero() {
			return model.ErrInvalidIdentity
		}
		if err := p.Validate(); err != nil {
			return err
		}
		return s.mutate(ctx, func(tx repository.Tx, now time.Time) (model.Event, error) {
			existing, err := loadTalent(ctx, tx, caller)
			if err != nil {
				return model.Event{}, err
			}
			if existing.Exists() {
				return model.Event{}, model.ErrAlreadyRegistered
			}
			t, err := model.NewTalent(caller, p, now)
			if err != nil {
				return model.Event{}, err
			}
			if err := tx.PutTalent(ctx, t); err != nil {
				return model.Event{}, err
			}
			out = t
			return model.Event{Kind: model.EventTalentRegistered, Caller: caller, Talent: caller}, nil
		})
	})
	if err != nil {
		return model.Talent{}, err
	}
	return out, nil
}

// UpdateTalentProfile overwrites the caller's profile fields. Verification,
// rating and project count are kept.
func (s *Service) UpdateTalentProfile(ctx context.Context, caller model.Identity, p model.Profile) (model.Talent, error) {
	var out model.Talent
	err := s.observe(ctx, "UpdateTalentProfile", callerAttrs(caller), func(ctx context.Context) error {
		return s.mutate(ctx, func(tx repository.Tx, now time.Time) (model.Event, error) {
			t, err := loadTalent(ctx, tx, caller)
			if err != nil {
				return model.Event{}, err
			}
			if err := t.UpdateProfile(p, now); err != nil {
				return model.Event{}, err
			}
			if err := tx.PutTalent(ctx, t); err != nil {
				return model.Event{}, err
			}
			out = t
			return model.Event{Kind: model.EventTalentUpdated, Caller: caller, Talent: caller}, nil
		})
	})
	if err != nil {
		return model.Talent{}, err
	}
	return out, nil
}

// VerifyTalent marks target verified. Only the owner may call it; verifying
// an already verified talent succeeds and records nothing.
func (s *Service) VerifyTalent(ctx context.Context, caller, target model.Identity) (model.Talent, error) {
	var out model.Talent
	attrs := append(callerAttrs(caller), attribute.String(tracing.AttrTalent, target.String()))
	err := s.observe(ctx, "VerifyTalent", attrs, func(ctx context.Context) error {
		if s.owner.IsZero() || caller != s.owner {
			return model.ErrNotOwner
		}
		return s.mutate(ctx, func(tx repository.Tx, _ time.Time) (model.Event, error) {
			t, err := loadTalent(ctx, tx, target)
			if err != nil {
				return model.Event{}, err
			}
			if !t.Exists() {
				return model.Event{}, model.ErrNotRegistered
			}
			changed := t.Verify()
			out = t
			if !changed {
				return model.Event{}, nil
			}
			if err := tx.PutTalent(ctx, t); err != nil {
				return model.Event{}, err
			}
			return model.Event{Kind: model.EventTalentVerified, Caller: caller, Talent: target}, nil
		})
	})
	if err != nil {
		return model.Talent{}, err
	}
	return out, nil
}

// TalentInfo returns the talent registered under id. Unknown identities get
// an empty record carrying only the identity; Exists reports false for it.
func (s *Service) TalentInfo(ctx context.Context, id model.Identity) (model.Talent, error) {
	var out model.Talent
	err := s.observe(ctx, "TalentInfo", []attribute.KeyValue{attribute.String(tracing.AttrTalent, id.String())}, func(ctx context.Context) error {
		return s.store.View(ctx, func(r repository.Reader) error {
			t, err := loadTalent(ctx, r, id)
			if err != nil {
				return err
			}
			if !t.Exists() {
				t = model.Talent{Identity: id}
			}
			out = t
			return nil
		})
	})
	return out, err
}

// TalentCount returns the number of registered talents.
func (s *Service) TalentCount(ctx context.Context) (int, error) {
	st, err := s.registryStats(ctx)
	return st.Talents, err
}

// SearchTalents queries the talent directory. Results trail committed
// writes by the time the workers take to apply them.
func (s *Service) SearchTalents(_ context.Context, q directory.Query) ([]model.Talent, int) {
	return s.directory.Search(q)
}

func callerAttrs(caller model.Identity) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(tracing.AttrCaller, caller.String())}
}
