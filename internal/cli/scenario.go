package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/talentboard/internal/adapters/http/api"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/pkg/logger"
)

// ScenarioConfig sizes the concurrent registration phase that follows the
// lifecycle scenarios.
type ScenarioConfig struct {
	Talents int
	Workers int
}

// Result is the outcome of one scenario.
type Result struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ErrScenarioFailed is returned when any scenario did not pass.
var ErrScenarioFailed = errors.New("scenario failed")

// RunScenarios drives the registry through the project lifecycle against a
// live server. Every scenario uses freshly generated identities so runs can
// repeat against the same server. The owner identity is read from /stats.
func RunScenarios(ctx context.Context, c *Client, cfg ScenarioConfig) ([]Result, error) {
	log := logger.Named("scenario")
	if err := c.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}
	rawOwner, _ := stats["owner"].(string)
	owner, err := model.ParseIdentity(rawOwner)
	if err != nil {
		return nil, fmt.Errorf("server has no owner configured: %w", err)
	}

	s := &scenarios{c: c, owner: owner}
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"assign_verified_talent", s.assignVerified},
		{"verify_by_non_owner", s.verifyByNonOwner},
		{"close_then_assign", s.closeThenAssign},
		{"assign_unverified_talent", s.assignUnverified},
		{"concurrent_registration", func(ctx context.Context) error { return s.registerMany(ctx, cfg) }},
	}

	results := make([]Result, 0, len(steps))
	failed := false
	for _, step := range steps {
		start := time.Now()
		err := step.run(ctx)
		r := Result{Name: step.name, Passed: err == nil, Duration: time.Since(start)}
		if err != nil {
			failed = true
			r.Error = err.Error()
			log.Error(ctx, "scenario failed", logger.String("scenario", step.name), logger.Error(err))
		} else {
			log.Info(ctx, "scenario passed", logger.String("scenario", step.name), logger.Duration("duration", r.Duration))
		}
		results = append(results, r)
	}
	if failed {
		return results, ErrScenarioFailed
	}
	return results, nil
}

type scenarios struct {
	c     *Client
	owner model.Identity
}

// NewIdentity generates an identity backed by a fresh secp256k1 key.
func NewIdentity() (model.Identity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return model.IdentityFromAddress(crypto.PubkeyToAddress(key.PublicKey)), nil
}

func identities(n int) ([]model.Identity, error) {
	out := make([]model.Identity, n)
	for i := range out {
		id, err := NewIdentity()
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func sampleProject() api.CreateProjectRequest {
	return api.CreateProjectRequest{
		Title:          "Scenario project",
		Description:    "Created by registryctl scenario",
		Budget:         model.Ether(1),
		RequiredSkills: []string{"go"},
		Deadline:       time.Now().Add(24 * time.Hour).UTC(),
	}
}

func (s *scenarios) assignVerified(ctx context.Context) error {
	ids, err := identities(2)
	if err != nil {
		return err
	}
	client, talent := ids[0], ids[1]

	if _, err := s.c.RegisterTalent(ctx, Call{As: talent}, api.ProfileRequest{Name: "Scenario talent"}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if _, err := s.c.VerifyTalent(ctx, Call{As: s.owner}, talent); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	p, err := s.c.CreateProject(ctx, Call{As: client}, sampleProject())
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	p, err = s.c.AssignProject(ctx, Call{As: client}, p.ID, talent)
	if err != nil {
		return fmt.Errorf("assign: %w", err)
	}
	if p.State != model.ProjectAssigned || p.AssignedTalent != talent.String() {
		return fmt.Errorf("project %d: state %s assigned to %q", p.ID, p.State, p.AssignedTalent)
	}
	t, err := s.c.Talent(ctx, talent)
	if err != nil {
		return fmt.Errorf("read talent: %w", err)
	}
	if t.ProjectCount != 1 {
		return fmt.Errorf("talent project count %d, want 1", t.ProjectCount)
	}
	return nil
}

func (s *scenarios) verifyByNonOwner(ctx context.Context) error {
	ids, err := identities(2)
	if err != nil {
		return err
	}
	client, talent := ids[0], ids[1]

	if _, err := s.c.RegisterTalent(ctx, Call{As: talent}, api.ProfileRequest{Name: "Scenario talent"}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if _, err := s.c.CreateProject(ctx, Call{As: client}, sampleProject()); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	_, err = s.c.VerifyTalent(ctx, Call{As: client}, talent)
	if err := expectCode(err, model.ErrNotOwner); err != nil {
		return err
	}
	t, err := s.c.Talent(ctx, talent)
	if err != nil {
		return fmt.Errorf("read talent: %w", err)
	}
	if t.IsVerified {
		return fmt.Errorf("talent %s verified by a non-owner", talent)
	}
	return nil
}

func (s *scenarios) closeThenAssign(ctx context.Context) error {
	ids, err := identities(2)
	if err != nil {
		return err
	}
	client, talent := ids[0], ids[1]

	if _, err := s.c.RegisterTalent(ctx, Call{As: talent}, api.ProfileRequest{Name: "Scenario talent"}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if _, err := s.c.VerifyTalent(ctx, Call{As: s.owner}, talent); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	p, err := s.c.CreateProject(ctx, Call{As: client}, sampleProject())
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if p, err = s.c.CloseProject(ctx, Call{As: client}, p.ID); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if p.State != model.ProjectClosed {
		return fmt.Errorf("project %d: state %s after close", p.ID, p.State)
	}
	_, err = s.c.AssignProject(ctx, Call{As: client}, p.ID, talent)
	return expectCode(err, model.ErrProjectNotActive)
}

func (s *scenarios) assignUnverified(ctx context.Context) error {
	ids, err := identities(2)
	if err != nil {
		return err
	}
	client, talent := ids[0], ids[1]

	if _, err := s.c.RegisterTalent(ctx, Call{As: talent}, api.ProfileRequest{Name: "Scenario talent"}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	p, err := s.c.CreateProject(ctx, Call{As: client}, sampleProject())
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	_, err = s.c.AssignProject(ctx, Call{As: client}, p.ID, talent)
	if err := expectCode(err, model.ErrTalentNotVerified); err != nil {
		return err
	}
	if p, err = s.c.Project(ctx, p.ID); err != nil {
		return fmt.Errorf("read project: %w", err)
	}
	if p.State != model.ProjectOpen {
		return fmt.Errorf("project %d: state %s after rejected assign", p.ID, p.State)
	}
	return nil
}

// registerMany registers cfg.Talents identities from cfg.Workers goroutines,
// sending each request twice under one idempotency key. Exactly one of each
// pair must succeed.
func (s *scenarios) registerMany(ctx context.Context, cfg ScenarioConfig) error {
	if cfg.Talents <= 0 {
		return nil
	}
	workers := max(cfg.Workers, 1)
	ids, err := identities(cfg.Talents)
	if err != nil {
		return err
	}

	var (
		created    int64
		duplicates int64
		failures   int64
		wg         sync.WaitGroup
		work       = make(chan int, workers*2)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				call := Call{As: ids[i], IdempotencyKey: "scenario-" + strconv.Itoa(i)}
				req := api.ProfileRequest{Name: "Load talent " + strconv.Itoa(i)}
				for range 2 {
					_, err := s.c.RegisterTalent(ctx, call, req)
					switch {
					case err == nil:
						atomic.AddInt64(&created, 1)
					case Code(err) == "duplicate_request":
						atomic.AddInt64(&duplicates, 1)
					default:
						atomic.AddInt64(&failures, 1)
					}
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for i := range ids {
			select {
			case <-ctx.Done():
				return
			case work <- i:
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failures > 0 || created != int64(cfg.Talents) || duplicates != int64(cfg.Talents) {
		return fmt.Errorf("created %d, duplicates %d, failures %d for %d talents", created, duplicates, failures, cfg.Talents)
	}
	return nil
}

func expectCode(err error, want *model.RegistryError) error {
	if err == nil {
		return fmt.Errorf("expected %s, call succeeded", want.Code)
	}
	if got := Code(err); got != want.Code {
		return fmt.Errorf("expected %s, got %w", want.Code, err)
	}
	return nil
}
