package service

import (
	"context"
	"runtime"

	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/pkg/metrics"
)

// Stats is a point-in-time view of the registry and its background machinery.
type Stats struct {
	Started          bool   `json:"started"`
	Owner            string `json:"owner"`
	Talents          int    `json:"talents"`
	VerifiedTalents  int    `json:"verified_talents"`
	Projects         uint64 `json:"projects"`
	ActiveProjects   int    `json:"active_projects"`
	Events           uint64 `json:"events"`
	Workers          int    `json:"workers"`
	QueueLength      int    `json:"queue_length"`
	QueueCapacity    int    `json:"queue_capacity"`
	DirectoryEntries int    `json:"directory_entries"`
	DedupeEntries    int64  `json:"dedupe_entries"`
	Goroutines       int    `json:"goroutines"`
}

// GetStats returns service statistics and refreshes the registry gauges.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	reg, err := s.registryStats(ctx)
	if err != nil {
		return Stats{}, err
	}

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	st := Stats{
		Started:          started,
		Owner:            s.owner.String(),
		Talents:          reg.Talents,
		VerifiedTalents:  reg.VerifiedTalents,
		Projects:         reg.Projects,
		ActiveProjects:   reg.ActiveProjects,
		Events:           reg.Events,
		Workers:          s.workerPool.Size(),
		QueueLength:      s.eventQueue.Len(ctx),
		QueueCapacity:    s.queueSize,
		DirectoryEntries: s.directory.Len(),
		DedupeEntries:    s.deduper.Size(),
		Goroutines:       runtime.NumGoroutine(),
	}
	metrics.UpdateRegistryCounts(st.Talents, st.VerifiedTalents, int(st.Projects), st.ActiveProjects) //nolint:gosec // project ids fit in int
	metrics.UpdateDirectoryEntries(st.DirectoryEntries)
	return st, nil
}

func (s *Service) registryStats(ctx context.Context) (repository.Stats, error) {
	var st repository.Stats
	err := s.observe(ctx, "Stats", nil, func(ctx context.Context) error {
		return s.store.View(ctx, func(r repository.Reader) error {
			var err error
			st, err = r.Stats(ctx)
			return err
		})
	})
	return st, err
}
