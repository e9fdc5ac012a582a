// Package refresh re-materializes foreign tables on their cron schedules.
package refresh

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"duck-restfdw/internal/config"
	"duck-restfdw/internal/engine"
)

// Materializer loads one table into the query engine.
type Materializer interface {
	Materialize(ctx context.Context, name string) (*engine.ScanResult, error)
}

// Scheduler manages cron-based table refreshes.
type Scheduler struct {
	cron    *cron.Cron
	mat     Materializer
	tables  *config.TablesFile
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID // table name → cron entry
	baseCtx context.Context
}

// NewScheduler creates a new refresh scheduler.
func NewScheduler(mat Materializer, tables *config.TablesFile, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		mat:     mat,
		tables:  tables,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
		baseCtx: context.Background(),
	}
}

// Start registers every table that has a refresh schedule and starts the
// cron loop. Refreshes run under ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseCtx = ctx
	if err := s.loadSchedules(); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("refresh scheduler started", "tables", len(s.entries))
	return nil
}

// Stop stops the cron loop and waits for running refreshes to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("refresh scheduler stopped")
}

// Scheduled returns the names of the tables with a registered schedule.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for _, t := range s.tables.Tables {
		if _, ok := s.entries[t.Name]; ok {
			names = append(names, t.Name)
		}
	}
	return names
}

func (s *Scheduler) loadSchedules() error {
	for _, t := range s.tables.Tables {
		schedule := t.RefreshSchedule()
		if schedule == "" {
			continue
		}
		name := t.Name
		entryID, err := s.cron.AddFunc(schedule, func() { s.refresh(name) })
		if err != nil {
			s.logger.Warn("invalid cron schedule", "table", name, "schedule", schedule, "error", err)
			continue
		}
		s.entries[name] = entryID
		s.logger.Info("scheduled table refresh", "table", name, "schedule", schedule)
	}
	return nil
}

func (s *Scheduler) refresh(name string) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	res, err := s.mat.Materialize(ctx, name)
	if err != nil {
		s.logger.Warn("scheduled refresh failed", "table", name, "error", err)
		return
	}
	s.logger.Info("scheduled refresh finished", "table", name, "rows", res.Rows, "duration", res.Duration)
}
