/*
scheduler.go - Year file synchronization

PURPOSE:
  Operators may keep the yearly regulatory constants in a YAML file
  (LEVY_YEARS_FILE) instead of calling PUT /api/years/{year}. The scheduler
  periodically reloads that file and saves every year whose document
  changed, so a new year can be published by editing the file.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - A year is saved only when its stored document differs
  - Years missing from the file are left in the store
  - A file that fails to parse is logged and skipped; nothing is saved

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewYearFileScheduler(store, "config/years.yaml", logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - factory/yearconfig.go: YAML years file format
  - handlers.go: PutYear endpoint (manual provisioning)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/levy-engine/factory"
	"github.com/warp/levy-engine/metrics"
	"github.com/warp/levy-engine/store/sqlite"
)

// YearFileScheduler keeps the store in sync with a years YAML file.
type YearFileScheduler struct {
	Store         *sqlite.Store
	Factory       *factory.YearConfigFactory
	Path          string
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// SyncResult lists the years touched by one sync.
type SyncResult struct {
	Added     []int
	Updated   []int
	Unchanged []int
}

// NewYearFileScheduler creates a new scheduler.
func NewYearFileScheduler(store *sqlite.Store, path string, logger *slog.Logger) *YearFileScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &YearFileScheduler{
		Store:         store,
		Factory:       factory.NewYearConfigFactory(),
		Path:          path,
		CheckInterval: time.Minute,
		Enabled:       true,
		Logger:        logger.With("component", "year_sync"),
	}
}

// Start begins the scheduler. A stopped scheduler may be started again.
func (s *YearFileScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.Path == "" {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Logger.Info("started", "path", s.Path, "interval", s.CheckInterval)
}

// Stop stops the scheduler.
func (s *YearFileScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("stopped")
	}
}

func (s *YearFileScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.check()

	for {
		select {
		case <-s.ticker.C:
			s.check()
		case <-s.stop:
			return
		}
	}
}

func (s *YearFileScheduler) check() {
	res, err := s.SyncOnce(context.Background())
	if err != nil {
		s.Logger.Error("sync failed", "path", s.Path, "error", err)
		return
	}
	if len(res.Added) > 0 || len(res.Updated) > 0 {
		s.Logger.Info("years synced", "added", res.Added, "updated", res.Updated)
	}
}

// SyncOnce reloads the file and saves changed years.
func (s *YearFileScheduler) SyncOnce(ctx context.Context) (SyncResult, error) {
	var res SyncResult

	configs, err := s.Factory.ParseYAMLFile(s.Path)
	if err != nil {
		return res, err
	}

	for _, cfg := range configs {
		doc, err := factory.MarshalJSON(cfg)
		if err != nil {
			return res, err
		}
		existing, err := s.Store.GetYearConfig(ctx, cfg.Year)
		if err != nil {
			return res, err
		}
		switch {
		case existing == nil:
			res.Added = append(res.Added, cfg.Year)
		case existing.ConfigJSON != doc:
			res.Updated = append(res.Updated, cfg.Year)
		default:
			res.Unchanged = append(res.Unchanged, cfg.Year)
			continue
		}
		if err := s.Store.SaveYearConfig(ctx, cfg); err != nil {
			return res, err
		}
	}

	if records, err := s.Store.ListYearConfigs(ctx); err == nil {
		metrics.ProvisionedYears.Set(float64(len(records)))
	}
	return res, nil
}
