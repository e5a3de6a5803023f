package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/steward-lb/steward/internal/director"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/sources/rulesfile"
)

// RulesReloader handles periodic reloading of the routing rules file
type RulesReloader struct {
	loader        *rulesfile.Loader
	mapper        *rulesfile.Mapper
	director      *director.Director
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewRulesReloader creates a new rules reloader
func NewRulesReloader(
	rulesFile string,
	mapper *rulesfile.Mapper,
	d *director.Director,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *RulesReloader {
	return &RulesReloader{
		loader:        rulesfile.NewLoader(rulesFile),
		mapper:        mapper,
		director:      d,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic reload process
func (rr *RulesReloader) Start(ctx context.Context) error {
	ticker := time.NewTicker(rr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := rr.Reload(ctx); err != nil {
					rr.logger.Error("failed to reload rules", logger.Error(err))
				}
			case <-rr.manualTrigger:
				rr.logger.Info("manual rules reload triggered")
				if err := rr.Reload(ctx); err != nil {
					rr.logger.Error("failed to reload rules", logger.Error(err))
				}
			case <-rr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (rr *RulesReloader) Stop() {
	close(rr.stopCh)
}

// Reload loads the rules file and swaps the director's routing table.
// A file that fails to load or validate leaves the current table in
// place.
func (rr *RulesReloader) Reload(ctx context.Context) error {
	rr.logger.Info("reloading routing rules")

	schema, err := rr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	table, err := rr.mapper.Map(schema)
	if err != nil {
		return fmt.Errorf("failed to map rules: %w", err)
	}

	rr.director.SetTable(table)

	rr.logger.Info("routing rules reloaded",
		logger.Int("rules", len(table.Rules)),
		logger.Int("listener_port", table.Listener.Port))

	return nil
}
