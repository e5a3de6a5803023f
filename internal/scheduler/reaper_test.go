package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
)

func TestReaperCollectRemovesOldTerminatedRecords(t *testing.T) {
	log := logger.New("error", false)
	roster := pool.NewRoster("web")

	roster.Add(&domain.Member{ID: "live", State: domain.StateHealthy})
	roster.Add(&domain.Member{
		ID:           "old",
		State:        domain.StateTerminated,
		TerminatedAt: time.Now().Add(-48 * time.Hour),
	})
	roster.Add(&domain.Member{
		ID:           "recent",
		State:        domain.StateTerminated,
		TerminatedAt: time.Now().Add(-time.Hour),
	})

	rp := NewReaper(nil, roster, log, time.Hour, 24*time.Hour)
	if err := rp.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if _, ok := roster.Get("old"); ok {
		t.Error("old terminated record should have been reaped")
	}
	if _, ok := roster.Get("recent"); !ok {
		t.Error("recent terminated record should have been kept")
	}
	if _, ok := roster.Get("live"); !ok {
		t.Error("live member should never be reaped")
	}
}

func TestReaperCollectSkipsZeroTerminatedAt(t *testing.T) {
	log := logger.New("error", false)
	roster := pool.NewRoster("web")

	// Terminated state without a timestamp: keep it rather than guessing.
	roster.Add(&domain.Member{ID: "odd", State: domain.StateTerminated})

	rp := NewReaper(nil, roster, log, time.Hour, 24*time.Hour)
	if err := rp.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if _, ok := roster.Get("odd"); !ok {
		t.Error("record without TerminatedAt should have been kept")
	}
}

func TestReaperDefaultThreshold(t *testing.T) {
	rp := NewReaper(nil, pool.NewRoster("web"), logger.New("error", false), time.Hour, 0)
	if rp.threshold != DefaultReapThreshold {
		t.Errorf("threshold = %v, want %v", rp.threshold, DefaultReapThreshold)
	}
}
