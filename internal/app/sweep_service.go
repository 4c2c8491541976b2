package app

import (
	"context"
	"log"
	"time"

	"github.com/viljemd-hub/channel-manager-sub000/internal/clock"
)

// SweepService walks every unit and releases overdue soft holds. It is
// cron-invoked: one Run is one pass. A unit whose store is missing or
// unreadable is recorded in the summary and skipped; one bad unit never
// aborts the rest of the sweep.
type SweepService struct {
	store     SegmentStore
	lifecycle *LifecycleService
	clock     clock.Clock
	logger    *log.Logger
}

func NewSweepService(store SegmentStore, lifecycle *LifecycleService, clk clock.Clock, logger *log.Logger) *SweepService {
	if logger == nil {
		logger = log.Default()
	}
	return &SweepService{store: store, lifecycle: lifecycle, clock: clk, logger: logger}
}

// SweepSummary is the sweep's wire output, consumed by operational
// monitoring.
type SweepSummary struct {
	OK           bool                        `json:"ok"`
	Now          time.Time                   `json:"now"`
	UnitsScanned int                         `json:"units_scanned"`
	UnitsChanged int                         `json:"units_changed"`
	ExpiredCount int                         `json:"expired_count"`
	Units        map[string]SweepUnitSummary `json:"units"`
}

type SweepUnitSummary struct {
	OK             bool   `json:"ok"`
	ExpiredRemoved int    `json:"expired_removed"`
	Error          string `json:"error,omitempty"`
}

func (s *SweepService) Run(ctx context.Context) (SweepSummary, error) {
	now := s.clock.Now()
	summary := SweepSummary{
		OK:    true,
		Now:   now,
		Units: make(map[string]SweepUnitSummary),
	}

	units, err := s.store.Units(ctx)
	if err != nil {
		summary.OK = false
		return summary, err
	}
	summary.UnitsScanned = len(units)

	for _, unit := range units {
		expired, err := s.lifecycle.ExpireOverdue(ctx, unit, now)
		if err != nil {
			s.logger.Printf("WARN: sweep unit=%s failed: %v", unit, err)
			summary.OK = false
			summary.Units[unit] = SweepUnitSummary{Error: err.Error()}
			continue
		}
		summary.Units[unit] = SweepUnitSummary{OK: true, ExpiredRemoved: expired}
		if expired > 0 {
			summary.UnitsChanged++
			summary.ExpiredCount += expired
		}
	}
	return summary, nil
}
