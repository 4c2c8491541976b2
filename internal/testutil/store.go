// Package testutil provides store seeding helpers for tests that need a
// realistic data directory rather than an in-test fake.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
	"github.com/viljemd-hub/channel-manager-sub000/internal/merge"
)

// SegmentWriter is the store surface seeding needs.
type SegmentWriter interface {
	Save(ctx context.Context, unit string, segs []domain.Segment) error
	SavePublished(ctx context.Context, unit string, segs []domain.Segment) error
}

// SeedUnit saves raw segments for a unit and publishes the merged
// timeline, leaving the unit in the consistent state a lifecycle
// mutation would.
func SeedUnit(t *testing.T, store SegmentWriter, unit string, raw []domain.Segment) {
	t.Helper()
	ctx := context.Background()
	if err := store.Save(ctx, unit, raw); err != nil {
		t.Fatalf("seed raw for %s: %v", unit, err)
	}
	if err := store.SavePublished(ctx, unit, merge.Regenerate(raw).Published); err != nil {
		t.Fatalf("seed published for %s: %v", unit, err)
	}
}

// MustRange parses a half-open date range or fails the test.
func MustRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	r, err := domain.NewRange(start, end)
	if err != nil {
		t.Fatalf("range %s..%s: %v", start, end, err)
	}
	return r
}

// HardSegment builds a hard-locked segment for seeding.
func HardSegment(t *testing.T, id, start, end string, source domain.SourceKind) domain.Segment {
	t.Helper()
	return domain.Segment{
		ID:        id,
		DateRange: MustRange(t, start, end),
		Status:    domain.StatusReserved,
		Lock:      domain.LockHard,
		Source:    source,
	}
}

// SoftHold builds a TTL-bearing soft hold for seeding.
func SoftHold(t *testing.T, id, ref, start, end string, expires time.Time) domain.Segment {
	t.Helper()
	return domain.Segment{
		ID:          id,
		DateRange:   MustRange(t, start, end),
		Status:      domain.StatusReserved,
		Lock:        domain.LockSoft,
		Source:      domain.SourceInternal,
		ReferenceID: ref,
		ExpiresAt:   &expires,
	}
}
