package app

import (
	"context"
	"testing"
	"time"

	"github.com/viljemd-hub/channel-manager-sub000/internal/clock"
	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

func autopilotFixture(t *testing.T, now time.Time, store *fakeSegmentStore) *Autopilot {
	t.Helper()
	clk := clock.NewFixed(now)
	lifecycle := NewLifecycleService(store, clk)
	checker := NewConflictChecker(store)
	return NewAutopilot(lifecycle, checker, clk, nil)
}

func defaultPolicy() AutopilotPolicy {
	return AutopilotPolicy{
		Enabled:              true,
		Mode:                 "auto_confirm_on_accept",
		MinDaysBeforeArrival: 2,
		MaxNights:            14,
		AllowedSources:       []string{"direct", "website", "internal"},
	}
}

func TestAutopilot_Decide(t *testing.T) {
	t.Parallel()

	// Arrival 2025-07-10 is 39 days out from the fixed clock.
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	newHold := func(t *testing.T, store *fakeSegmentStore, start, end string) domain.Segment {
		t.Helper()
		exp := now.Add(time.Hour)
		hold := softHold(t, "hold-1", "inq-1", start, end, &exp)
		store.raw["a1"] = []domain.Segment{hold}
		store.published["a1"] = []domain.Segment{hold}
		return hold
	}

	t.Run("promotes when all filters pass", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-14")
		ap := autopilotFixture(t, now, store)

		dec, err := ap.Decide(context.Background(), "a1", hold, defaultPolicy())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !dec.Promoted || dec.Reason != ReasonOK {
			t.Fatalf("expected promotion, got %+v", dec)
		}
		if got := store.raw["a1"][0]; got.Lock != domain.LockHard || got.ExpiresAt != nil {
			t.Fatalf("hold not promoted in store: %+v", got)
		}
	})

	t.Run("disabled leaves hold soft", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-14")
		ap := autopilotFixture(t, now, store)

		policy := defaultPolicy()
		policy.Enabled = false
		dec, err := ap.Decide(context.Background(), "a1", hold, policy)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dec.Promoted || dec.Reason != ReasonDisabled {
			t.Fatalf("expected disabled rejection, got %+v", dec)
		}
		if store.raw["a1"][0].Lock != domain.LockSoft {
			t.Fatalf("hold must stay soft")
		}
	})

	t.Run("source not allowed", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-14")
		hold.Source = domain.SourceExternal
		ap := autopilotFixture(t, now, store)

		dec, err := ap.Decide(context.Background(), "a1", hold, defaultPolicy())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dec.Reason != ReasonSourceNotAllowed {
			t.Fatalf("expected source_not_allowed, got %s", dec.Reason)
		}
	})

	t.Run("too many nights", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-30") // 20 nights
		ap := autopilotFixture(t, now, store)

		dec, err := ap.Decide(context.Background(), "a1", hold, defaultPolicy())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dec.Promoted || dec.Reason != ReasonTooManyNights {
			t.Fatalf("expected too_many_nights, got %+v", dec)
		}
		if pub := store.published["a1"]; len(pub) != 1 || pub[0].Lock != domain.LockSoft {
			t.Fatalf("published timeline must be unchanged on rejection")
		}
	})

	t.Run("too soon before arrival", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-06-02", "2025-06-05") // 1 day out
		ap := autopilotFixture(t, now, store)

		dec, err := ap.Decide(context.Background(), "a1", hold, defaultPolicy())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dec.Reason != ReasonTooSoon {
			t.Fatalf("expected too_soon, got %s", dec.Reason)
		}
	})

	t.Run("fresh hard lock blocks promotion", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-14")
		// A new ICS import landed after acceptance.
		store.published["a1"] = append(store.published["a1"],
			hardSeg(t, "ics-new", "2025-07-12", "2025-07-16", domain.SourceICS))
		ap := autopilotFixture(t, now, store)

		dec, err := ap.Decide(context.Background(), "a1", hold, defaultPolicy())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dec.Promoted || dec.Reason != ReasonICSConflict {
			t.Fatalf("expected ics_conflict, got %+v", dec)
		}
		if len(dec.Conflicts) != 1 || dec.Conflicts[0].ID != "ics-new" {
			t.Fatalf("expected the blocking segment reported, got %+v", dec.Conflicts)
		}
		if store.raw["a1"][0].Lock != domain.LockSoft {
			t.Fatalf("hold must remain soft for manual resolution")
		}
	})

	t.Run("test mode bypasses the re-check", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-14")
		store.published["a1"] = append(store.published["a1"],
			hardSeg(t, "ics-new", "2025-07-12", "2025-07-16", domain.SourceICS))
		ap := autopilotFixture(t, now, store)

		policy := defaultPolicy()
		policy.TestMode = true
		dec, err := ap.Decide(context.Background(), "a1", hold, policy)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !dec.Promoted {
			t.Fatalf("test mode must bypass the hard-lock re-check, got %+v", dec)
		}
	})

	t.Run("test window in the past does not bypass", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-14")
		store.published["a1"] = append(store.published["a1"],
			hardSeg(t, "ics-new", "2025-07-12", "2025-07-16", domain.SourceICS))
		ap := autopilotFixture(t, now, store)

		policy := defaultPolicy()
		policy.TestModeUntil = now.Add(-24 * time.Hour)
		dec, err := ap.Decide(context.Background(), "a1", hold, policy)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dec.Reason != ReasonICSConflict {
			t.Fatalf("closed test window must not bypass the re-check, got %+v", dec)
		}
	})

	t.Run("empty allow-list admits any source", func(t *testing.T) {
		store := newFakeSegmentStore()
		hold := newHold(t, store, "2025-07-10", "2025-07-14")
		hold.Source = domain.SourceExternal
		ap := autopilotFixture(t, now, store)

		policy := defaultPolicy()
		policy.AllowedSources = nil
		dec, err := ap.Decide(context.Background(), "a1", hold, policy)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !dec.Promoted {
			t.Fatalf("expected promotion with empty allow-list, got %+v", dec)
		}
	})
}
