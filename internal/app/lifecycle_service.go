package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/viljemd-hub/channel-manager-sub000/internal/clock"
	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
	"github.com/viljemd-hub/channel-manager-sub000/internal/merge"
)

// LifecycleService owns every mutation of a unit's raw segments: soft
// holds, promotion, release, admin blocks and reservations, and the
// external ICS layer. Each mutation runs inside the unit's lock and
// finishes by regenerating the published timeline, so the published view
// is never stale relative to the raw store.
type LifecycleService struct {
	store   SegmentStore
	clock   clock.Clock
	logger  *log.Logger
	holdTTL time.Duration
}

const defaultHoldTTL = 48 * time.Hour

func NewLifecycleService(store SegmentStore, clk clock.Clock, opts ...LifecycleOption) *LifecycleService {
	svc := &LifecycleService{
		store:   store,
		clock:   clk,
		logger:  log.Default(),
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type LifecycleOption func(*LifecycleService)

// WithHoldTTL overrides the default TTL for new soft holds.
func WithHoldTTL(d time.Duration) LifecycleOption {
	return func(s *LifecycleService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithLogger(logger *log.Logger) LifecycleOption {
	return func(s *LifecycleService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type CreateSoftHoldInput struct {
	Unit        string
	Range       domain.DateRange
	ReferenceID string
	// TTL of zero means the service default. Holds always carry an
	// expiry; untimed soft blocks go through AddSegment instead.
	TTL    time.Duration
	Source domain.SourceKind
	Meta   map[string]string
}

type CreateSoftHoldResult struct {
	Segment domain.Segment
	// PendingConflicts are existing soft holds overlapping the same
	// dates. They do not block creation; the admin resolves them later.
	PendingConflicts []domain.Segment
}

// CreateSoftHold places a TTL-bearing soft hold. A hard-lock overlap in
// the published timeline rejects it with a ConflictError; soft overlaps
// are allowed but reported back.
func (s *LifecycleService) CreateSoftHold(ctx context.Context, in CreateSoftHoldInput) (CreateSoftHoldResult, error) {
	if in.Unit == "" {
		return CreateSoftHoldResult{}, domain.ErrUnitRequired
	}
	if in.ReferenceID == "" {
		return CreateSoftHoldResult{}, domain.ErrReferenceRequired
	}
	if err := in.Range.Validate(); err != nil {
		return CreateSoftHoldResult{}, err
	}

	source := in.Source
	if source == "" {
		source = domain.SourceInternal
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	var result CreateSoftHoldResult
	err := s.store.WithUnitLock(ctx, in.Unit, func(ctx context.Context) error {
		published, err := s.store.LoadPublished(ctx, in.Unit)
		if err != nil {
			return err
		}
		if hard := evaluate(published, in.Range, true); hard.Conflict {
			return &ConflictError{Matching: hard.Matching}
		}
		if soft := evaluate(published, in.Range, false); soft.Strength == domain.LockSoft {
			result.PendingConflicts = softOnly(soft.Matching)
		}

		raw, err := s.store.Load(ctx, in.Unit)
		if err != nil {
			return err
		}

		expires := s.clock.Now().Add(ttl)
		seg := domain.Segment{
			ID:          uuid.NewString(),
			DateRange:   in.Range,
			Status:      domain.StatusReserved,
			Lock:        domain.LockSoft,
			Source:      source,
			ReferenceID: in.ReferenceID,
			ExpiresAt:   &expires,
			Meta:        in.Meta,
		}

		raw = append(raw, seg)
		if err := s.store.Save(ctx, in.Unit, raw); err != nil {
			return err
		}
		result.Segment = seg
		return s.regenerate(ctx, in.Unit, raw)
	})
	if err != nil {
		return CreateSoftHoldResult{}, err
	}
	return result, nil
}

// Promote flips a soft hold to a confirmed hard lock and clears its
// expiry. The segment is re-read inside the unit lock, so racing the
// sweep can never silently succeed: a hold still present but past its
// TTL fails with ErrHoldExpired, one the sweep already removed fails
// with ErrSegmentNotFound.
func (s *LifecycleService) Promote(ctx context.Context, unit, referenceID string) (domain.Segment, error) {
	if unit == "" {
		return domain.Segment{}, domain.ErrUnitRequired
	}
	if referenceID == "" {
		return domain.Segment{}, domain.ErrReferenceRequired
	}

	var promoted domain.Segment
	err := s.store.WithUnitLock(ctx, unit, func(ctx context.Context) error {
		raw, err := s.store.Load(ctx, unit)
		if err != nil {
			return err
		}
		idx := findHold(raw, referenceID)
		if idx < 0 {
			return domain.ErrSegmentNotFound
		}
		if raw[idx].ExpiredAt(s.clock.Now()) {
			return domain.ErrHoldExpired
		}

		raw[idx].Lock = domain.LockHard
		raw[idx].Status = domain.StatusConfirmed
		raw[idx].ExpiresAt = nil

		if err := s.store.Save(ctx, unit, raw); err != nil {
			return err
		}
		promoted = raw[idx]
		return s.regenerate(ctx, unit, raw)
	})
	if err != nil {
		return domain.Segment{}, err
	}
	return promoted, nil
}

// Release deletes a soft hold (TTL expiry, rejection, or cancellation).
func (s *LifecycleService) Release(ctx context.Context, unit, referenceID string) error {
	if unit == "" {
		return domain.ErrUnitRequired
	}
	if referenceID == "" {
		return domain.ErrReferenceRequired
	}

	return s.store.WithUnitLock(ctx, unit, func(ctx context.Context) error {
		raw, err := s.store.Load(ctx, unit)
		if err != nil {
			return err
		}
		idx := findHold(raw, referenceID)
		if idx < 0 {
			return domain.ErrSegmentNotFound
		}
		raw = append(raw[:idx], raw[idx+1:]...)
		if err := s.store.Save(ctx, unit, raw); err != nil {
			return err
		}
		return s.regenerate(ctx, unit, raw)
	})
}

type AddSegmentInput struct {
	Unit    string
	Segment domain.Segment
}

// AddSegment records an admin block, direct reservation, or cleaning
// window. Direct reservations reject any conflict at all; other
// segments reject only hard-lock conflicts.
func (s *LifecycleService) AddSegment(ctx context.Context, in AddSegmentInput) (domain.Segment, error) {
	if in.Unit == "" {
		return domain.Segment{}, domain.ErrUnitRequired
	}
	seg := in.Segment
	if err := seg.Validate(); err != nil {
		return domain.Segment{}, err
	}
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	if seg.Lock == "" {
		seg.Lock = domain.LockHard
	}
	if seg.Status == "" {
		if seg.Lock == domain.LockHard && seg.Source == domain.SourceAdmin {
			seg.Status = domain.StatusBlocked
		} else {
			seg.Status = domain.StatusReserved
		}
	}

	var added domain.Segment
	err := s.store.WithUnitLock(ctx, in.Unit, func(ctx context.Context) error {
		published, err := s.store.LoadPublished(ctx, in.Unit)
		if err != nil {
			return err
		}
		if seg.Source == domain.SourceDirect {
			if res := evaluate(published, seg.DateRange, false); res.Conflict {
				return &ConflictError{Matching: res.Matching}
			}
		} else if res := evaluate(published, seg.DateRange, true); res.Conflict {
			return &ConflictError{Matching: res.Matching}
		}

		raw, err := s.store.Load(ctx, in.Unit)
		if err != nil {
			return err
		}
		raw = append(raw, seg)
		if err := s.store.Save(ctx, in.Unit, raw); err != nil {
			return err
		}
		added = seg
		return s.regenerate(ctx, in.Unit, raw)
	})
	if err != nil {
		return domain.Segment{}, err
	}
	return added, nil
}

// RemoveSegment deletes a segment by ID. This is the unblock/cancel
// path; removing hard locks is an explicit administrative action whose
// authorization happens upstream.
func (s *LifecycleService) RemoveSegment(ctx context.Context, unit, id string) error {
	if unit == "" {
		return domain.ErrUnitRequired
	}
	if id == "" {
		return domain.ErrReferenceRequired
	}

	return s.store.WithUnitLock(ctx, unit, func(ctx context.Context) error {
		raw, err := s.store.Load(ctx, unit)
		if err != nil {
			return err
		}
		idx := -1
		for i := range raw {
			if raw[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return domain.ErrSegmentNotFound
		}
		raw = append(raw[:idx], raw[idx+1:]...)
		if err := s.store.Save(ctx, unit, raw); err != nil {
			return err
		}
		return s.regenerate(ctx, unit, raw)
	})
}

// ImportExternal replaces the unit's imported busy ranges for one
// platform wholesale with already-parsed date ranges. Imports are hard
// locks; the ICS fetch and parse happen upstream.
func (s *LifecycleService) ImportExternal(ctx context.Context, unit, platform string, ranges []domain.DateRange) (int, error) {
	if unit == "" {
		return 0, domain.ErrUnitRequired
	}
	if platform == "" {
		return 0, domain.ErrReferenceRequired
	}
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}

	var count int
	err := s.store.WithUnitLock(ctx, unit, func(ctx context.Context) error {
		raw, err := s.store.Load(ctx, unit)
		if err != nil {
			return err
		}
		kept := raw[:0:0]
		for _, seg := range raw {
			if seg.Source == domain.SourceICS && seg.Platform == platform {
				continue
			}
			kept = append(kept, seg)
		}
		for _, r := range ranges {
			kept = append(kept, domain.Segment{
				ID:        uuid.NewString(),
				DateRange: r,
				Status:    domain.StatusReserved,
				Lock:      domain.LockHard,
				Source:    domain.SourceICS,
				Platform:  platform,
			})
		}
		if err := s.store.Save(ctx, unit, kept); err != nil {
			return err
		}
		count = len(ranges)
		return s.regenerate(ctx, unit, kept)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExpireOverdue removes every soft hold whose TTL has passed, saving and
// regenerating at most once for the whole batch. Soft segments without
// an expiry are never touched. Used by the sweep.
func (s *LifecycleService) ExpireOverdue(ctx context.Context, unit string, now time.Time) (int, error) {
	if unit == "" {
		return 0, domain.ErrUnitRequired
	}

	var expired int
	err := s.store.WithUnitLock(ctx, unit, func(ctx context.Context) error {
		raw, err := s.store.Load(ctx, unit)
		if err != nil {
			return err
		}
		kept := raw[:0:0]
		for _, seg := range raw {
			if seg.ExpiredAt(now) {
				expired++
				continue
			}
			kept = append(kept, seg)
		}
		if expired == 0 {
			return nil
		}
		if err := s.store.Save(ctx, unit, kept); err != nil {
			return err
		}
		return s.regenerate(ctx, unit, kept)
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// PublishedTimeline reads the derived view. No lock is needed: saves
// are atomic renames, so readers always see a complete file.
func (s *LifecycleService) PublishedTimeline(ctx context.Context, unit string) ([]domain.Segment, error) {
	if unit == "" {
		return nil, domain.ErrUnitRequired
	}
	return s.store.LoadPublished(ctx, unit)
}

// regenerate recomputes and publishes the merged timeline from raw. A
// publish failure blocks the operation: stale-but-consistent beats
// fresh-but-uncertain.
func (s *LifecycleService) regenerate(ctx context.Context, unit string, raw []domain.Segment) error {
	res := merge.Regenerate(raw)
	for _, rej := range res.Rejected {
		s.logger.Printf("WARN: unit=%s rejected segment id=%q reason=%s range=%s",
			unit, rej.Segment.ID, rej.Reason, rej.Segment.DateRange)
	}
	if err := s.store.SavePublished(ctx, unit, res.Published); err != nil {
		return fmt.Errorf("publish timeline for %s: %w", unit, err)
	}
	return nil
}

func findHold(raw []domain.Segment, referenceID string) int {
	for i := range raw {
		if raw[i].Lock != domain.LockSoft {
			continue
		}
		if raw[i].ReferenceID == referenceID || raw[i].ID == referenceID {
			return i
		}
	}
	return -1
}

func softOnly(segs []domain.Segment) []domain.Segment {
	out := make([]domain.Segment, 0, len(segs))
	for _, s := range segs {
		if s.Lock == domain.LockSoft {
			out = append(out, s)
		}
	}
	return out
}
