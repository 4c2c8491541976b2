package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

// ConflictChecker evaluates a candidate range against the published
// timeline, never the raw segments, so precedence-resolved reality is
// what every admin action and the autopilot see.
type ConflictChecker struct {
	store SegmentStore
}

func NewConflictChecker(store SegmentStore) *ConflictChecker {
	return &ConflictChecker{store: store}
}

// ConflictResult lists every published segment the candidate intersects
// and the strongest lock among them. Informational (lock=none) matches
// are reported but do not count as a conflict.
type ConflictResult struct {
	Conflict bool             `json:"conflict"`
	Strength domain.LockKind  `json:"strength"`
	Matching []domain.Segment `json:"matching_segments"`
}

func (c *ConflictChecker) Check(ctx context.Context, unit string, r domain.DateRange) (ConflictResult, error) {
	if unit == "" {
		return ConflictResult{}, domain.ErrUnitRequired
	}
	if err := r.Validate(); err != nil {
		return ConflictResult{}, err
	}

	published, err := c.store.LoadPublished(ctx, unit)
	if err != nil {
		return ConflictResult{}, fmt.Errorf("conflict check unit %s: %w", unit, err)
	}
	return evaluate(published, r, false), nil
}

// CheckHard restricts the evaluation to hard locks. The autopilot uses
// this for its mandatory re-check before promotion.
func (c *ConflictChecker) CheckHard(ctx context.Context, unit string, r domain.DateRange) (ConflictResult, error) {
	if unit == "" {
		return ConflictResult{}, domain.ErrUnitRequired
	}
	if err := r.Validate(); err != nil {
		return ConflictResult{}, err
	}

	published, err := c.store.LoadPublished(ctx, unit)
	if err != nil {
		return ConflictResult{}, fmt.Errorf("conflict check unit %s: %w", unit, err)
	}
	return evaluate(published, r, true), nil
}

func evaluate(published []domain.Segment, r domain.DateRange, hardOnly bool) ConflictResult {
	res := ConflictResult{Strength: domain.LockNone}
	for _, seg := range published {
		if seg.DateRange.Validate() != nil {
			continue
		}
		if hardOnly && seg.Lock != domain.LockHard {
			continue
		}
		if !seg.Overlaps(r) {
			continue
		}
		res.Matching = append(res.Matching, seg)
		if lockRank(seg.Lock) > lockRank(res.Strength) {
			res.Strength = seg.Lock
		}
	}
	res.Conflict = res.Strength != domain.LockNone
	return res
}

func lockRank(l domain.LockKind) int {
	switch l {
	case domain.LockHard:
		return 2
	case domain.LockSoft:
		return 1
	default:
		return 0
	}
}

// ConflictError carries the segments a rejected range collided with. It
// unwraps to domain.ErrRangeConflict so callers can errors.Is on it.
type ConflictError struct {
	Matching []domain.Segment
}

func (e *ConflictError) Error() string {
	refs := make([]string, 0, len(e.Matching))
	for _, m := range e.Matching {
		label := string(m.Source)
		if m.ID != "" {
			label += "/" + m.ID
		}
		refs = append(refs, label+" "+m.DateRange.String())
	}
	return domain.ErrRangeConflict.Error() + ": " + strings.Join(refs, ", ")
}

func (e *ConflictError) Unwrap() error {
	return domain.ErrRangeConflict
}
