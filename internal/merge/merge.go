// Package merge computes the published occupancy timeline for one unit
// from its raw segments. The published view is the only thing conflict
// checks and calendar consumers ever read.
package merge

import (
	"sort"
	"strings"

	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

// Rejection records a raw segment the engine skipped instead of publishing.
type Rejection struct {
	Segment domain.Segment
	Reason  string
}

const (
	ReasonInvalidRange = "invalid_range"
	ReasonDuplicate    = "duplicate"
)

// Result is a full regeneration of one unit's published timeline.
type Result struct {
	Published []domain.Segment
	Rejected  []Rejection
}

// Regenerate resolves the raw segment set into a non-overlapping timeline
// ordered by start date. Overlaps are settled by precedence: the winner
// keeps its whole range, the loser is truncated or split around it (a
// loser fully containing the winner leaves up to two remainders). A
// malformed segment is reported in Rejected and never aborts the pass.
func Regenerate(raw []domain.Segment) Result {
	var res Result

	valid := make([]domain.Segment, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, seg := range raw {
		if err := seg.DateRange.Validate(); err != nil {
			res.Rejected = append(res.Rejected, Rejection{Segment: seg, Reason: ReasonInvalidRange})
			continue
		}
		key := dedupKey(seg)
		if _, dup := seen[key]; dup {
			res.Rejected = append(res.Rejected, Rejection{Segment: seg, Reason: ReasonDuplicate})
			continue
		}
		seen[key] = struct{}{}
		valid = append(valid, seg)
	}

	// Strongest first; ties resolved deterministically so the merge is
	// idempotent and stable across runs.
	sort.SliceStable(valid, func(i, j int) bool {
		a, b := valid[i], valid[j]
		pa, pb := domain.SegmentPrecedence(a), domain.SegmentPrecedence(b)
		if pa != pb {
			return pa > pb
		}
		if !a.Start.Equal(b.Start.Time) {
			return a.Start.Before(b.Start.Time)
		}
		if !a.End.Equal(b.End.Time) {
			return a.End.After(b.End.Time)
		}
		return a.ID < b.ID
	})

	for _, seg := range valid {
		for _, piece := range subtract(seg.DateRange, res.Published) {
			out := seg
			out.DateRange = piece
			res.Published = append(res.Published, out)
		}
	}

	sort.Slice(res.Published, func(i, j int) bool {
		a, b := res.Published[i], res.Published[j]
		if !a.Start.Equal(b.Start.Time) {
			return a.Start.Before(b.Start.Time)
		}
		return a.End.Before(b.End.Time)
	})

	return res
}

// subtract clips r around every already-published range, returning the
// uncovered pieces in order.
func subtract(r domain.DateRange, published []domain.Segment) []domain.DateRange {
	remaining := []domain.DateRange{r}
	for _, p := range published {
		var next []domain.DateRange
		for _, cur := range remaining {
			if !cur.Overlaps(p.DateRange) {
				next = append(next, cur)
				continue
			}
			if cur.Start.Before(p.Start.Time) {
				next = append(next, domain.DateRange{Start: cur.Start, End: p.Start})
			}
			if p.End.Before(cur.End.Time) {
				next = append(next, domain.DateRange{Start: p.End, End: cur.End})
			}
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}

func dedupKey(s domain.Segment) string {
	if s.ID != "" {
		return "id:" + s.ID
	}
	return strings.Join([]string{
		s.Start.String(),
		s.End.String(),
		string(s.Status),
		string(s.Source),
		s.Platform,
	}, "|")
}
