package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/viljemd-hub/channel-manager-sub000/internal/app"
	"github.com/viljemd-hub/channel-manager-sub000/internal/config"
	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
	"github.com/viljemd-hub/channel-manager-sub000/internal/merge"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Verify every published timeline against its raw segments",
		Long: `Recomputes the merge for each unit and checks that the published
timeline matches, that published segments never overlap, and that every
valid hard lock from the raw store is still visible.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			return runValidate(cmd, store)
		},
	}
}

func runValidate(cmd *cobra.Command, store app.SegmentStore) error {
	ctx := context.Background()
	units, err := store.Units(ctx)
	if err != nil {
		return err
	}

	var problems int
	for _, unit := range units {
		for _, issue := range validateUnit(ctx, store, unit) {
			problems++
			fmt.Fprintf(cmd.OutOrStdout(), "unit=%s: %s\n", unit, issue)
		}
	}

	if problems > 0 {
		return fmt.Errorf("validation failed: %d problem(s) across %d unit(s)", problems, len(units))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d unit(s) validated\n", len(units))
	return nil
}

func validateUnit(ctx context.Context, store app.SegmentStore, unit string) []string {
	var issues []string

	raw, err := store.Load(ctx, unit)
	if err != nil {
		return []string{fmt.Sprintf("load raw: %v", err)}
	}
	published, err := store.LoadPublished(ctx, unit)
	if err != nil {
		return []string{fmt.Sprintf("load published: %v", err)}
	}

	recomputed := merge.Regenerate(raw).Published
	if !timelinesEqual(published, recomputed) {
		issues = append(issues, fmt.Sprintf(
			"published timeline is stale: %d stored vs %d recomputed segments",
			len(published), len(recomputed)))
	}

	for i := range published {
		for j := i + 1; j < len(published); j++ {
			if published[i].Overlaps(published[j].DateRange) {
				issues = append(issues, fmt.Sprintf(
					"published segments overlap: %s %s and %s %s",
					published[i].ID, published[i].DateRange,
					published[j].ID, published[j].DateRange))
			}
		}
	}

	for _, seg := range raw {
		if seg.Lock != domain.LockHard || seg.Validate() != nil {
			continue
		}
		if missing := uncoveredNights(seg.DateRange, published); missing > 0 {
			issues = append(issues, fmt.Sprintf(
				"hard lock %s %s has %d night(s) not covered by a published hard segment",
				seg.ID, seg.DateRange, missing))
		}
	}

	return issues
}

// uncoveredNights counts nights of r with no published hard segment.
func uncoveredNights(r domain.DateRange, published []domain.Segment) int {
	var missing int
	for day := r.Start.Time; day.Before(r.End.Time); day = day.AddDate(0, 0, 1) {
		if !nightCovered(day, published) {
			missing++
		}
	}
	return missing
}

func nightCovered(day time.Time, published []domain.Segment) bool {
	for _, seg := range published {
		if seg.Lock != domain.LockHard {
			continue
		}
		if !day.Before(seg.Start.Time) && day.Before(seg.End.Time) {
			return true
		}
	}
	return false
}

func timelinesEqual(a, b []domain.Segment) bool {
	if len(a) != len(b) {
		return false
	}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
