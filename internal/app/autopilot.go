package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/viljemd-hub/channel-manager-sub000/internal/clock"
	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

// AutopilotPolicy configures automatic promotion of freshly accepted
// soft holds. A per-unit override merged over the global policy is
// resolved by the config layer before it reaches Decide.
type AutopilotPolicy struct {
	Enabled              bool     `yaml:"enabled" json:"enabled"`
	Mode                 string   `yaml:"mode" json:"mode"`
	MinDaysBeforeArrival int      `yaml:"min_days_before_arrival" json:"min_days_before_arrival"`
	MaxNights            int      `yaml:"max_nights" json:"max_nights"`
	AllowedSources       []string `yaml:"allowed_sources" json:"allowed_sources"`
	// TestMode lets the hard-lock re-check be bypassed for testing. In
	// production mode the re-check is never skippable.
	TestMode      bool      `yaml:"test_mode" json:"test_mode"`
	TestModeUntil time.Time `yaml:"test_mode_until" json:"test_mode_until"`
}

// TestModeActive reports whether the safety bypass applies at now:
// either the flag itself, or a test window that has not yet closed.
func (p AutopilotPolicy) TestModeActive(now time.Time) bool {
	if p.TestMode {
		return true
	}
	return !p.TestModeUntil.IsZero() && p.TestModeUntil.After(now)
}

// Rejection reasons, machine readable for the caller.
const (
	ReasonOK               = "ok"
	ReasonDisabled         = "disabled"
	ReasonSourceNotAllowed = "source_not_allowed"
	ReasonTooManyNights    = "too_many_nights"
	ReasonTooSoon          = "too_soon"
	ReasonICSConflict      = "ics_conflict"
)

type AutopilotDecision struct {
	Promoted  bool             `json:"promoted"`
	Reason    string           `json:"reason"`
	Segment   domain.Segment   `json:"segment,omitempty"`
	Conflicts []domain.Segment `json:"conflicts,omitempty"`
}

// Autopilot decides, once and synchronously at acceptance time, whether
// a new soft hold becomes a confirmed hard lock. A rejection is not an
// error and is never retried automatically; the hold stays soft for
// manual admin resolution or natural TTL expiry.
type Autopilot struct {
	lifecycle *LifecycleService
	checker   *ConflictChecker
	clock     clock.Clock
	logger    *log.Logger
}

func NewAutopilot(lifecycle *LifecycleService, checker *ConflictChecker, clk clock.Clock, logger *log.Logger) *Autopilot {
	if logger == nil {
		logger = log.Default()
	}
	return &Autopilot{lifecycle: lifecycle, checker: checker, clock: clk, logger: logger}
}

// Decide runs the policy filters, the mandatory hard-lock re-check, and
// on success promotes the hold. The re-check is not redundant with the
// conflict check done at acceptance: time has passed and a fresh ICS
// import may have introduced a new hard lock.
func (a *Autopilot) Decide(ctx context.Context, unit string, hold domain.Segment, policy AutopilotPolicy) (AutopilotDecision, error) {
	if unit == "" {
		return AutopilotDecision{}, domain.ErrUnitRequired
	}
	if err := hold.Validate(); err != nil {
		return AutopilotDecision{}, err
	}

	if !policy.Enabled {
		return AutopilotDecision{Reason: ReasonDisabled}, nil
	}

	if len(policy.AllowedSources) > 0 && !sourceAllowed(policy.AllowedSources, hold.Source) {
		return AutopilotDecision{Reason: ReasonSourceNotAllowed}, nil
	}

	if policy.MaxNights > 0 && hold.Nights() > policy.MaxNights {
		return AutopilotDecision{Reason: ReasonTooManyNights}, nil
	}

	if policy.MinDaysBeforeArrival > 0 {
		days := daysUntilArrival(clock.Today(a.clock), hold.Start.Time)
		if days < policy.MinDaysBeforeArrival {
			return AutopilotDecision{Reason: ReasonTooSoon}, nil
		}
	}

	now := a.clock.Now()
	if !policy.TestModeActive(now) {
		res, err := a.checker.CheckHard(ctx, unit, hold.DateRange)
		if err != nil {
			return AutopilotDecision{}, fmt.Errorf("autopilot re-check unit %s: %w", unit, err)
		}
		if res.Conflict {
			a.logger.Printf("autopilot: unit=%s hold=%s blocked by %d hard segment(s)",
				unit, hold.ReferenceID, len(res.Matching))
			return AutopilotDecision{Reason: ReasonICSConflict, Conflicts: res.Matching}, nil
		}
	} else {
		a.logger.Printf("WARN: autopilot test mode active for unit=%s, hard-lock re-check bypassed", unit)
	}

	ref := hold.ReferenceID
	if ref == "" {
		ref = hold.ID
	}
	promoted, err := a.lifecycle.Promote(ctx, unit, ref)
	if err != nil {
		return AutopilotDecision{}, err
	}
	return AutopilotDecision{Promoted: true, Reason: ReasonOK, Segment: promoted}, nil
}

func sourceAllowed(allowed []string, src domain.SourceKind) bool {
	s := strings.ToLower(string(src))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimSpace(a)) == s {
			return true
		}
	}
	return false
}

// daysUntilArrival counts whole days between today and the arrival day.
// Arrivals in the past count as zero, matching how the acceptance flow
// treats them (stale inquiries are filtered, not crashed on).
func daysUntilArrival(today, arrival time.Time) int {
	d := int(arrival.Sub(today).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
