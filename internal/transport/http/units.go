package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/viljemd-hub/channel-manager-sub000/internal/app"
	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

// TimelineReader is the minimal interface needed to serve the published view.
type TimelineReader interface {
	PublishedTimeline(ctx context.Context, unit string) ([]domain.Segment, error)
}

// ConflictService is the minimal interface needed for conflict queries.
type ConflictService interface {
	Check(ctx context.Context, unit string, r domain.DateRange) (app.ConflictResult, error)
	CheckHard(ctx context.Context, unit string, r domain.DateRange) (app.ConflictResult, error)
}

// HoldService is the minimal interface needed for the hold lifecycle.
type HoldService interface {
	CreateSoftHold(ctx context.Context, in app.CreateSoftHoldInput) (app.CreateSoftHoldResult, error)
	Promote(ctx context.Context, unit, referenceID string) (domain.Segment, error)
	Release(ctx context.Context, unit, referenceID string) error
}

// SegmentService is the minimal interface needed for admin segment edits.
type SegmentService interface {
	AddSegment(ctx context.Context, in app.AddSegmentInput) (domain.Segment, error)
	RemoveSegment(ctx context.Context, unit, id string) error
}

// ExternalImporter is the minimal interface needed for the platform import push.
type ExternalImporter interface {
	ImportExternal(ctx context.Context, unit, platform string, ranges []domain.DateRange) (int, error)
}

// AutopilotDecider is the minimal interface for the acceptance-time
// promotion decision.
type AutopilotDecider interface {
	Decide(ctx context.Context, unit string, hold domain.Segment, policy app.AutopilotPolicy) (app.AutopilotDecision, error)
}

// UnitServices bundles the services behind the /units/ routes. Autopilot
// and PolicyFor are optional; without them accept=true on hold creation
// is ignored and every hold stays soft until promoted explicitly.
type UnitServices struct {
	Timeline TimelineReader
	Conflict ConflictService
	Holds    HoldService
	Segments SegmentService
	External ExternalImporter

	Autopilot AutopilotDecider
	PolicyFor func(unit string) app.AutopilotPolicy
}

// HandleUnits dispatches every /units/{unit}/... route:
//
//	GET    /units/{unit}/timeline
//	GET    /units/{unit}/conflict?start=&end=[&hard=1]
//	POST   /units/{unit}/holds
//	POST   /units/{unit}/holds/{ref}/promote
//	DELETE /units/{unit}/holds/{ref}
//	POST   /units/{unit}/segments
//	DELETE /units/{unit}/segments/{id}
//	PUT    /units/{unit}/external/{platform}
func HandleUnits(svc UnitServices) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 3 || parts[0] != "units" || parts[1] == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		unit := parts[1]

		switch {
		case len(parts) == 3 && parts[2] == "timeline":
			requireMethod(w, r, http.MethodGet, func() {
				handleTimeline(w, r, svc.Timeline, unit)
			})
		case len(parts) == 3 && parts[2] == "conflict":
			requireMethod(w, r, http.MethodGet, func() {
				handleConflict(w, r, svc.Conflict, unit)
			})
		case len(parts) == 3 && parts[2] == "holds":
			requireMethod(w, r, http.MethodPost, func() {
				handleCreateHold(w, r, svc, unit)
			})
		case len(parts) == 4 && parts[2] == "holds" && parts[3] != "":
			switch r.Method {
			case http.MethodDelete:
				handleReleaseHold(w, r, svc.Holds, unit, parts[3])
			default:
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			}
		case len(parts) == 5 && parts[2] == "holds" && parts[3] != "" && parts[4] == "promote":
			requireMethod(w, r, http.MethodPost, func() {
				handlePromoteHold(w, r, svc.Holds, unit, parts[3])
			})
		case len(parts) == 3 && parts[2] == "segments":
			requireMethod(w, r, http.MethodPost, func() {
				handleAddSegment(w, r, svc.Segments, unit)
			})
		case len(parts) == 4 && parts[2] == "segments" && parts[3] != "":
			requireMethod(w, r, http.MethodDelete, func() {
				handleRemoveSegment(w, r, svc.Segments, unit, parts[3])
			})
		case len(parts) == 4 && parts[2] == "external" && parts[3] != "":
			requireMethod(w, r, http.MethodPut, func() {
				handleImportExternal(w, r, svc.External, unit, parts[3])
			})
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string, serve func()) {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	serve()
}

type timelineResponse struct {
	Unit     string           `json:"unit"`
	Segments []domain.Segment `json:"segments"`
}

func handleTimeline(w http.ResponseWriter, r *http.Request, svc TimelineReader, unit string) {
	segments, err := svc.PublishedTimeline(r.Context(), unit)
	if err != nil {
		writeServiceError(w, err, codeNotFound)
		return
	}
	if segments == nil {
		segments = []domain.Segment{}
	}
	writeJSON(w, http.StatusOK, timelineResponse{Unit: unit, Segments: segments})
}

type conflictResponse struct {
	Conflict bool             `json:"conflict"`
	Strength string           `json:"strength,omitempty"`
	Matching []domain.Segment `json:"matching"`
}

func handleConflict(w http.ResponseWriter, r *http.Request, svc ConflictService, unit string) {
	q := r.URL.Query()
	rng, err := domain.NewRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRange, "start and end must be YYYY-MM-DD with start before end")
		return
	}

	check := svc.Check
	if q.Get("hard") == "1" {
		check = svc.CheckHard
	}
	res, err := check(r.Context(), unit, rng)
	if err != nil {
		writeServiceError(w, err, codeNotFound)
		return
	}

	resp := conflictResponse{Conflict: res.Conflict, Matching: res.Matching}
	if res.Strength != "" && res.Strength != domain.LockNone {
		resp.Strength = string(res.Strength)
	}
	if resp.Matching == nil {
		resp.Matching = []domain.Segment{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type createHoldRequest struct {
	Start       string            `json:"start"`
	End         string            `json:"end"`
	ReferenceID string            `json:"reference_id"`
	Source      string            `json:"source,omitempty"`
	TTLHours    int               `json:"ttl_hours,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
	// Accept asks for the acceptance-time autopilot decision right after
	// the hold is created. The decision runs exactly once; a rejection
	// leaves the hold soft and is reported, not retried.
	Accept bool `json:"accept,omitempty"`
}

type createHoldResponse struct {
	Hold             domain.Segment         `json:"hold"`
	PendingConflicts []domain.Segment       `json:"pending_conflicts,omitempty"`
	Autopilot        *app.AutopilotDecision `json:"autopilot,omitempty"`
}

func handleCreateHold(w http.ResponseWriter, r *http.Request, svc UnitServices, unit string) {
	var req createHoldRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.ReferenceID == "" {
		writeError(w, http.StatusBadRequest, codeReferenceRequired, domain.ErrReferenceRequired.Error())
		return
	}
	rng, err := domain.NewRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRange, err.Error())
		return
	}

	res, err := svc.Holds.CreateSoftHold(r.Context(), app.CreateSoftHoldInput{
		Unit:        unit,
		Range:       rng,
		ReferenceID: req.ReferenceID,
		TTL:         time.Duration(req.TTLHours) * time.Hour,
		Source:      domain.SourceKind(req.Source),
		Meta:        req.Meta,
	})
	if err != nil {
		writeServiceError(w, err, codeHoldNotFound)
		return
	}

	resp := createHoldResponse{
		Hold:             res.Segment,
		PendingConflicts: res.PendingConflicts,
	}
	if req.Accept && svc.Autopilot != nil && svc.PolicyFor != nil {
		decision, err := svc.Autopilot.Decide(r.Context(), unit, res.Segment, svc.PolicyFor(unit))
		if err != nil {
			// The hold exists either way; surface the failure so the
			// caller falls back to manual promotion.
			writeServiceError(w, err, codeHoldNotFound)
			return
		}
		resp.Autopilot = &decision
		if decision.Promoted {
			resp.Hold = decision.Segment
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func handlePromoteHold(w http.ResponseWriter, r *http.Request, svc HoldService, unit, ref string) {
	seg, err := svc.Promote(r.Context(), unit, ref)
	if err != nil {
		writeServiceError(w, err, codeHoldNotFound)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func handleReleaseHold(w http.ResponseWriter, r *http.Request, svc HoldService, unit, ref string) {
	if err := svc.Release(r.Context(), unit, ref); err != nil {
		writeServiceError(w, err, codeHoldNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addSegmentRequest struct {
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Status   string            `json:"status,omitempty"`
	Lock     string            `json:"lock,omitempty"`
	Source   string            `json:"source"`
	Platform string            `json:"platform,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

func handleAddSegment(w http.ResponseWriter, r *http.Request, svc SegmentService, unit string) {
	var req addSegmentRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	rng, err := domain.NewRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRange, err.Error())
		return
	}

	seg, err := svc.AddSegment(r.Context(), app.AddSegmentInput{
		Unit: unit,
		Segment: domain.Segment{
			DateRange: rng,
			Status:    domain.Status(req.Status),
			Lock:      domain.LockKind(req.Lock),
			Source:    domain.SourceKind(req.Source),
			Platform:  req.Platform,
			Meta:      req.Meta,
		},
	})
	if err != nil {
		writeServiceError(w, err, codeSegmentNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

func handleRemoveSegment(w http.ResponseWriter, r *http.Request, svc SegmentService, unit, id string) {
	if err := svc.RemoveSegment(r.Context(), unit, id); err != nil {
		writeServiceError(w, err, codeSegmentNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importExternalRequest struct {
	Ranges []struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"ranges"`
}

type importExternalResponse struct {
	Unit     string `json:"unit"`
	Platform string `json:"platform"`
	Imported int    `json:"imported"`
}

func handleImportExternal(w http.ResponseWriter, r *http.Request, svc ExternalImporter, unit, platform string) {
	var req importExternalRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	ranges := make([]domain.DateRange, 0, len(req.Ranges))
	for _, raw := range req.Ranges {
		rng, err := domain.NewRange(raw.Start, raw.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRange, err.Error())
			return
		}
		ranges = append(ranges, rng)
	}

	imported, err := svc.ImportExternal(r.Context(), unit, platform, ranges)
	if err != nil {
		writeServiceError(w, err, codeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, importExternalResponse{
		Unit:     unit,
		Platform: platform,
		Imported: imported,
	})
}
