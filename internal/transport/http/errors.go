package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viljemd-hub/channel-manager-sub000/internal/app"
	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeUnitRequired       = "unit_required"
	codeReferenceRequired  = "reference_required"
	codeInvalidRange       = "invalid_range"
	codeRangeConflict      = "range_conflict"
	codeSegmentNotFound    = "segment_not_found"
	codeHoldNotFound       = "hold_not_found"
	codeHoldExpired        = "hold_expired"
	codeStoreWriteFailed   = "store_write_failed"
	codeUnitBusy           = "unit_busy"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Conflicts carries the blocking segments on range_conflict so the
	// caller can show what is in the way.
	Conflicts []domain.Segment `json:"conflicts,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorPayload(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorPayload(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps lifecycle and conflict errors onto the JSON
// envelope. notFoundCode lets hold routes report hold_not_found where
// segment routes report segment_not_found for the same sentinel.
func writeServiceError(w http.ResponseWriter, err error, notFoundCode string) {
	var conflict *app.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeErrorPayload(w, http.StatusConflict, errorResponse{
			Error:     conflict.Error(),
			Code:      codeRangeConflict,
			Conflicts: conflict.Matching,
		})
	case errors.Is(err, domain.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, codeInvalidRange, err.Error())
	case errors.Is(err, domain.ErrUnitRequired):
		writeError(w, http.StatusBadRequest, codeUnitRequired, err.Error())
	case errors.Is(err, domain.ErrReferenceRequired):
		writeError(w, http.StatusBadRequest, codeReferenceRequired, err.Error())
	case errors.Is(err, domain.ErrHoldExpired):
		writeError(w, http.StatusConflict, codeHoldExpired, err.Error())
	case errors.Is(err, domain.ErrSegmentNotFound):
		writeError(w, http.StatusNotFound, notFoundCode, err.Error())
	case errors.Is(err, domain.ErrUnitLockBusy):
		writeError(w, http.StatusServiceUnavailable, codeUnitBusy, err.Error())
	case errors.Is(err, domain.ErrStoreWrite):
		writeError(w, http.StatusInternalServerError, codeStoreWriteFailed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
