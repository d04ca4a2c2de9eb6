package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Error codes in the JSON error envelope
const (
	codeBadRequest         = "bad_request"
	codeClaimTooShort      = "claim_too_short"
	codeClaimTooLong       = "claim_too_long"
	codeRateLimited        = "rate_limited"
	codeServiceUnavailable = "service_unavailable"
	codeTimeout            = "timeout"
	codeUnauthorized       = "unauthorized"
	codeInternal           = "internal_error"
)

type errorResponse struct {
	Error       string  `json:"error"`
	Description string  `json:"error_description,omitempty"`
	Scope       string  `json:"scope,omitempty"`
	RetryAfter  float64 `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError omits the description for internal errors
func writeError(w http.ResponseWriter, status int, code, description string) {
	if status >= http.StatusInternalServerError && code == codeInternal {
		description = ""
	}
	writeJSON(w, status, errorResponse{Error: code, Description: description})
}

// retryAfterSeconds rounds up so clients never retry early
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
