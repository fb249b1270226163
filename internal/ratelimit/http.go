package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// DeniedResponse is the JSON body of a 429 response.
type DeniedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Limit      int    `json:"limit"`
	Current    int    `json:"current"`
	ResetAt    string `json:"resetAt"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// SetHeaders mirrors a decision onto the standard X-RateLimit-* headers.
// It may be called for allowed decisions too; Retry-After is only set on
// denials.
func SetHeaders(w http.ResponseWriter, d *Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining()))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed && d.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(*d.RetryAfter))
	}
}

// WriteDenied writes the full 429 contract for a denied decision:
// Retry-After plus X-RateLimit-* headers and a JSON body with human-readable
// timing. Every throttled call site shares this function instead of
// rebuilding the envelope.
func WriteDenied(w http.ResponseWriter, d *Decision) {
	w.Header().Set("Content-Type", "application/json")
	SetHeaders(w, d)
	w.WriteHeader(http.StatusTooManyRequests)

	resp := DeniedResponse{
		Error:      "rate limit exceeded",
		Message:    fmt.Sprintf("You have reached the limit of %d actions. Please try again later.", d.Limit),
		Limit:      d.Limit,
		Current:    d.Current,
		ResetAt:    d.ResetAt.UTC().Format(time.RFC3339),
		RetryAfter: d.RetryAfter,
	}
	_ = json.NewEncoder(w).Encode(resp)
}
