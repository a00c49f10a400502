// Package dto provides request and response shapes for the HTTP API.
// Domain entities already carry clean JSON tags, so read endpoints return
// them directly; this package holds the inbound shapes plus shared
// envelopes.
package dto

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the error envelope produced by the error and recovery
// middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
