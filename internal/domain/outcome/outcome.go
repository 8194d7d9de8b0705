// Package outcome classifies upstream dispatch results and turns them into
// client replies through a data-driven status policy.
package outcome

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags a dispatch result.
type Kind string

// Dispatch result kinds.
const (
	KindDelivered           Kind = "delivered"
	KindUpstreamAuthError   Kind = "upstream_auth_error"
	KindUpstreamServerError Kind = "upstream_server_error"
	KindUpstreamOtherError  Kind = "upstream_other_error"
	KindUnreachable         Kind = "unreachable"
	KindLocalError          Kind = "local_error"
)

// KindForStatus classifies an upstream HTTP status.
func KindForStatus(status int) Kind {
	switch {
	case status >= 200 && status <= 299:
		return KindDelivered
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUpstreamAuthError
	case status == http.StatusInternalServerError:
		return KindUpstreamServerError
	default:
		return KindUpstreamOtherError
	}
}

// Result is the outcome of one submission attempt.
type Result struct {
	Kind        Kind
	Status      int    // upstream status, zero when no response arrived
	Body        []byte // upstream body
	ContentType string // upstream content type
	Err         error  // transport or local failure
}

// FromResponse builds a Result for an upstream response.
func FromResponse(status int, contentType string, body []byte) Result {
	return Result{Kind: KindForStatus(status), Status: status, ContentType: contentType, Body: body}
}

// FromTransportError builds a Result for a call that produced no response.
func FromTransportError(err error) Result {
	return Result{Kind: KindUnreachable, Err: err}
}

// FromLocalError builds a Result for a failure before dispatch.
func FromLocalError(err error) Result {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Result{Kind: KindLocalError, Err: err}
}

// StatusClass returns "2xx", "4xx" and so on, or "none" without a response.
func (r Result) StatusClass() string {
	if r.Status < 100 || r.Status > 599 {
		return "none"
	}
	return fmt.Sprintf("%dxx", r.Status/100)
}

// Client facing messages.
const (
	MessageAccepted   = "Application submitted successfully"
	MessageLocalError = "Error processing submission"
	NotePendingManual = "Pending manual processing"
)

// ClientResponse is the JSON body returned to the browser.
type ClientResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	Note            string `json:"note,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Reply is a fully rendered HTTP reply.
type Reply struct {
	Status      int
	ContentType string
	Body        []byte
}
