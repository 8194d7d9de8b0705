package probe

import "net/http"

// Verdict classifies one probe response.
type Verdict string

// Verdicts.
const (
	VerdictAuthRequired Verdict = "AUTHENTICATION REQUIRED"
	VerdictTriggered    Verdict = "FLOW TRIGGERED SUCCESSFULLY"
	VerdictBadRequest   Verdict = "BAD REQUEST"
	VerdictUnexpected   Verdict = "UNEXPECTED RESPONSE"
	VerdictUnreachable  Verdict = "UNREACHABLE"
)

// Diagnose maps an HTTP status to a verdict. status 0 means no response.
func Diagnose(status int) Verdict {
	switch status {
	case 0:
		return VerdictUnreachable
	case http.StatusUnauthorized, http.StatusForbidden:
		return VerdictAuthRequired
	case http.StatusOK, http.StatusAccepted:
		return VerdictTriggered
	case http.StatusBadRequest:
		return VerdictBadRequest
	default:
		return VerdictUnexpected
	}
}

// Hints returns operator guidance for a verdict.
func (v Verdict) Hints() []string {
	switch v {
	case VerdictAuthRequired:
		return []string{
			"The trigger requires authentication.",
			"Allow anonymous callers on the HTTP trigger, or",
			"use a signed URL that carries a sig= query parameter.",
		}
	case VerdictTriggered:
		return []string{
			"The flow accepted the request. Check the flow run history",
			"and the downstream lists and notifications for the new record.",
		}
	case VerdictBadRequest:
		return []string{
			"The flow rejected the payload. Compare the JSON field names",
			"with the trigger schema and look for missing required fields.",
		}
	case VerdictUnreachable:
		return []string{"No response was received. Check DNS, TLS and the timeout."}
	default:
		return []string{"Check the flow configuration."}
	}
}
