package llm

import (
	"errors"
	"fmt"
)

// Kind classifies completion-service failures into a fixed taxonomy.
// Callers decide retry policy from the kind; the client itself never
// retries.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindUnauthorized
	KindInsufficientQuota
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindInsufficientQuota:
		return "insufficient_quota"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// APIError is a classified completion-service failure.
type APIError struct {
	Kind   Kind
	Status int    // HTTP status, 0 when the request never completed
	Detail string // upstream detail, may be empty
}

func (e *APIError) Error() string {
	var msg string
	switch e.Kind {
	case KindRateLimited:
		msg = "completion service rate limited the request; retry later"
	case KindUnauthorized:
		msg = "completion service rejected the API key; check configuration"
	case KindInsufficientQuota:
		msg = "completion service account is out of credits"
	case KindTimeout:
		msg = "completion service did not respond within the timeout"
	default:
		msg = "completion service request failed"
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	return msg
}

// KindOf extracts the failure kind from an error chain. Non-API errors
// report KindUnknown.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}
