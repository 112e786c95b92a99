package provider

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Provider error codes.
const (
	CodeAuthFailed     = "AUTH_FAILED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeNotFound       = "NOT_FOUND"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknown        = "UNKNOWN"
)

// ErrNotConfigured is returned when a client has no credential nodes.
var ErrNotConfigured = errors.New("provider not configured")

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Failure is the recovery class of a provider error.
type Failure int

const (
	FailureNone Failure = iota
	// FailureRotatable errors are tied to the credential node in use.
	FailureRotatable
	// FailureSystemic errors affect every node: network, timeouts, outages.
	FailureSystemic
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureRotatable:
		return "rotatable"
	default:
		return "systemic"
	}
}

var rotatablePatterns = []string{
	"invalid api key",
	"no api key",
	"unauthorized",
	"request limit",
	"limit reached",
	"too many requests",
	"not found",
}

// Classify decides whether an error is worth rotating credentials for.
// Anything not recognized as node specific is systemic.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureSystemic
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		switch perr.Code {
		case CodeAuthFailed, CodeRateLimited, CodeNotFound:
			return FailureRotatable
		case CodeUnknown:
			// Fall through to text matching below.
		default:
			return FailureSystemic
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureSystemic
	}

	lower := strings.ToLower(err.Error())
	for _, pattern := range rotatablePatterns {
		if strings.Contains(lower, pattern) {
			return FailureRotatable
		}
	}
	return FailureSystemic
}
