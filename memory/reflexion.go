package memory

import "strings"

// Failure classes assigned to failed traces.
const (
	FailureUnknown           = "unknown"
	FailureInsufficientFunds = "insufficient_funds"
	FailureNotFound          = "not_found"
	FailureInvalidInput      = "invalid_input"
	FailurePermissionDenied  = "permission_denied"
	FailureTimeout           = "timeout"
	FailureRateLimit         = "rate_limit"
	FailureNetwork           = "network_error"
)

// MetaFailure holds the failure class of a failed trace, MetaPrevention a
// hint on how to avoid it next time.
const (
	MetaFailure    = "failure"
	MetaPrevention = "prevention"
)

// ClassifyFailure maps a failure observation to a failure class.
func ClassifyFailure(observation string) string {
	msg := strings.ToLower(observation)

	switch {
	case msg == "":
		return FailureUnknown
	case strings.Contains(msg, "insufficient"), strings.Contains(msg, "not enough"):
		return FailureInsufficientFunds
	case strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"):
		return FailureNotFound
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return FailureInvalidInput
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "forbidden"):
		return FailurePermissionDenied
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return FailureTimeout
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many"):
		return FailureRateLimit
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"):
		return FailureNetwork
	}
	return FailureUnknown
}

// Prevention suggests how to avoid a failure class on the next attempt.
func Prevention(action, failure string) string {
	switch failure {
	case FailureInsufficientFunds:
		return "Check the available balance before retrying " + action
	case FailureNotFound:
		return "Verify the target exists before calling " + action
	case FailureInvalidInput:
		return "Validate the input parameters of " + action
	case FailurePermissionDenied:
		return "Confirm the user is allowed to run " + action
	case FailureRateLimit:
		return "Back off before retrying " + action
	case FailureTimeout:
		return "Retry " + action + " with a longer timeout"
	case FailureNetwork:
		return "Retry " + action + " once the connection recovers"
	}
	return "Review the error and adjust the approach"
}
