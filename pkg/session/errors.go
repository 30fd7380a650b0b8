package session

import "fmt"

// AuthErrorReason classifies why a session was forced back to Disconnected,
// so the device manager can decide reconnect-vs-idle (§7).
type AuthErrorReason int

const (
	ReasonLinkLoss AuthErrorReason = iota
	ReasonTimeout
	ReasonCryptoFailure
	ReasonAuthDenied
	ReasonMaxRetries
)

func (r AuthErrorReason) String() string {
	switch r {
	case ReasonLinkLoss:
		return "link-loss"
	case ReasonTimeout:
		return "timeout"
	case ReasonCryptoFailure:
		return "crypto-failure"
	case ReasonAuthDenied:
		return "auth-denied"
	case ReasonMaxRetries:
		return "max-retries"
	default:
		return "unknown"
	}
}

// AuthError reports why a session dropped out of its handshake, in the
// teacher's *AuthError idiom (step + cause, Unwrap-able).
type AuthError struct {
	State  State
	Reason AuthErrorReason
	Cause  error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session: %s in state %s: %v", e.Reason, e.State, e.Cause)
	}
	return fmt.Sprintf("session: %s in state %s", e.Reason, e.State)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// IsAuthError reports whether err is a *AuthError, mirroring
// pkg/ntag424/errors.go's IsAuthError/IsLengthError classification helpers.
func IsAuthError(err error) bool {
	_, ok := err.(*AuthError)
	return ok
}
