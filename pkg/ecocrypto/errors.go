package ecocrypto

import "fmt"

// CryptoError classifies a cryptographic-core failure by the step that
// produced it, in the teacher's AuthError/SWError shape: a small struct
// with an Unwrap so callers can errors.Is/errors.As against the cause
// while still getting a human-readable summary.
type CryptoError struct {
	Op    string // "keygen", "shared-secret", "session-key", "encrypt", "decrypt"
	Cause error
}

func (e *CryptoError) Error() string {
	if e == nil {
		return "crypto error"
	}
	return fmt.Sprintf("ecocrypto: %s: %v", e.Op, e.Cause)
}

func (e *CryptoError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsInvalidPeerPoint reports whether err is a CryptoError caused by a peer
// public key that doesn't lie on the curve. Callers must disconnect the
// session on this error per §4.1.
func IsInvalidPeerPoint(err error) bool {
	ce, ok := err.(*CryptoError)
	if !ok {
		return false
	}
	return ce.Op == "shared-secret" && ce.Cause != nil
}
