// Package session implements the per-device BLE authentication state
// machine (§4.4): keygen, public-key exchange, session-key request,
// auth-status challenge, and the authenticated steady state with its
// keepalive and reply policy.
//
// Grounded on the original firmware's EcoflowESP32 connection state
// machine (_handleAuthHandshake/_handleAuthPacket/_handlePacket) for exact
// transition and byte-layout semantics, and on the teacher's
// pkg/ntag424/auth.go for the Go idiom of a session-scoped key-material
// struct produced by a phase-by-phase handshake function.
package session

// State is one node of the per-device connection state machine.
type State int

const (
	Disconnected State = iota
	Connecting
	ServiceDiscovery
	Subscribed
	PublicKeyExchange
	RequestingSessionKey
	RequestingAuthStatus
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case ServiceDiscovery:
		return "service-discovery"
	case Subscribed:
		return "subscribed"
	case PublicKeyExchange:
		return "public-key-exchange"
	case RequestingSessionKey:
		return "requesting-session-key"
	case RequestingAuthStatus:
		return "requesting-auth-status"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// IsPreAuthenticated reports whether s is subject to the 10s
// state-progression timeout of §4.4 (every state except Disconnected and
// Authenticated).
func (s State) IsPreAuthenticated() bool {
	return s != Disconnected && s != Authenticated
}
