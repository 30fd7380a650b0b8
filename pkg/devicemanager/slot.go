package devicemanager

import (
	"github.com/lollokara/ecoflow-gateway/pkg/adaptors"
	"github.com/lollokara/ecoflow-gateway/pkg/session"
)

// ConnectionState mirrors the slot-level status shown to the UI, coarser
// than the session's own State (§3 Device slot).
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateAuthenticated
)

func (c ConnectionState) String() string {
	switch c {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Slot is one of the four preallocated per-variant containers of §3.
type Slot struct {
	Variant Variant
	Name    string

	MAC    string // persisted BLE address; empty = unpaired
	Serial string // persisted device serial

	// PairingRequested is set by ScanAndConnect to mark this slot as a
	// pairing target and cleared once a connect attempt resolves (success
	// or failure) or the slot is forgotten. It lets a never-paired slot
	// (MAC == "") keep auto-scanning, one scan after another, until that
	// attempt resolves, without the manager
	// auto-scanning every unpaired slot on every tick (§4.5 step 5: only
	// "the first disconnected-but-paired slot" auto-scans on its own).
	PairingRequested bool

	State   ConnectionState
	Session *session.Session

	Telemetry adaptors.Telemetry
}

func newSlot(v Variant) *Slot {
	return &Slot{Variant: v, Name: v.String(), State: StateDisconnected}
}

// Paired reports whether this slot has a persisted MAC binding.
func (s *Slot) Paired() bool {
	return s.MAC != ""
}
