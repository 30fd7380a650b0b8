// Package blelink abstracts the BLE radio so pkg/devicemanager and
// pkg/session never import a concrete stack directly. Grounded on the
// pack's chaz8081/gostt-writer internal/ble package (Adapter.Scan/Connect,
// Characteristic.Subscribe/Write), adapted from its single-peer pairing
// flow to this gateway's continuous-scan, four-slot arbitration (§4.5,
// §6).
package blelink

import "context"

// ServiceUUID, WriteCharUUID and NotifyCharUUID are the fixed GATT
// identifiers the device family advertises (§6).
const (
	ServiceUUID    = "00000001-0000-1000-8000-00805f9b34fb"
	WriteCharUUID  = "00000002-0000-1000-8000-00805f9b34fb"
	NotifyCharUUID = "00000003-0000-1000-8000-00805f9b34fb"
)

// Advertisement is one scan-result event, carrying just enough to run the
// manufacturer-data serial-prefix match of §4.5.
type Advertisement struct {
	Address          string
	LocalName        string
	ManufacturerData []byte
}

// Adapter is the radio-level abstraction: enable the controller, run a
// continuous scan delivering Advertisement events to a handler, and
// connect to a matched address.
type Adapter interface {
	Enable() error
	// Scan runs until ctx is cancelled or StopScan is called, invoking
	// handler from the radio context for every advertisement observed.
	// Per §5, handler must not block — callers push onto a channel and
	// return immediately.
	Scan(ctx context.Context, handler func(Advertisement)) error
	StopScan() error
	Connect(ctx context.Context, address string) (Device, error)
}

// Device is one active BLE link.
type Device interface {
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	Disconnect() error
}

// Characteristic is a single GATT characteristic: the write side models
// the session's Transport, the notify side feeds the reassembly buffer.
type Characteristic interface {
	Subscribe(onNotify func([]byte)) error
	Write(data []byte) error
}
