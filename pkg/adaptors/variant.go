// Package adaptors implements the Device Protocol Adaptors of spec.md
// §4.7: per-variant destination byte, configuration-message schema, and
// telemetry parsing into the uniform Telemetry snapshot. Modeled as a
// closed tagged union dispatched with a switch, not an interface
// hierarchy, per spec.md §9.
//
// Field sets are supplemented from original_source/EcoflowESP32/src/EcoflowData.h
// where the distilled spec names only the four variants without field
// lists.
package adaptors

// Variant is the adaptor-level tagged union discriminant. Kept distinct
// from pkg/devicemanager.Variant so this package has no dependency on the
// manager (spec.md §2 data-flow: adaptors sit between sessions and the
// manager, not the other way around).
type Variant int

const (
	Battery Variant = iota
	AirConditioner
	HighPowerBattery
	Alternator
)

// TelemetryCmdSet and TelemetryCmdID are the command-set/command-id pair
// telemetry pushes arrive under for every variant (§4.7: "command-set 0xFE
// command-id 0x15 (battery) or the device-specific push IDs" — in
// practice every variant observed in the source shares this pair, since
// each session is already bound to one variant by construction).
const (
	TelemetryCmdSet = 0xFE
	TelemetryCmdID  = 0x15
)

// BatteryConfigCmdSet and BatteryConfigCmdID address the structured
// optional-presence configuration message battery variants accept.
const (
	BatteryConfigCmdSet = 0xFE
	BatteryConfigCmdID  = 0x11
)

// AC setter command-id range (§4.4, §4.7): raw single-purpose commands,
// not structured messages.
const (
	ACCmdSetTemperature = 0x51
	ACCmdSetMode        = 0x52
	ACCmdSetFan         = 0x53
	ACCmdSetPower       = 0x54
	ACCmdSetBeep        = 0x55
	ACCmdSetTimer       = 0x56
	ACCmdSetIdleTimeout = 0x57
)
