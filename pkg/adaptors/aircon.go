package adaptors

import "fmt"

// ACMode enumerates the air-conditioner operating modes.
type ACMode byte

const (
	ACModeCool ACMode = iota
	ACModeHeat
	ACModeFan
	ACModeDry
)

// AirConditionerTelemetry is the AC-variant telemetry schema (§4.7
// [DOMAIN+]).
type AirConditionerTelemetry struct {
	Mode              ACMode
	TargetTempC       int8
	AmbientTempC      int8
	FanSpeed          byte
	PowerOn           bool
	BeepOn            bool
}

const airConTelemetryMinLen = 5

func parseAirConditionerTelemetry(payload []byte) (AirConditionerTelemetry, error) {
	if len(payload) < airConTelemetryMinLen {
		return AirConditionerTelemetry{}, fmt.Errorf("adaptors: air-conditioner telemetry too short (%d bytes)", len(payload))
	}
	flags := payload[4]
	return AirConditionerTelemetry{
		Mode:         ACMode(payload[0]),
		TargetTempC:  int8(payload[1]),
		AmbientTempC: int8(payload[2]),
		FanSpeed:     payload[3],
		PowerOn:      flags&0x01 != 0,
		BeepOn:       flags&0x02 != 0,
	}, nil
}

// EncodeACSetter builds the single-byte payload for the raw setter
// commands 0x51-0x55 (§4.7: "AC setters use raw byte commands, not
// structured messages").
func EncodeACSetter(value byte) []byte {
	return []byte{value}
}

// EncodeACTimerSetter builds the three-byte timer/idle-timeout setter
// payload. spec.md §9 flags the first two bytes as an unresolved source
// ambiguity (possibly reserved for future time/idle-timeout values); they
// are preserved as zero exactly as observed in the firmware rather than
// guessed at.
func EncodeACTimerSetter(status byte) []byte {
	return []byte{0, 0, status}
}
