package adaptors

import (
	"fmt"

	"github.com/lollokara/ecoflow-gateway/pkg/codec"
)

// Telemetry is the tagged-union snapshot held in a device slot (§3). Only
// the field matching Variant is meaningful; the others are zero.
type Telemetry struct {
	Variant Variant

	Battery    BatteryTelemetry
	AirCon     AirConditionerTelemetry
	HighPower  HighPowerTelemetry
	Alternator AlternatorTelemetry
}

// ParseTelemetry dispatches pkt's payload to the variant-specific decoder.
// A malformed message is reported as an error; per §4.7 the caller must
// leave the existing snapshot untouched on failure rather than zeroing it.
func ParseTelemetry(v Variant, pkt *codec.InnerPacket) (Telemetry, error) {
	if pkt.CmdSet != TelemetryCmdSet || pkt.CmdID != TelemetryCmdID {
		return Telemetry{}, fmt.Errorf("adaptors: unexpected telemetry cmdSet/cmdId %02x/%02x", pkt.CmdSet, pkt.CmdID)
	}

	switch v {
	case Battery:
		bt, err := parseBatteryTelemetry(pkt.Payload)
		if err != nil {
			return Telemetry{}, err
		}
		return Telemetry{Variant: v, Battery: bt}, nil
	case AirConditioner:
		at, err := parseAirConditionerTelemetry(pkt.Payload)
		if err != nil {
			return Telemetry{}, err
		}
		return Telemetry{Variant: v, AirCon: at}, nil
	case HighPowerBattery:
		ht, err := parseHighPowerTelemetry(pkt.Payload)
		if err != nil {
			return Telemetry{}, err
		}
		return Telemetry{Variant: v, HighPower: ht}, nil
	case Alternator:
		alt, err := parseAlternatorTelemetry(pkt.Payload)
		if err != nil {
			return Telemetry{}, err
		}
		return Telemetry{Variant: v, Alternator: alt}, nil
	default:
		return Telemetry{}, fmt.Errorf("adaptors: unknown variant %d", v)
	}
}

// DestAddr returns the outbound control destination byte for v (§4.4).
func DestAddr(v Variant) byte {
	switch v {
	case AirConditioner:
		return 0x42
	case Alternator:
		return 0x14
	default: // Battery, HighPowerBattery
		return 0x02
	}
}
