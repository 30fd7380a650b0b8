package adaptors

import (
	"encoding/binary"
	"fmt"
)

// HighPowerTelemetry is the high-power-battery variant's telemetry schema
// (§4.7 [DOMAIN+]): dual AC bus output, a combined state-of-charge across
// the bonded units.
type HighPowerTelemetry struct {
	ACBus1Watts      uint16
	ACBus2Watts      uint16
	CombinedSoCPercent byte
}

const highPowerTelemetryMinLen = 5

func parseHighPowerTelemetry(payload []byte) (HighPowerTelemetry, error) {
	if len(payload) < highPowerTelemetryMinLen {
		return HighPowerTelemetry{}, fmt.Errorf("adaptors: high-power battery telemetry too short (%d bytes)", len(payload))
	}
	return HighPowerTelemetry{
		ACBus1Watts:        binary.LittleEndian.Uint16(payload[0:2]),
		ACBus2Watts:        binary.LittleEndian.Uint16(payload[2:4]),
		CombinedSoCPercent: payload[4],
	}, nil
}
