package adaptors

import (
	"encoding/binary"
	"fmt"
)

// ChargeState enumerates the alternator charger's operating state.
type ChargeState byte

const (
	ChargeStateIdle ChargeState = iota
	ChargeStateCharging
	ChargeStateCutoffLowVoltage
	ChargeStateFault
)

// AlternatorTelemetry is the alternator-charger telemetry schema (§4.7
// [DOMAIN+]): input/output current and the vehicle-voltage cutoff
// thresholds that drive its charge/cutoff state machine.
type AlternatorTelemetry struct {
	InputAmpsTenths     int16
	OutputAmpsTenths    int16
	State               ChargeState
	CutoffLowVoltageMV  uint16
	CutoffHighVoltageMV uint16
}

const alternatorTelemetryMinLen = 9

func parseAlternatorTelemetry(payload []byte) (AlternatorTelemetry, error) {
	if len(payload) < alternatorTelemetryMinLen {
		return AlternatorTelemetry{}, fmt.Errorf("adaptors: alternator telemetry too short (%d bytes)", len(payload))
	}
	return AlternatorTelemetry{
		InputAmpsTenths:     int16(binary.LittleEndian.Uint16(payload[0:2])),
		OutputAmpsTenths:    int16(binary.LittleEndian.Uint16(payload[2:4])),
		State:               ChargeState(payload[4]),
		CutoffLowVoltageMV:  binary.LittleEndian.Uint16(payload[5:7]),
		CutoffHighVoltageMV: binary.LittleEndian.Uint16(payload[7:9]),
	}, nil
}
