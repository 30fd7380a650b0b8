package adaptors

import (
	"encoding/binary"
	"fmt"
)

// BatteryTelemetry is the battery-variant telemetry schema (§4.7
// [DOMAIN+]), supplemented from the firmware's EcoflowData.h battery
// status fields. Decoded with fixed offsets via encoding/binary, the idiom
// the pack's kabili207-meshcore-go uses for firmware wire structs.
type BatteryTelemetry struct {
	StateOfChargePercent byte
	WattsIn              uint16
	WattsOut             uint16
	ACOn                 bool
	DCOn                 bool
	USBOn                bool
	MaxChargeSoC         byte
	MinDischargeSoC      byte
	CellTempC            int8
	AmbientTempC         int8
	ChargeLimitWatts     uint16
	CellVoltagesMV       []uint16
}

const batteryTelemetryMinLen = 13

func parseBatteryTelemetry(payload []byte) (BatteryTelemetry, error) {
	if len(payload) < batteryTelemetryMinLen {
		return BatteryTelemetry{}, fmt.Errorf("adaptors: battery telemetry too short (%d bytes)", len(payload))
	}

	flags := payload[5]
	t := BatteryTelemetry{
		StateOfChargePercent: payload[0],
		WattsIn:              binary.LittleEndian.Uint16(payload[1:3]),
		WattsOut:             binary.LittleEndian.Uint16(payload[3:5]),
		ACOn:                 flags&0x01 != 0,
		DCOn:                 flags&0x02 != 0,
		USBOn:                flags&0x04 != 0,
		MaxChargeSoC:         payload[6],
		MinDischargeSoC:      payload[7],
		CellTempC:            int8(payload[8]),
		AmbientTempC:         int8(payload[9]),
		ChargeLimitWatts:     binary.LittleEndian.Uint16(payload[10:12]),
	}

	cellCount := int(payload[12])
	wantLen := batteryTelemetryMinLen + cellCount*2
	if len(payload) < wantLen {
		return BatteryTelemetry{}, fmt.Errorf("adaptors: battery telemetry missing %d cell voltages", cellCount)
	}
	t.CellVoltagesMV = make([]uint16, cellCount)
	for i := 0; i < cellCount; i++ {
		off := batteryTelemetryMinLen + i*2
		t.CellVoltagesMV[i] = binary.LittleEndian.Uint16(payload[off : off+2])
	}
	return t, nil
}

// BatteryConfig is the structured, optional-presence configuration message
// of §4.7: setting a single parameter means marking that field present and
// leaving all others absent. Grounded on pkg/ntag424/settings.go's
// conditional-field encoding (a bitmask of which fields follow, each
// present field appended in a fixed order).
type BatteryConfig struct {
	ACOn             *bool
	DCOn             *bool
	USBOn            *bool
	MaxChargeSoC     *byte
	MinDischargeSoC  *byte
	ChargeLimitWatts *uint16
}

const (
	fieldACOn = 1 << iota
	fieldDCOn
	fieldUSBOn
	fieldMaxChargeSoC
	fieldMinDischargeSoC
	fieldChargeLimitWatts
)

// EncodeBatteryConfig serializes cfg as the payload of an inner packet
// with command-set 0xFE, command-id 0x11 (BatteryConfigCmdSet/CmdID).
func EncodeBatteryConfig(cfg BatteryConfig) []byte {
	var fieldSet byte
	var body []byte

	appendBool := func(b *bool, bit byte) {
		if b == nil {
			return
		}
		fieldSet |= bit
		if *b {
			body = append(body, 0x01)
		} else {
			body = append(body, 0x00)
		}
	}
	appendByte := func(b *byte, bit byte) {
		if b == nil {
			return
		}
		fieldSet |= bit
		body = append(body, *b)
	}

	appendBool(cfg.ACOn, fieldACOn)
	appendBool(cfg.DCOn, fieldDCOn)
	appendBool(cfg.USBOn, fieldUSBOn)
	appendByte(cfg.MaxChargeSoC, fieldMaxChargeSoC)
	appendByte(cfg.MinDischargeSoC, fieldMinDischargeSoC)
	if cfg.ChargeLimitWatts != nil {
		fieldSet |= fieldChargeLimitWatts
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], *cfg.ChargeLimitWatts)
		body = append(body, b[:]...)
	}

	return append([]byte{fieldSet}, body...)
}
