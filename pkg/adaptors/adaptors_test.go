package adaptors

import (
	"testing"

	"github.com/lollokara/ecoflow-gateway/pkg/codec"
)

func telemetryPacket(payload []byte) *codec.InnerPacket {
	return &codec.InnerPacket{CmdSet: TelemetryCmdSet, CmdID: TelemetryCmdID, Payload: payload}
}

func TestParseTelemetryBattery(t *testing.T) {
	payload := []byte{
		85,       // SoC
		0x10, 0x00, // WattsIn = 16
		0x64, 0x00, // WattsOut = 100
		0x07,     // flags: AC|DC|USB on
		90,       // MaxChargeSoC
		10,       // MinDischargeSoC
		25,       // CellTempC
		22,       // AmbientTempC
		0xE8, 0x03, // ChargeLimitWatts = 1000
		0x02,     // cellCount
		0x10, 0x0F, // cell 0 = 0x0F10
		0x20, 0x0F, // cell 1 = 0x0F20
	}
	got, err := ParseTelemetry(Battery, telemetryPacket(payload))
	if err != nil {
		t.Fatalf("ParseTelemetry: %v", err)
	}
	if got.Battery.StateOfChargePercent != 85 || got.Battery.WattsIn != 16 || got.Battery.WattsOut != 100 {
		t.Fatalf("got %+v", got.Battery)
	}
	if !got.Battery.ACOn || !got.Battery.DCOn || !got.Battery.USBOn {
		t.Fatalf("flags not decoded: %+v", got.Battery)
	}
	if got.Battery.ChargeLimitWatts != 1000 {
		t.Fatalf("ChargeLimitWatts = %d, want 1000", got.Battery.ChargeLimitWatts)
	}
	if len(got.Battery.CellVoltagesMV) != 2 {
		t.Fatalf("got %d cell voltages, want 2", len(got.Battery.CellVoltagesMV))
	}
}

func TestParseTelemetryBatteryRejectsShortPayload(t *testing.T) {
	if _, err := ParseTelemetry(Battery, telemetryPacket([]byte{1, 2, 3})); err == nil {
		t.Fatalf("expected error for short payload")
	}
}

func TestEncodeBatteryConfigOnlySetsMarkedFields(t *testing.T) {
	limit := uint16(800)
	cfg := BatteryConfig{ChargeLimitWatts: &limit}
	wire := EncodeBatteryConfig(cfg)
	if wire[0] != fieldChargeLimitWatts {
		t.Fatalf("fieldSet = %#x, want only fieldChargeLimitWatts", wire[0])
	}
	if len(wire) != 3 {
		t.Fatalf("got %d bytes, want 3 (fieldset + uint16)", len(wire))
	}

	on := true
	cfg2 := BatteryConfig{ACOn: &on}
	wire2 := EncodeBatteryConfig(cfg2)
	if wire2[0] != fieldACOn || wire2[1] != 0x01 {
		t.Fatalf("got %x, want [fieldACOn, 0x01]", wire2)
	}
}

func TestParseTelemetryAirConditioner(t *testing.T) {
	payload := []byte{byte(ACModeCool), 22, 27, 3, 0x03}
	got, err := ParseTelemetry(AirConditioner, telemetryPacket(payload))
	if err != nil {
		t.Fatalf("ParseTelemetry: %v", err)
	}
	if got.AirCon.Mode != ACModeCool || got.AirCon.TargetTempC != 22 || got.AirCon.AmbientTempC != 27 {
		t.Fatalf("got %+v", got.AirCon)
	}
	if !got.AirCon.PowerOn || !got.AirCon.BeepOn {
		t.Fatalf("flags not decoded: %+v", got.AirCon)
	}
}

func TestEncodeACTimerSetterPreservesThreeByteShape(t *testing.T) {
	wire := EncodeACTimerSetter(0x01)
	if len(wire) != 3 || wire[0] != 0 || wire[1] != 0 || wire[2] != 0x01 {
		t.Fatalf("got %x, want [0 0 1]", wire)
	}
}

func TestParseTelemetryHighPowerBattery(t *testing.T) {
	payload := []byte{0xF4, 0x01, 0xE8, 0x03, 75}
	got, err := ParseTelemetry(HighPowerBattery, telemetryPacket(payload))
	if err != nil {
		t.Fatalf("ParseTelemetry: %v", err)
	}
	if got.HighPower.ACBus1Watts != 500 || got.HighPower.ACBus2Watts != 1000 || got.HighPower.CombinedSoCPercent != 75 {
		t.Fatalf("got %+v", got.HighPower)
	}
}

func TestParseTelemetryAlternator(t *testing.T) {
	payload := []byte{0x64, 0x00, 0xC8, 0x00, byte(ChargeStateCharging), 0x70, 0x2E, 0x18, 0x34}
	got, err := ParseTelemetry(Alternator, telemetryPacket(payload))
	if err != nil {
		t.Fatalf("ParseTelemetry: %v", err)
	}
	if got.Alternator.InputAmpsTenths != 100 || got.Alternator.OutputAmpsTenths != 200 {
		t.Fatalf("got %+v", got.Alternator)
	}
	if got.Alternator.State != ChargeStateCharging {
		t.Fatalf("state = %v, want Charging", got.Alternator.State)
	}
	if got.Alternator.CutoffLowVoltageMV != 11888 || got.Alternator.CutoffHighVoltageMV != 13336 {
		t.Fatalf("got %+v", got.Alternator)
	}
}

func TestParseTelemetryRejectsWrongCmdSetOrID(t *testing.T) {
	pkt := &codec.InnerPacket{CmdSet: 0x01, CmdID: 0x02, Payload: []byte{0, 0, 0}}
	if _, err := ParseTelemetry(Battery, pkt); err == nil {
		t.Fatalf("expected error for mismatched cmdSet/cmdId")
	}
}
