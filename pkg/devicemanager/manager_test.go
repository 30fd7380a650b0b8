package devicemanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lollokara/ecoflow-gateway/internal/store"
	"github.com/lollokara/ecoflow-gateway/pkg/blelink"
)

// fakeCharacteristic records writes and lets the test drive notifications.
type fakeCharacteristic struct {
	mu      sync.Mutex
	writes  [][]byte
	onNotify func([]byte)
}

func (c *fakeCharacteristic) Subscribe(onNotify func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotify = onNotify
	return nil
}

func (c *fakeCharacteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

type fakeDevice struct {
	write  *fakeCharacteristic
	notify *fakeCharacteristic
}

func (d *fakeDevice) DiscoverCharacteristic(serviceUUID, charUUID string) (blelink.Characteristic, error) {
	switch charUUID {
	case blelink.WriteCharUUID:
		return d.write, nil
	case blelink.NotifyCharUUID:
		return d.notify, nil
	}
	return nil, errUnknownChar
}

func (d *fakeDevice) Disconnect() error { return nil }

var errUnknownChar = &charError{}

type charError struct{}

func (*charError) Error() string { return "unknown characteristic" }

// fakeAdapter lets a test inject one advertisement and records Scan/Connect
// activity without touching real BLE hardware.
type fakeAdapter struct {
	mu        sync.Mutex
	scanCount int
	connected []string
	device    *fakeDevice
}

func (a *fakeAdapter) Enable() error { return nil }

func (a *fakeAdapter) Scan(ctx context.Context, handler func(blelink.Advertisement)) error {
	a.mu.Lock()
	a.scanCount++
	a.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (a *fakeAdapter) StopScan() error { return nil }

func (a *fakeAdapter) Connect(ctx context.Context, address string) (blelink.Device, error) {
	a.mu.Lock()
	a.connected = append(a.connected, address)
	a.mu.Unlock()
	return a.device, nil
}

func openTestManager(t *testing.T) (*Manager, *fakeAdapter, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/gateway.db")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	adapter := &fakeAdapter{device: &fakeDevice{write: &fakeCharacteristic{}, notify: &fakeCharacteristic{}}}
	m, err := New(adapter, st, "user-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, adapter, st
}

func TestNewLoadsPersistedPairings(t *testing.T) {
	st, err := store.Open(t.TempDir() + "/gateway.db")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := st.SavePairing(store.KeyBattery, store.Pairing{MAC: "AA:BB", Serial: "R1234567890123456"}); err != nil {
		t.Fatalf("SavePairing: %v", err)
	}
	adapter := &fakeAdapter{device: &fakeDevice{write: &fakeCharacteristic{}, notify: &fakeCharacteristic{}}}
	m, err := New(adapter, st, "user-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	slot, err := m.Get(Battery)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if slot.MAC != "AA:BB" || slot.Serial != "R1234567890123456" {
		t.Fatalf("got %+v, want persisted pairing restored", slot)
	}
}

// TestUpdateDoesNotAutoScanNeverPairedSlots is §4.5 step 5 + §6: a
// never-paired slot (MAC == "") must not be auto-scanned until
// ScanAndConnect explicitly requests pairing for it.
func TestUpdateDoesNotAutoScanNeverPairedSlots(t *testing.T) {
	m, adapter, _ := openTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Update(ctx)
	time.Sleep(10 * time.Millisecond)

	adapter.mu.Lock()
	count := adapter.scanCount
	adapter.mu.Unlock()
	if count != 0 {
		t.Fatalf("scanCount = %d, want 0 for an all-unpaired, non-requested store", count)
	}
}

// TestUpdateStartsScanForPairedSlot covers the other half of §4.5 step 5:
// a slot with a persisted MAC auto-scans on its own, with no
// ScanAndConnect call needed.
func TestUpdateStartsScanForPairedSlot(t *testing.T) {
	st, err := store.Open(t.TempDir() + "/gateway.db")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := st.SavePairing(store.KeyBattery, store.Pairing{MAC: "AA:BB", Serial: "R1234567890123456"}); err != nil {
		t.Fatalf("SavePairing: %v", err)
	}
	adapter := &fakeAdapter{device: &fakeDevice{write: &fakeCharacteristic{}, notify: &fakeCharacteristic{}}}
	m, err := New(adapter, st, "user-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Update(ctx)
	time.Sleep(10 * time.Millisecond)

	adapter.mu.Lock()
	count := adapter.scanCount
	adapter.mu.Unlock()
	if count != 1 {
		t.Fatalf("scanCount = %d, want 1 for a paired slot", count)
	}
}

// TestUpdateStartsScanWhenPairingRequested covers the never-paired path
// once ScanAndConnect opts a slot into the auto-scan loop.
func TestUpdateStartsScanWhenPairingRequested(t *testing.T) {
	m, adapter, _ := openTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.ScanAndConnect(Battery); err != nil {
		t.Fatalf("ScanAndConnect: %v", err)
	}

	m.Update(ctx)
	time.Sleep(10 * time.Millisecond)

	adapter.mu.Lock()
	count := adapter.scanCount
	adapter.mu.Unlock()
	if count != 1 {
		t.Fatalf("scanCount = %d, want 1 after ScanAndConnect", count)
	}
}

func TestUpdateStopsScanOnceASlotIsConnecting(t *testing.T) {
	m, _, _ := openTestManager(t)
	if err := m.ScanAndConnect(Battery); err != nil {
		t.Fatalf("ScanAndConnect: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Update(ctx)
	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	m.slots[0].State = StateConnecting
	wasScanning := m.scanning
	m.mu.Unlock()
	if !wasScanning {
		t.Fatalf("expected scanning to have started before connect")
	}

	m.Update(ctx)

	m.mu.Lock()
	stillScanning := m.scanning
	m.mu.Unlock()
	if stillScanning {
		t.Fatalf("expected scan to stop once a slot entered Connecting")
	}
}

func TestScanAndConnectClearsSlotForRepairing(t *testing.T) {
	m, _, st := openTestManager(t)
	if err := st.SavePairing(store.KeyAirConditioner, store.Pairing{MAC: "CC:DD", Serial: "KT0000000000000A"}); err != nil {
		t.Fatalf("SavePairing: %v", err)
	}

	if err := m.ScanAndConnect(AirConditioner); err != nil {
		t.Fatalf("ScanAndConnect: %v", err)
	}
	slot, _ := m.Get(AirConditioner)
	if slot.MAC != "" || slot.Serial != "" {
		t.Fatalf("got %+v, want cleared slot ready for a new pairing", slot)
	}
}

func TestForgetClearsPersistedPairing(t *testing.T) {
	m, _, st := openTestManager(t)
	if err := st.SavePairing(store.KeyBattery, store.Pairing{MAC: "AA:BB", Serial: "R1234567890123456"}); err != nil {
		t.Fatalf("SavePairing: %v", err)
	}

	if err := m.Forget(Battery); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	p, err := st.LoadPairing(store.KeyBattery)
	if err != nil {
		t.Fatalf("LoadPairing: %v", err)
	}
	if p.MAC != "" {
		t.Fatalf("got MAC %q after Forget, want empty", p.MAC)
	}
}

func TestOnAdvertisementIgnoresNonMatchingSerial(t *testing.T) {
	m, _, _ := openTestManager(t)
	m.onAdvertisement(blelink.Advertisement{Address: "EE:FF", ManufacturerData: append([]byte{0, 0, 0}, []byte("UNKNOWN000000000")...)})
	select {
	case <-m.found:
		t.Fatalf("expected no match queued for an unrecognized serial prefix")
	default:
	}
}

func TestOnAdvertisementQueuesOneMatchAtATime(t *testing.T) {
	m, _, _ := openTestManager(t)
	adv := blelink.Advertisement{Address: "11:22", ManufacturerData: append([]byte{0, 0, 0}, []byte("R1234567890123456")...)}
	m.onAdvertisement(adv)
	m.onAdvertisement(adv)

	select {
	case found := <-m.found:
		if found.Variant != Battery {
			t.Fatalf("got variant %v, want Battery", found.Variant)
		}
	default:
		t.Fatalf("expected one queued match")
	}
	select {
	case <-m.found:
		t.Fatalf("expected only one match to be queued, channel had a second")
	default:
	}
}
