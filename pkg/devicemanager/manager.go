package devicemanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lollokara/ecoflow-gateway/internal/store"
	"github.com/lollokara/ecoflow-gateway/pkg/adaptors"
	"github.com/lollokara/ecoflow-gateway/pkg/blelink"
	"github.com/lollokara/ecoflow-gateway/pkg/codec"
	"github.com/lollokara/ecoflow-gateway/pkg/session"
)

const (
	scanTimeout    = 10 * time.Second
	scanResultSlot = 1 // only one pending match is ever held, per §4.5
)

// foundMatch is the marker the radio-context scan callback queues; the
// supervisor tick is the only path that turns it into a connect attempt
// (§4.5 "eliminates re-entrant connects from callbacks").
type foundMatch struct {
	Variant Variant
	Address string
	Serial  string
}

// Manager is the process-wide singleton device manager of spec.md §4.5.
// Construct one with New and pass it by reference from cmd/gateway — never
// as a package-level global (§9).
type Manager struct {
	adapter blelink.Adapter
	store   *store.Store
	userID  string
	log     *slog.Logger

	mu         sync.Mutex
	slots      [4]*Slot
	scanning   bool
	scanSince  time.Time
	scanCancel context.CancelFunc

	found chan foundMatch
}

// New loads persisted pairings from st and populates the four slots.
func New(adapter blelink.Adapter, st *store.Store, userID string) (*Manager, error) {
	m := &Manager{
		adapter: adapter,
		store:   st,
		userID:  userID,
		log:     slog.Default().With("component", "devicemanager"),
		found:   make(chan foundMatch, scanResultSlot),
	}
	for i, v := range []Variant{Battery, AirConditioner, HighPowerBattery, Alternator} {
		slot := newSlot(v)
		p, err := st.LoadPairing(v.storeKey())
		if err != nil {
			return nil, fmt.Errorf("devicemanager: load pairing for %s: %w", v, err)
		}
		slot.MAC = p.MAC
		slot.Serial = p.Serial
		m.slots[i] = slot
	}
	return m, nil
}

func (m *Manager) slot(v Variant) *Slot {
	if v < 0 || int(v) >= len(m.slots) {
		return nil
	}
	return m.slots[v]
}

// Get returns a snapshot copy of the slot for v.
func (m *Manager) Get(v Variant) (Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(v)
	if s == nil {
		return Slot{}, fmt.Errorf("devicemanager: unknown variant %v", v)
	}
	return *s, nil
}

// List returns a snapshot copy of every slot.
func (m *Manager) List() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Slot, len(m.slots))
	for i, s := range m.slots {
		out[i] = *s
	}
	return out
}

// ScanAndConnect marks v as the pairing target: an empty-MAC slot accepts
// the first matching advertisement for its variant (§4.5). Setting
// PairingRequested is what makes an otherwise never-paired slot eligible
// for manageScanning's auto-scan loop (§4.5 step 5 only auto-scans "the
// first disconnected-but-paired slot" on its own).
func (m *Manager) ScanAndConnect(v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(v)
	if s == nil {
		return fmt.Errorf("devicemanager: unknown variant %v", v)
	}
	s.MAC = ""
	s.Serial = ""
	s.State = StateDisconnected
	s.PairingRequested = true
	return nil
}

// Disconnect tears down the slot's active session, if any.
func (m *Manager) Disconnect(v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(v)
	if s == nil {
		return fmt.Errorf("devicemanager: unknown variant %v", v)
	}
	s.Session = nil
	s.State = StateDisconnected
	return nil
}

// Forget clears the persisted and in-memory pairing for v.
func (m *Manager) Forget(v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(v)
	if s == nil {
		return fmt.Errorf("devicemanager: unknown variant %v", v)
	}
	if err := m.store.ForgetPairing(v.storeKey()); err != nil {
		return fmt.Errorf("devicemanager: forget %v: %w", v, err)
	}
	s.MAC = ""
	s.Serial = ""
	s.Session = nil
	s.State = StateDisconnected
	s.PairingRequested = false
	return nil
}

// onAdvertisement is the radio-context scan callback: allocation-light,
// non-blocking, and the only code that ever writes to m.found (§4.5, §5).
func (m *Manager) onAdvertisement(adv blelink.Advertisement) {
	serial, ok := extractSerial(adv.ManufacturerData)
	if !ok {
		return
	}
	variant, ok := matchSerialPrefix(serial)
	if !ok {
		return
	}

	m.mu.Lock()
	s := m.slot(variant)
	matches := s != nil && (s.MAC == "" || s.MAC == adv.Address)
	m.mu.Unlock()
	if !matches {
		return
	}

	select {
	case m.found <- foundMatch{Variant: variant, Address: adv.Address, Serial: serial}:
	default: // a match is already pending; later advertisements are ignored
	}
}

// Update runs one supervisor tick (§4.5), intended to be called at ~100 Hz
// from the manager context.
func (m *Manager) Update(ctx context.Context) {
	m.servicePending(ctx)
	m.manageScanning(ctx)
}

func (m *Manager) servicePending(ctx context.Context) {
	select {
	case found := <-m.found:
		m.mu.Lock()
		s := m.slot(found.Variant)
		alreadyConnecting := m.anyConnecting()
		if s != nil && s.State == StateDisconnected && !alreadyConnecting {
			s.State = StateConnecting
			s.MAC = found.Address
			s.Serial = found.Serial
			go m.connect(ctx, s)
		}
		m.mu.Unlock()
	default:
	}
}

// anyConnecting reports whether a slot is mid-connect. Caller must hold m.mu.
func (m *Manager) anyConnecting() bool {
	for _, s := range m.slots {
		if s.State == StateConnecting {
			return true
		}
	}
	return false
}

func (m *Manager) manageScanning(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scanning {
		if m.anyConnecting() || time.Since(m.scanSince) > scanTimeout {
			m.stopScanLocked()
		}
		return
	}

	if m.anyConnecting() {
		return
	}
	for _, s := range m.slots {
		// §4.5 step 5: auto-scan only "the first disconnected-but-paired
		// slot" — a never-paired slot (MAC == "") only joins the scan once
		// ScanAndConnect has explicitly requested pairing for it (§6
		// "an empty MAC means 'not paired' (no automatic scan for that
		// slot)").
		if s.State == StateDisconnected && (s.Paired() || s.PairingRequested) {
			m.startScanLocked(ctx)
			return
		}
	}
}

func (m *Manager) startScanLocked(ctx context.Context) {
	scanCtx, cancel := context.WithCancel(ctx)
	m.scanCancel = cancel
	m.scanning = true
	m.scanSince = time.Now()
	go func() {
		if err := m.adapter.Scan(scanCtx, m.onAdvertisement); err != nil {
			m.log.Warn("scan ended", "error", err)
		}
	}()
}

func (m *Manager) stopScanLocked() {
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	_ = m.adapter.StopScan()
	m.scanning = false
}

// connect runs the full connect-and-authenticate sequence for slot
// off the radio/supervisor path. It is the one place a session is born.
func (m *Manager) connect(ctx context.Context, slot *Slot) {
	device, err := m.adapter.Connect(ctx, slot.MAC)
	if err != nil {
		m.log.Warn("connect failed", "variant", slot.Variant, "error", err)
		m.resetToDisconnected(slot)
		return
	}

	writeChar, err := device.DiscoverCharacteristic(blelink.ServiceUUID, blelink.WriteCharUUID)
	if err != nil {
		m.log.Warn("discover write characteristic failed", "variant", slot.Variant, "error", err)
		_ = device.Disconnect()
		m.resetToDisconnected(slot)
		return
	}
	notifyChar, err := device.DiscoverCharacteristic(blelink.ServiceUUID, blelink.NotifyCharUUID)
	if err != nil {
		m.log.Warn("discover notify characteristic failed", "variant", slot.Variant, "error", err)
		_ = device.Disconnect()
		m.resetToDisconnected(slot)
		return
	}

	events := make(chan session.Event, 8)
	sess := session.New(session.Config{
		LocalAddr:       slot.Variant.localAddr(),
		DestAddr:        slot.Variant.destAddr(),
		ProtocolVersion: slot.Variant.protocolVersion(),
		ProductID:       0x0D,
		UserID:          m.userID,
		DeviceSn:        slot.Serial,
		XORDeobfuscate:  slot.Variant.xorDeobfuscate(),
		Transport:       writeChar,
		Report:          events,
	})

	if err := notifyChar.Subscribe(func(data []byte) {
		if err := sess.HandleNotification(data); err != nil {
			m.log.Debug("notification handling failed", "variant", slot.Variant, "error", err)
		}
	}); err != nil {
		m.log.Warn("subscribe failed", "variant", slot.Variant, "error", err)
		_ = device.Disconnect()
		m.resetToDisconnected(slot)
		return
	}

	sess.OnLinkEstablished()
	sess.OnServicesDiscovered()

	m.mu.Lock()
	slot.Session = sess
	slot.State = StateConnected
	slot.PairingRequested = false
	m.mu.Unlock()

	if err := sess.Start(); err != nil {
		m.log.Warn("handshake start failed", "variant", slot.Variant, "error", err)
	}

	go m.pumpEvents(slot, events)
}

// pumpEvents drains one session's report channel, updating slot status and
// telemetry (§9: sessions communicate via a message channel, not a
// back-pointer).
func (m *Manager) pumpEvents(slot *Slot, events chan session.Event) {
	for ev := range events {
		m.mu.Lock()
		switch ev.Kind {
		case session.EventStateChanged:
			if ev.State == session.Authenticated {
				slot.State = StateAuthenticated
				if err := m.persistPairing(slot); err != nil {
					m.log.Warn("persist pairing failed", "variant", slot.Variant, "error", err)
				}
			}
		case session.EventTelemetry:
			if ev.Packet != nil {
				if t, err := adaptors.ParseTelemetry(toAdaptorVariant(slot.Variant), ev.Packet); err == nil {
					slot.Telemetry = t
				} else {
					m.log.Debug("telemetry parse failed", "variant", slot.Variant, "error", err)
				}
			}
		case session.EventDisconnected:
			slot.State = StateDisconnected
			slot.Session = nil
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
	}
}

// resetToDisconnected reverts slot after a failed connect attempt. The
// slot's PairingRequested flag is cleared too (a resolved attempt, success
// or failure, consumes the request per ScanAndConnect's contract); if the
// slot already has a persisted MAC it keeps auto-scanning via Paired()
// regardless.
func (m *Manager) resetToDisconnected(slot *Slot) {
	m.mu.Lock()
	slot.State = StateDisconnected
	slot.PairingRequested = false
	m.mu.Unlock()
}

// persistPairing saves the slot's current MAC/serial once authenticated at
// least once, so a new pairing survives a restart (§4.5, §8 scenario 6).
// Caller must hold m.mu.
func (m *Manager) persistPairing(slot *Slot) error {
	if slot.MAC == "" {
		return nil
	}
	return m.store.SavePairing(slot.Variant.storeKey(), store.Pairing{MAC: slot.MAC, Serial: slot.Serial})
}

func toAdaptorVariant(v Variant) adaptors.Variant {
	switch v {
	case AirConditioner:
		return adaptors.AirConditioner
	case HighPowerBattery:
		return adaptors.HighPowerBattery
	case Alternator:
		return adaptors.Alternator
	default:
		return adaptors.Battery
	}
}

// SendCommand writes pkt through the slot's active session transport,
// wrapped in the session key's outer frame (§4.6 "Inter-MCU transport
// injects commands into it" — this is the command-injection path the
// inter-MCU command dispatcher calls into).
func (m *Manager) SendCommand(v Variant, pkt *codec.InnerPacket) error {
	m.mu.Lock()
	s := m.slot(v)
	if s == nil {
		m.mu.Unlock()
		return fmt.Errorf("devicemanager: unknown variant %v", v)
	}
	sess := s.Session
	m.mu.Unlock()

	if sess == nil || sess.State() != session.Authenticated {
		return fmt.Errorf("devicemanager: %v is not authenticated", v)
	}
	return sess.SendCommand(pkt)
}
