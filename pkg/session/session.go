package session

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lollokara/ecoflow-gateway/pkg/codec"
	"github.com/lollokara/ecoflow-gateway/pkg/ecocrypto"
	"github.com/lollokara/ecoflow-gateway/pkg/reassembly"
)

// authTargetSrc and authTargetDest are the fixed addressing bytes the
// original firmware uses for the two command-set 0x35 handshake packets
// (RequestAuthStatus, Authenticating), for every device variant — distinct
// from the per-variant steady-state addressing of §4.4. Preserved exactly
// per spec.md's open question about the handshake/steady-state addressing
// discrepancy observed in the source.
const (
	authTargetSrc  = 0x21
	authTargetDest = 0x35
	authCmdSet     = 0x35
	cmdIDAuthStatus = 0x89
	cmdIDAuth       = 0x86
)

const (
	authTimeout     = 10 * time.Second
	keepalivePeriod = 5 * time.Second
)

// wave2ControlLow and wave2ControlHigh bound the V2 air-conditioner setter
// command range that must never be echoed back (§4.4 reply policy).
const (
	wave2ControlLow  = 0x51
	wave2ControlHigh = 0x5E
)

// Transport is the narrow write side of the BLE write characteristic a
// session sends outer frames through.
type Transport interface {
	Write(data []byte) error
}

// EventKind classifies a message a Session posts to the manager's report
// channel (§9: "sessions communicate to the manager via a message
// channel, not a back-pointer").
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventTelemetry
	EventDisconnected
)

// Event is the message shape sessions send to pkg/devicemanager.
type Event struct {
	Kind   EventKind
	State  State
	Packet *codec.InnerPacket
	Err    error
}

// Config parameterizes one Session. RandReader and Now are overridable for
// deterministic tests; both default to real randomness/wall-clock when nil.
type Config struct {
	LocalAddr       byte
	DestAddr        byte
	ProtocolVersion byte // 2 or 3
	ProductID       byte
	UserID          string
	DeviceSn        string
	XORDeobfuscate  bool
	Transport       Transport
	Report          chan<- Event
	RandReader      io.Reader
	Now             func() time.Time
}

// Session drives one device's authentication state machine and, once
// Authenticated, its steady-state reply policy and keepalive cadence.
// Not safe for concurrent use — a session belongs to exactly one session
// context/goroutine (§5).
type Session struct {
	cfg   Config
	state State

	keyPair    *ecocrypto.KeyPair
	shared     *ecocrypto.SharedSecret
	sessionKey [16]byte

	buffer *reassembly.Buffer
	log    *slog.Logger

	txSeq         uint32
	lastActivity  time.Time
	lastKeepalive time.Time
}

// New constructs a Session in the Disconnected state. Logs through
// slog.Default with "component"/"dest_addr" attributes; the reassembly
// buffer it owns shares the same logger so decode/decrypt failures
// anywhere in the codec->reassembly->session path are attributed to this
// session.
func New(cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := slog.Default().With("component", "session", "dest_addr", cfg.DestAddr)
	buffer := reassembly.New(cfg.XORDeobfuscate)
	buffer.SetLogger(log)
	return &Session{
		cfg:    cfg,
		state:  Disconnected,
		buffer: buffer,
		log:    log,
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// OnLinkEstablished transitions Connecting -> ServiceDiscovery once the BLE
// link layer reports a connected client.
func (s *Session) OnLinkEstablished() {
	s.state = ServiceDiscovery
	s.touch()
}

// OnServicesDiscovered transitions ServiceDiscovery -> Subscribed once the
// required characteristics are found and notify is subscribed.
func (s *Session) OnServicesDiscovered() {
	s.state = Subscribed
	s.touch()
}

// BeginConnecting transitions Disconnected -> Connecting: a scan match was
// found and a connect was requested.
func (s *Session) BeginConnecting() {
	s.state = Connecting
	s.touch()
}

// Start begins the cryptographic handshake: generates a fresh keypair and
// sends the public-key-exchange frame, transitioning Subscribed ->
// PublicKeyExchange. Per §3 Lifecycles, the sequence counter resets to 1.
func (s *Session) Start() error {
	s.txSeq = 1
	kp, err := ecocrypto.GenerateKeyPair(s.cfg.RandReader)
	if err != nil {
		return s.fail(ReasonCryptoFailure, err)
	}
	s.keyPair = kp

	payload := make([]byte, 0, 2+40)
	payload = append(payload, 0x01, 0x00)
	payload = append(payload, kp.PublicKey[:]...)

	if err := s.sendHandshakeFrame(payload); err != nil {
		return s.fail(ReasonLinkLoss, err)
	}
	s.state = PublicKeyExchange
	s.touch()
	return nil
}

// HandleNotification feeds raw bytes received on the notify characteristic
// into the session, dispatching on the current state. Per §7, a handshake
// frame fault is a Protocol-class error: the frame is discarded and logged
// at warning, not propagated, since the peer is expected to retransmit on
// its own handshake retry policy.
func (s *Session) HandleNotification(data []byte) error {
	s.touch()

	if s.state == PublicKeyExchange || s.state == RequestingSessionKey {
		payload, err := reassembly.ParseHandshakeFrame(data)
		if err != nil {
			s.log.Warn("discarding handshake frame", "state", s.state, "error", err)
			return nil
		}
		return s.handleAuthHandshake(payload)
	}

	packets, err := s.buffer.Feed(data)
	if err != nil {
		s.log.Warn("reassembly feed failed", "error", err)
		return nil
	}
	for _, pkt := range packets {
		if err := s.handlePacket(pkt); err != nil {
			return err
		}
	}
	return nil
}

// handleAuthHandshake implements _handleAuthHandshake: the two
// unencrypted-then-shared-key-encrypted phases preceding RequestingAuthStatus.
func (s *Session) handleAuthHandshake(payload []byte) error {
	switch s.state {
	case PublicKeyExchange:
		if len(payload) < 43 || payload[0] != 0x01 {
			s.log.Warn("discarding malformed public-key-exchange payload", "len", len(payload))
			return nil
		}
		peerPub := payload[3:43]
		shared, err := s.keyPair.DeriveShared(peerPub)
		if err != nil {
			return s.fail(ReasonCryptoFailure, err)
		}
		s.shared = shared
		s.state = RequestingSessionKey
		s.touch()
		return s.sendHandshakeFrame([]byte{0x02})

	case RequestingSessionKey:
		if len(payload) <= 1 {
			s.log.Warn("discarding malformed session-key payload", "len", len(payload))
			return nil
		}
		decrypted, err := ecocrypto.DecryptCBC(s.shared.Key[:], s.shared.IV[:], payload[1:])
		if err != nil {
			return s.fail(ReasonCryptoFailure, err)
		}
		if unpadded, uerr := codec.PKCS7Unpad(decrypted); uerr == nil {
			decrypted = unpadded
		}
		if len(decrypted) < 18 {
			s.log.Warn("discarding malformed session-key payload", "decrypted_len", len(decrypted))
			return nil
		}

		var seed [2]byte
		var srand [16]byte
		copy(srand[:], decrypted[:16])
		seed[0], seed[1] = decrypted[16], decrypted[17]

		sessionKey, err := ecocrypto.DeriveSessionKey(seed, srand)
		if err != nil {
			return s.fail(ReasonCryptoFailure, err)
		}
		s.sessionKey = sessionKey
		s.buffer.SetSessionKey(s.sessionKey[:], s.shared.IV[:])

		s.state = RequestingAuthStatus
		s.touch()
		return s.sendAuthPacket(cmdIDAuthStatus, nil)
	}
	return nil
}

// handlePacket routes a fully reassembled inner packet according to the
// current state: the pre-Authenticated states consume the 0x35 handshake
// replies; Authenticated applies the telemetry-report + reply-policy path.
func (s *Session) handlePacket(pkt *codec.InnerPacket) error {
	switch s.state {
	case RequestingAuthStatus:
		if pkt.CmdSet == authCmdSet && pkt.CmdID == cmdIDAuthStatus {
			s.state = Authenticating
			s.touch()
			sum := md5.Sum([]byte(s.cfg.UserID + s.cfg.DeviceSn))
			hexPayload := []byte(strings.ToUpper(hex.EncodeToString(sum[:])))
			return s.sendAuthPacket(cmdIDAuth, hexPayload)
		}
		return nil

	case Authenticating:
		if pkt.CmdSet == authCmdSet && pkt.CmdID == cmdIDAuth && len(pkt.Payload) > 0 && pkt.Payload[0] == 0x00 {
			s.state = Authenticated
			s.lastKeepalive = s.cfg.Now()
			s.touch()
			s.report(Event{Kind: EventStateChanged, State: Authenticated})
			return nil
		}
		return s.fail(ReasonAuthDenied, nil)

	case Authenticated:
		s.report(Event{Kind: EventTelemetry, State: Authenticated, Packet: pkt})
		return s.maybeReply(pkt)
	}
	return nil
}

// maybeReply implements the §4.4 reply policy: echo the packet back when
// authenticated and addressed to us, except the V2 air-conditioner setter
// range which must not be echoed.
func (s *Session) maybeReply(pkt *codec.InnerPacket) error {
	if pkt.Destination != s.cfg.LocalAddr {
		return nil
	}
	if s.cfg.ProtocolVersion == 2 && pkt.CmdID >= wave2ControlLow && pkt.CmdID <= wave2ControlHigh {
		return nil
	}

	reply := &codec.InnerPacket{
		Source:      pkt.Destination,
		Destination: pkt.Source,
		CmdSet:      pkt.CmdSet,
		CmdID:       pkt.CmdID,
		Payload:     pkt.Payload,
		CheckType:   0x01,
		Encrypted:   0x01,
		Version:     pkt.Version,
		Seq:         pkt.Seq,
		ProductID:   s.cfg.ProductID,
	}
	return s.sendEncryptedInner(reply)
}

// Tick drives time-based transitions: the authentication timeout and the
// authenticated keepalive cadence (§4.4, §5).
func (s *Session) Tick() error {
	now := s.cfg.Now()
	switch {
	case s.state == Authenticated:
		if now.Sub(s.lastKeepalive) >= keepalivePeriod {
			s.lastKeepalive = now
			return s.sendKeepalive()
		}
	case s.state.IsPreAuthenticated():
		if now.Sub(s.lastActivity) > authTimeout {
			return s.fail(ReasonTimeout, nil)
		}
	}
	return nil
}

// SendCommand encrypts and writes an application-originated packet (e.g.
// from the inter-MCU command dispatcher) through this session. Callers must
// only invoke this once State() reports Authenticated.
func (s *Session) SendCommand(pkt *codec.InnerPacket) error {
	return s.sendEncryptedInner(pkt)
}

func (s *Session) sendKeepalive() error {
	pkt := &codec.InnerPacket{
		Source:      s.cfg.LocalAddr,
		Destination: s.cfg.DestAddr,
		CmdSet:      0xFE,
		CmdID:       0x15,
		Version:     s.cfg.ProtocolVersion,
		ProductID:   s.cfg.ProductID,
	}
	return s.sendEncryptedInner(pkt)
}

// sendAuthPacket sends one of the two command-set 0x35 handshake packets
// with the V2/V3 version-and-sequence quirk of §4.4 preserved exactly: V2
// uses its real protocol version and an incrementing sequence, V3 uses
// version 3 and a fixed sequence of 0.
func (s *Session) sendAuthPacket(cmdID byte, payload []byte) error {
	var version byte
	var seq uint32
	if s.cfg.ProtocolVersion == 2 {
		version = 2
		seq = s.nextSeq()
	} else {
		version = 3
		seq = 0
	}

	pkt := &codec.InnerPacket{
		Source:      authTargetSrc,
		Destination: authTargetDest,
		CmdSet:      authCmdSet,
		CmdID:       cmdID,
		Payload:     payload,
		CheckType:   0x01,
		Encrypted:   0x01,
		Version:     version,
		Seq:         seq,
		ProductID:   s.cfg.ProductID,
	}
	return s.sendEncryptedInner(pkt)
}

func (s *Session) nextSeq() uint32 {
	v := s.txSeq
	s.txSeq++
	return v
}

// sendEncryptedInner encodes pkt, wraps it in an outer frame under the
// session key/IV, and writes it to the transport.
func (s *Session) sendEncryptedInner(pkt *codec.InnerPacket) error {
	wire, err := codec.EncodeInnerPacket(pkt)
	if err != nil {
		return err
	}
	outer := &codec.OuterFrame{FrameType: codec.FrameTypeProtocol, PayloadType: 0x00, Payload: wire}
	frame, err := codec.EncodeOuterFrame(outer, s.sessionKey[:], s.shared.IV[:])
	if err != nil {
		return err
	}
	return s.cfg.Transport.Write(frame)
}

// sendHandshakeFrame wraps a raw handshake payload in an unencrypted outer
// frame (no session key exists yet).
func (s *Session) sendHandshakeFrame(payload []byte) error {
	outer := &codec.OuterFrame{FrameType: codec.FrameTypeCommand, PayloadType: 0x00, Payload: payload}
	frame, err := codec.EncodeOuterFrame(outer, nil, nil)
	if err != nil {
		return err
	}
	return s.cfg.Transport.Write(frame)
}

func (s *Session) touch() {
	s.lastActivity = s.cfg.Now()
}

func (s *Session) report(ev Event) {
	if s.cfg.Report != nil {
		s.cfg.Report <- ev
	}
}

// fail transitions to Disconnected and reports the reason to the manager.
func (s *Session) fail(reason AuthErrorReason, cause error) error {
	authErr := &AuthError{State: s.state, Reason: reason, Cause: cause}
	s.state = Disconnected
	s.report(Event{Kind: EventDisconnected, State: Disconnected, Err: authErr})
	return authErr
}
