// Package reassembly turns an arbitrary-length stream of outer-frame bytes
// — as delivered, possibly fragmented, by a BLE notify characteristic —
// into a sequence of decoded inner packets. One Buffer belongs to exactly
// one session; it holds no shared state (§4.3, §5).
//
// Grounded on the original firmware's EncPacket::parsePackets (the
// resync-by-one-byte-on-bad-CRC accumulation loop), restructured around
// Go's bytes.Buffer and pkg/codec's frame/packet decoders.
package reassembly

import (
	"bytes"
	"log/slog"

	"github.com/lollokara/ecoflow-gateway/pkg/codec"
)

// minFrameLen is the smallest possible outer frame: 6-byte header plus a
// 2-byte trailing CRC, zero payload.
const minFrameLen = 8

// Buffer accumulates raw bytes and emits fully-formed inner packets as
// enough bytes arrive. It is not safe for concurrent use; callers feed it
// from a single session goroutine.
type Buffer struct {
	raw bytes.Buffer

	authenticated  bool
	xorDeobfuscate bool
	key, iv        []byte

	log *slog.Logger
}

// New returns an empty Buffer. xorDeobfuscate should be set for V3 battery
// variants per §4.2/§4.7. Logs through slog.Default with a "component"
// attribute unless SetLogger overrides it.
func New(xorDeobfuscate bool) *Buffer {
	return &Buffer{
		xorDeobfuscate: xorDeobfuscate,
		log:            slog.Default().With("component", "reassembly"),
	}
}

// SetLogger overrides the buffer's logger, e.g. so a session can attach its
// own per-device attributes (variant, address).
func (b *Buffer) SetLogger(log *slog.Logger) {
	b.log = log
}

// SetSessionKey installs the session key/IV and marks the buffer
// authenticated, so subsequent frames are decrypted before parsing. Called
// once the session state machine reaches Authenticated.
func (b *Buffer) SetSessionKey(key, iv []byte) {
	b.key = key
	b.iv = iv
	b.authenticated = true
}

// Feed appends chunk to the internal buffer and extracts every inner
// packet that can be fully resolved from the accumulated bytes. It never
// returns an error itself — resync-worthy transient-transport faults (bad
// preamble, bad outer-frame CRC) are silently absorbed by advancing one
// byte, per §4.2's error model and §7's "Transient-transport" class.
// Faults one layer in — a decrypt/unpad failure on an otherwise
// CRC-valid, authenticated frame, or a malformed inner packet inside a
// valid frame — are §7's "Protocol"/"Authentication" classes instead:
// that frame is still discarded (the caller gets nothing for it), but it
// is logged at warning via the buffer's logger before moving on, rather
// than disappearing silently.
func (b *Buffer) Feed(chunk []byte) ([]*codec.InnerPacket, error) {
	b.raw.Write(chunk)

	var packets []*codec.InnerPacket
	for {
		frame := b.nextFrame()
		if frame == nil {
			break
		}

		payload := frame.Payload
		if b.authenticated {
			decrypted, derr := decryptPayload(b.key, b.iv, payload)
			if derr != nil {
				b.log.Warn("discarding frame: decrypt failed", "error", derr)
				continue
			}
			unpadded, perr := codec.PKCS7Unpad(decrypted)
			if perr != nil {
				b.log.Warn("discarding frame: pkcs7 unpad failed", "error", perr)
				continue
			}
			payload = unpadded
		}

		pkt, perr := codec.DecodeInnerPacket(payload, b.xorDeobfuscate)
		if perr != nil {
			b.log.Warn("discarding frame: inner packet decode failed", "error", perr)
			continue
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}

// nextFrame resolves and consumes the next complete, CRC-valid outer frame
// from the internal buffer, resyncing one byte at a time past bad preamble
// or CRC bytes per §4.2's error model. Returns nil once the buffer holds
// too few bytes for another frame.
func (b *Buffer) nextFrame() *codec.OuterFrame {
	for {
		data := b.raw.Bytes()
		if len(data) < minFrameLen {
			return nil
		}

		frame, consumed, err := codec.DecodeOuterFrame(data)
		if err != nil {
			if fe, ok := err.(*codec.FrameError); ok && fe.Kind == codec.KindShort {
				return nil // wait for more bytes
			}
			b.advance(1)
			continue
		}

		b.advance(len(consumed))
		return frame
	}
}

// advance discards the first n bytes of the internal buffer.
func (b *Buffer) advance(n int) {
	remaining := b.raw.Bytes()[n:]
	b.raw.Reset()
	b.raw.Write(remaining)
}

// ParseHandshakeFrame implements the simplified, non-fragmenting,
// non-decrypting handshake-phase path of §4.3: it decodes a single
// complete outer frame and returns its raw inner-packet payload bytes
// unmodified, for use before a session key exists.
func ParseHandshakeFrame(data []byte) ([]byte, error) {
	frame, _, err := codec.DecodeOuterFrame(data)
	if err != nil {
		return nil, err
	}
	return frame.Payload, nil
}
