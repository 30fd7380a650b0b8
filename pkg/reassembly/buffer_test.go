package reassembly

import (
	"bytes"
	"testing"

	"github.com/lollokara/ecoflow-gateway/pkg/codec"
)

// feedFrameChunks splits data into the given chunk sizes and feeds a fresh
// Buffer one chunk at a time, returning whatever frames nextFrame resolves
// along the way.
func feedFrameChunks(t *testing.T, data []byte, sizes []int) []*codec.OuterFrame {
	t.Helper()
	b := New(false)
	var frames []*codec.OuterFrame
	off := 0
	for _, n := range sizes {
		if off+n > len(data) {
			t.Fatalf("chunk sizes overrun data: off=%d n=%d len=%d", off, n, len(data))
		}
		b.raw.Write(data[off : off+n])
		off += n
		for {
			f := b.nextFrame()
			if f == nil {
				break
			}
			frames = append(frames, f)
		}
	}
	if off != len(data) {
		t.Fatalf("chunk sizes %v do not cover all %d bytes", sizes, len(data))
	}
	return frames
}

// Scenario 2 from the testable-properties section: a single outer frame
// carrying payload "HELLO!!!" arrives split into chunks of [3, 1, 2, 8, 2]
// bytes. Exactly one frame must be emitted once all bytes are in, with
// that payload intact, regardless of the chunk boundaries.
func TestFragmentationAcrossArbitraryChunkBoundaries(t *testing.T) {
	f := &codec.OuterFrame{FrameType: codec.FrameTypeProtocol, PayloadType: 0x01, Payload: []byte("HELLO!!!")}
	wire, err := codec.EncodeOuterFrame(f, nil, nil)
	if err != nil {
		t.Fatalf("EncodeOuterFrame: %v", err)
	}

	sizes := splitToSum(len(wire), []int{3, 1, 2, 8, 2})
	frames := feedFrameChunks(t, wire, sizes)

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, []byte("HELLO!!!")) {
		t.Fatalf("payload = %q, want HELLO!!!", frames[0].Payload)
	}
}

// splitToSum adapts a requested chunk-size pattern to the actual wire
// length: if the pattern's sum falls short, the remainder is appended as a
// final chunk; the scenario's point (arbitrary, non-aligned slicing) holds
// regardless of the exact trailing size.
func splitToSum(total int, pattern []int) []int {
	sum := 0
	for _, n := range pattern {
		sum += n
	}
	if sum == total {
		return pattern
	}
	if sum > total {
		panic("pattern longer than total")
	}
	return append(append([]int{}, pattern...), total-sum)
}

// Scenario 3: a frame with a deliberately corrupted trailing CRC is
// followed immediately by a valid frame. The buffer must discard the bad
// frame one byte at a time and still recover the good one.
func TestCRCResyncSkipsCorruptFrame(t *testing.T) {
	good := &codec.OuterFrame{FrameType: codec.FrameTypeCommand, PayloadType: 0x00, Payload: []byte{0x20, 0x00}}
	wire, err := codec.EncodeOuterFrame(good, nil, nil)
	if err != nil {
		t.Fatalf("EncodeOuterFrame: %v", err)
	}

	corrupt := append([]byte{}, wire...)
	corrupt[len(corrupt)-1] ^= 0xFF // break the trailing CRC

	stream := append(corrupt, wire...)

	b := New(false)
	b.raw.Write(stream)
	var frames []*codec.OuterFrame
	for {
		f := b.nextFrame()
		if f == nil {
			break
		}
		frames = append(frames, f)
	}

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (the valid one after resync)", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, good.Payload) {
		t.Fatalf("payload = %x, want %x", frames[0].Payload, good.Payload)
	}
}

func TestFeedEmitsInnerPacketsUnauthenticated(t *testing.T) {
	inner := &codec.InnerPacket{
		Source: 0x20, Destination: 0x02, CmdSet: 0xFE, CmdID: 0x15,
		Payload: []byte("hi"), Version: 2, Seq: 1, ProductID: 0x0D,
	}
	innerWire, err := codec.EncodeInnerPacket(inner)
	if err != nil {
		t.Fatalf("EncodeInnerPacket: %v", err)
	}

	outer := &codec.OuterFrame{FrameType: codec.FrameTypeProtocol, PayloadType: 0x00, Payload: innerWire}
	wire, err := codec.EncodeOuterFrame(outer, nil, nil)
	if err != nil {
		t.Fatalf("EncodeOuterFrame: %v", err)
	}

	b := New(false)
	packets, err := b.Feed(wire)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(packets))
	}
	if string(packets[0].Payload) != "hi" {
		t.Fatalf("payload = %q, want hi", packets[0].Payload)
	}
}

func TestFeedDecryptsWhenAuthenticated(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, 16)
	iv := bytes.Repeat([]byte{0x44}, 16)

	inner := &codec.InnerPacket{
		Source: 0x20, Destination: 0x02, CmdSet: 0xFE, CmdID: 0x15,
		Payload: []byte("secret-telemetry"), Version: 3, Seq: 2, ProductID: 0x0D,
	}
	innerWire, err := codec.EncodeInnerPacket(inner)
	if err != nil {
		t.Fatalf("EncodeInnerPacket: %v", err)
	}

	outer := &codec.OuterFrame{FrameType: codec.FrameTypeCommand, PayloadType: 0x00, Payload: innerWire}
	wire, err := codec.EncodeOuterFrame(outer, key, iv)
	if err != nil {
		t.Fatalf("EncodeOuterFrame: %v", err)
	}

	b := New(false)
	b.SetSessionKey(key, iv)
	packets, err := b.Feed(wire)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(packets))
	}
	if string(packets[0].Payload) != "secret-telemetry" {
		t.Fatalf("payload = %q", packets[0].Payload)
	}
}

func TestParseHandshakeFrameSkipsDecryption(t *testing.T) {
	f := &codec.OuterFrame{FrameType: codec.FrameTypeProtocol, PayloadType: 0x00, Payload: []byte("raw-handshake-bytes")}
	wire, err := codec.EncodeOuterFrame(f, nil, nil)
	if err != nil {
		t.Fatalf("EncodeOuterFrame: %v", err)
	}
	got, err := ParseHandshakeFrame(wire)
	if err != nil {
		t.Fatalf("ParseHandshakeFrame: %v", err)
	}
	if !bytes.Equal(got, f.Payload) {
		t.Fatalf("got %q, want %q", got, f.Payload)
	}
}
