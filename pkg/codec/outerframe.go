package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/lollokara/ecoflow-gateway/pkg/ecocrypto"
)

// OuterPreamble is the fixed 16-bit lead of every outer frame, carried
// little-endian on the wire (§3, §4.2).
const OuterPreamble = 0x5A5A

const (
	FrameTypeCommand  = 0x00
	FrameTypeProtocol = 0x01
)

// OuterFrame is the encrypted, framed unit delivered on the BLE notify
// characteristic, wrapping an InnerPacket's serialized bytes. Grounded on
// the original firmware's EncPacket class.
type OuterFrame struct {
	FrameType   byte
	PayloadType byte
	Payload     []byte // plaintext inner-packet bytes, pre-encryption
}

// EncodeOuterFrame serializes f. When key/iv are non-nil the payload is
// PKCS7-padded to a 16-byte multiple and AES-CBC encrypted under them
// before framing (the handshake-phase frames are sent with key == nil,
// carrying their inner packet in the clear per §4.2).
func EncodeOuterFrame(f *OuterFrame, key, iv []byte) ([]byte, error) {
	processed := f.Payload
	if key != nil {
		padded, err := PKCS7Pad(f.Payload, 16)
		if err != nil {
			return nil, &FrameError{Kind: KindSize, Cause: err}
		}
		var err2 error
		processed, err2 = ecocrypto.EncryptCBC(key, iv, padded)
		if err2 != nil {
			return nil, &FrameError{Kind: KindSize, Cause: err2}
		}
	}

	buf := make([]byte, 0, 6+len(processed)+2)
	var preamble [2]byte
	binary.LittleEndian.PutUint16(preamble[:], OuterPreamble)
	buf = append(buf, preamble[:]...)
	buf = append(buf, (f.FrameType<<4)|f.PayloadType)
	buf = append(buf, 0x01)

	length := uint16(len(processed) + 2)
	var lengthBytes [2]byte
	binary.LittleEndian.PutUint16(lengthBytes[:], length)
	buf = append(buf, lengthBytes[:]...)

	buf = append(buf, processed...)

	crc := crc16Modbus(buf)
	var crcBytes [2]byte
	binary.LittleEndian.PutUint16(crcBytes[:], crc)
	buf = append(buf, crcBytes[:]...)

	return buf, nil
}

// DecodeOuterFrame parses a single, complete outer frame (no fragmentation
// handling — that is pkg/reassembly's job) and returns its still-encrypted
// (or plaintext, pre-authentication) payload bytes.
func DecodeOuterFrame(data []byte) (*OuterFrame, []byte, error) {
	if len(data) < 8 {
		return nil, nil, &FrameError{Kind: KindShort}
	}
	if binary.LittleEndian.Uint16(data[0:2]) != OuterPreamble {
		return nil, nil, &FrameError{Kind: KindPreamble}
	}

	typeByte := data[2]
	length := int(binary.LittleEndian.Uint16(data[4:6]))
	if length < 2 {
		return nil, nil, &FrameError{Kind: KindSize}
	}
	frameEnd := 6 + length
	if len(data) < frameEnd {
		return nil, nil, &FrameError{Kind: KindShort}
	}

	wantCRC := binary.LittleEndian.Uint16(data[frameEnd-2 : frameEnd])
	if crc16Modbus(data[:frameEnd-2]) != wantCRC {
		return nil, nil, &FrameError{Kind: KindBodyCRC}
	}

	payload := make([]byte, length-2)
	copy(payload, data[6:frameEnd-2])

	f := &OuterFrame{
		FrameType:   typeByte >> 4,
		PayloadType: typeByte & 0x0F,
		Payload:     payload,
	}
	return f, data[:frameEnd], nil
}

// PKCS7Pad pads data to the next multiple of blockSize per §4.2, appending
// blockSize bytes of value blockSize when data is already block-aligned.
func PKCS7Pad(data []byte, blockSize int) ([]byte, error) {
	if blockSize <= 0 || blockSize > 255 {
		return nil, fmt.Errorf("codec: invalid PKCS7 block size %d", blockSize)
	}
	padLen := blockSize - (len(data) % blockSize)
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out, nil
}

// PKCS7Unpad validates and strips PKCS7 padding per §4.3: the last
// plaintext byte is read as the pad length and must satisfy 1 <= pad <= 16.
// Used by pkg/reassembly after decrypting an authenticated frame.
func PKCS7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("codec: empty buffer has no PKCS7 padding")
	}
	pad := int(data[len(data)-1])
	if pad < 1 || pad > 16 || pad > len(data) {
		return nil, fmt.Errorf("codec: invalid PKCS7 pad length %d", pad)
	}
	return data[:len(data)-pad], nil
}
