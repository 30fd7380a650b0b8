package codec

import "encoding/binary"

// Preamble is the fixed lead byte of every inner packet.
const Preamble = 0xAA

// InnerPacket is the addressed, command-bearing record exchanged across an
// authenticated session, before outer encryption (§4.2). Grounded on the
// original firmware's Packet class (EcoflowProtocol.h/.cpp).
type InnerPacket struct {
	Source      byte
	Destination byte
	CmdSet      byte
	CmdID       byte
	Payload     []byte
	CheckType   byte // V3 only
	Encrypted   byte // V3 only
	Version     byte // 2 or 3
	Seq         uint32
	ProductID   byte
}

// minInnerPacketLen is the length of the V2 header/dispatch region that
// precedes the payload; the 2-byte trailing CRC comes on top of it.
const minInnerPacketLen = 16

// EncodeInnerPacket serializes p per the original firmware's Packet::toBytes:
// preamble, version, little-endian payload length, header CRC-8, product
// id, little-endian sequence, two reserved zero bytes, source, destination,
// (V3 only) check-type and encrypted flag, command-set, command-id,
// payload, and a trailing CRC-16/MODBUS over everything preceding it.
func EncodeInnerPacket(p *InnerPacket) ([]byte, error) {
	if p.Version != 2 && p.Version != 3 {
		return nil, &FrameError{Kind: KindVersion}
	}

	header := make([]byte, 4, minInnerPacketLen+len(p.Payload)+2)
	header[0] = Preamble
	header[1] = p.Version
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(p.Payload)))

	buf := append(header, crc8Header(header))
	buf = append(buf, p.ProductID)

	var seqBytes [4]byte
	binary.LittleEndian.PutUint32(seqBytes[:], p.Seq)
	buf = append(buf, seqBytes[:]...)
	buf = append(buf, 0, 0) // reserved
	buf = append(buf, p.Source, p.Destination)

	if p.Version == 3 {
		buf = append(buf, p.CheckType, p.Encrypted)
	}
	buf = append(buf, p.CmdSet, p.CmdID)
	buf = append(buf, p.Payload...)

	crc := crc16Modbus(buf)
	var crcBytes [2]byte
	binary.LittleEndian.PutUint16(crcBytes[:], crc)
	buf = append(buf, crcBytes[:]...)

	return buf, nil
}

// DecodeInnerPacket is the inverse of EncodeInnerPacket. When xorDeobfuscate
// is set (required for V3 battery variants per §4.2), every payload byte is
// XORed with the low byte of the sequence number after extraction.
func DecodeInnerPacket(data []byte, xorDeobfuscate bool) (*InnerPacket, error) {
	if len(data) < minInnerPacketLen {
		return nil, &FrameError{Kind: KindShort}
	}
	if data[0] != Preamble {
		return nil, &FrameError{Kind: KindPreamble}
	}
	if crc8Header(data[:4]) != data[4] {
		return nil, &FrameError{Kind: KindHeaderCRC}
	}

	version := data[1]
	payloadLen := int(binary.LittleEndian.Uint16(data[2:4]))
	productID := data[5]
	seq := binary.LittleEndian.Uint32(data[6:10])
	src := data[12]
	dest := data[13]

	var cmdSet, cmdID, checkType, encrypted byte
	var payloadOffset int

	switch version {
	case 3:
		if len(data) < 18 {
			return nil, &FrameError{Kind: KindShort}
		}
		checkType = data[14]
		encrypted = data[15]
		cmdSet = data[16]
		cmdID = data[17]
		payloadOffset = 18
	case 2:
		cmdSet = data[14]
		cmdID = data[15]
		payloadOffset = 16
	default:
		return nil, &FrameError{Kind: KindVersion}
	}

	if len(data) < payloadOffset+payloadLen+2 {
		return nil, &FrameError{Kind: KindSize}
	}

	bodyEnd := payloadOffset + payloadLen
	wantCRC := binary.LittleEndian.Uint16(data[bodyEnd : bodyEnd+2])
	if crc16Modbus(data[:bodyEnd]) != wantCRC {
		return nil, &FrameError{Kind: KindBodyCRC}
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[payloadOffset:bodyEnd])
	if xorDeobfuscate {
		seqLow := byte(seq)
		for i := range payload {
			payload[i] ^= seqLow
		}
	}

	return &InnerPacket{
		Source:      src,
		Destination: dest,
		CmdSet:      cmdSet,
		CmdID:       cmdID,
		Payload:     payload,
		CheckType:   checkType,
		Encrypted:   encrypted,
		Version:     version,
		Seq:         seq,
		ProductID:   productID,
	}, nil
}
