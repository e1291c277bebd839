// Package takion implements the primary media/control datagram
// transport: connect, handshake, reliable/unreliable multiplexing,
// FEC-protected reassembly, congestion reporting, and teardown.
package takion

import "encoding/binary"

// PacketType is the first byte of every Takion datagram.
type PacketType uint8

const (
	PacketControl PacketType = iota
	PacketVideo
	PacketAudio
	PacketHandshake
	PacketCongestion
	PacketDisconnect
	PacketMic
	PacketAck
	PacketFeedback
)

// DataHeader is the framing shared by audio/video/mic data packets:
// (type, packet_index, frame_index, units_number), where units_number
// packs (fec_raw, units_total-1, unit_index) -- the same layout the
// audio sender produces.
type DataHeader struct {
	Type        PacketType
	PacketIndex uint16
	FrameIndex  uint16
	FECRaw      uint16
	UnitsTotal  uint8 // 1-based count
	UnitIndex   uint8
}

// DataHeaderSize is the encoded length of a DataHeader.
const DataHeaderSize = 1 + 2 + 2 + 4

// EncodeDataHeader writes h into buf, which must be at least
// DataHeaderSize bytes.
func EncodeDataHeader(buf []byte, h DataHeader) {
	_ = buf[DataHeaderSize-1]
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[1:], h.PacketIndex)
	binary.BigEndian.PutUint16(buf[3:], h.FrameIndex)
	unitsNumber := uint32(h.FECRaw) | uint32(h.UnitsTotal-1)<<0x10 | uint32(h.UnitIndex)<<0x18
	binary.BigEndian.PutUint32(buf[5:], unitsNumber)
}

// DecodeDataHeader parses a DataHeader from buf.
func DecodeDataHeader(buf []byte) DataHeader {
	unitsNumber := binary.BigEndian.Uint32(buf[5:9])
	return DataHeader{
		Type:        PacketType(buf[0]),
		PacketIndex: binary.BigEndian.Uint16(buf[1:3]),
		FrameIndex:  binary.BigEndian.Uint16(buf[3:5]),
		FECRaw:      uint16(unitsNumber & 0xffff),
		UnitsTotal:  uint8(unitsNumber>>0x10) + 1,
		UnitIndex:   uint8(unitsNumber >> 0x18),
	}
}

// ControlHeader is the framing for control packets: a 4-byte sequence,
// GMAC, and key-position precede the typed payload.
type ControlHeader struct {
	Seq     uint32
	GMAC    uint32
	KeyPos  uint32
}

// ControlHeaderSize is the encoded length of a ControlHeader.
const ControlHeaderSize = 1 + 4 + 4 + 4

// EncodeControlHeader writes a control packet header (including the
// leading PacketControl type byte) into buf.
func EncodeControlHeader(buf []byte, h ControlHeader) {
	_ = buf[ControlHeaderSize-1]
	buf[0] = byte(PacketControl)
	binary.BigEndian.PutUint32(buf[1:], h.Seq)
	binary.BigEndian.PutUint32(buf[5:], h.GMAC)
	binary.BigEndian.PutUint32(buf[9:], h.KeyPos)
}

// DecodeControlHeader parses a ControlHeader from buf (buf[0] is
// assumed already verified as PacketControl by the caller).
func DecodeControlHeader(buf []byte) ControlHeader {
	return ControlHeader{
		Seq:    binary.BigEndian.Uint32(buf[1:5]),
		GMAC:   binary.BigEndian.Uint32(buf[5:9]),
		KeyPos: binary.BigEndian.Uint32(buf[9:13]),
	}
}

// AckHeader is the framing for PacketAck datagrams: a cumulative
// sequence plus a selective-ack bitmap for the 32 sequences
// immediately following it, mirroring ReliableChannel's own
// cumulative/SACK bookkeeping.
type AckHeader struct {
	Cumulative uint32
	SackBitmap uint32
}

// AckHeaderSize is the encoded length of an AckHeader, including the
// leading PacketAck type byte.
const AckHeaderSize = 1 + 4 + 4

// EncodeAckHeader writes a PacketAck datagram (type byte plus header)
// into buf, which must be at least AckHeaderSize bytes.
func EncodeAckHeader(buf []byte, h AckHeader) {
	_ = buf[AckHeaderSize-1]
	buf[0] = byte(PacketAck)
	binary.BigEndian.PutUint32(buf[1:], h.Cumulative)
	binary.BigEndian.PutUint32(buf[5:], h.SackBitmap)
}

// DecodeAckHeader parses an AckHeader from buf (buf[0] is assumed
// already verified as PacketAck by the caller).
func DecodeAckHeader(buf []byte) AckHeader {
	return AckHeader{
		Cumulative: binary.BigEndian.Uint32(buf[1:5]),
		SackBitmap: binary.BigEndian.Uint32(buf[5:9]),
	}
}
