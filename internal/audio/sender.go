// Package audio packages already Opus-encoded microphone frames into
// Takion mic packets. It does not encode or decode Opus itself — the
// core only frames bytes an external encoder already produced.
package audio

import (
	"encoding/binary"
	"sync"

	"github.com/duskline/rpcore/internal/takion"
)

const (
	// BufSizePerUnit is the required size of each Opus-encoded frame
	// handed to Feed; frames of any other size are silently dropped.
	BufSizePerUnit = 40

	unitsInFrameTotal  = 3
	unitsInFrameFECRaw = 10273
	audioCodec         = 5

	headerSize    = 19
	headerSizePS5 = 20
)

// Sender assembles a 3-unit mic payload from consecutive Opus frames,
// preserving the source's exact (and intentionally redundant) frame
// copy-rotation so a listening decoder on the console reconstructs the
// same byte stream a native client would have sent.
type Sender struct {
	mu sync.Mutex

	ps5        bool
	frameIndex uint16

	frameA []byte
	frameB []byte

	frameBuf   []byte
	packetBuf  []byte

	// Send receives a fully framed mic packet ready for the Takion
	// unreliable channel.
	Send func(packet []byte) error
}

// NewSender returns a Sender for a session talking to a PS4 (ps5=false)
// or PS5 (ps5=true) console.
func NewSender(ps5 bool, send func([]byte) error) *Sender {
	frameBufSize := unitsInFrameTotal * BufSizePerUnit
	return &Sender{
		ps5:       ps5,
		frameBuf:  make([]byte, frameBufSize),
		packetBuf: make([]byte, frameBufSize+headerSizePS5),
		Send:      send,
	}
}

// Feed delivers one Opus-encoded frame. Frames not exactly
// BufSizePerUnit bytes are dropped (no entropy to carry). The first
// two valid frames only seed the rotation buffers; packets are emitted
// starting from the third.
func (s *Sender) Feed(opusFrame []byte) error {
	if len(opusFrame) != BufSizePerUnit {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameB == nil {
		s.frameB = append([]byte(nil), opusFrame...)
		return nil
	}
	if s.frameA == nil {
		s.frameA = append([]byte(nil), opusFrame...)
		return nil
	}

	copy(s.frameBuf[0:BufSizePerUnit], s.frameB)
	copy(s.frameBuf[BufSizePerUnit:2*BufSizePerUnit], s.frameA)
	copy(s.frameBuf[2*BufSizePerUnit:3*BufSizePerUnit], opusFrame)
	copy(s.frameBuf[0:BufSizePerUnit], opusFrame)
	copy(s.frameA, opusFrame)
	copy(s.frameB, s.frameA)

	hdrSize := headerSize
	if s.ps5 {
		hdrSize = headerSizePS5
	}

	packetIndex := s.frameIndex
	frameIdx := s.frameIndex + 1
	unitsNumber := uint32(unitsInFrameFECRaw&0xffff) |
		uint32((unitsInFrameTotal-1)&0xff)<<0x10 |
		uint32(0)<<0x18 // unit_index always 0 for mic frames

	packet := s.packetBuf[:len(s.frameBuf)+hdrSize]
	packet[0] = byte(takion.PacketMic)
	binary.BigEndian.PutUint16(packet[1:], packetIndex)
	binary.BigEndian.PutUint16(packet[3:], frameIdx)
	binary.BigEndian.PutUint32(packet[5:], unitsNumber)
	packet[9] = audioCodec
	binary.BigEndian.PutUint32(packet[10:], 0) // gmac, populated upstream
	binary.BigEndian.PutUint32(packet[14:], 0) // key_pos
	packet[18] = 0
	if s.ps5 {
		packet[19] = 0
	}
	copy(packet[hdrSize:], s.frameBuf)

	if s.frameIndex == 0xffff {
		s.frameIndex = 0
	} else {
		s.frameIndex++
	}

	if s.Send == nil {
		return nil
	}
	return s.Send(packet)
}
