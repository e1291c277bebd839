package ctrl

import (
	"encoding/binary"

	"github.com/duskline/rpcore/internal/errs"
)

// wireHeaderSize is the length of the counter_be64 | gmac(16) prefix of
// one authenticated Ctrl message on the wire; the frame header and
// payload follow it.
const wireHeaderSize = 8 + gmacSize

// Channel authenticates and frames Ctrl messages over a raw byte
// transport (the Takion reliable sub-channel, or a standalone TCP
// connection in holepunch mode).
type Channel struct {
	crypt *Crypt
	// SendRaw transmits one fully framed, authenticated wire message.
	SendRaw func([]byte) error
}

// NewChannel builds a Channel keyed from the Takion handshake's
// session key.
func NewChannel(sessionKey []byte, sendRaw func([]byte) error) (*Channel, error) {
	crypt, err := NewCrypt(sessionKey)
	if err != nil {
		return nil, err
	}
	return &Channel{crypt: crypt, SendRaw: sendRaw}, nil
}

// Send encodes, authenticates, and transmits f.
func (c *Channel) Send(f Frame) error {
	frameBytes := EncodeFrame(f)
	tag, counter := c.crypt.SealLocal(frameBytes)

	wire := make([]byte, wireHeaderSize+len(frameBytes))
	binary.BigEndian.PutUint64(wire[0:8], counter)
	copy(wire[8:8+gmacSize], tag[:])
	copy(wire[wireHeaderSize:], frameBytes)

	if c.SendRaw == nil {
		return nil
	}
	return c.SendRaw(wire)
}

// Receive verifies and decodes one wire message into its Frame.
func (c *Channel) Receive(wire []byte) (Frame, error) {
	if len(wire) < wireHeaderSize {
		return Frame{}, errs.New(errs.BufferTooSmall, "ctrl.receive", nil)
	}
	counter := binary.BigEndian.Uint64(wire[0:8])
	var tag [gmacSize]byte
	copy(tag[:], wire[8:8+gmacSize])
	frameBytes := wire[wireHeaderSize:]

	if err := c.crypt.VerifyRemote(frameBytes, tag, counter); err != nil {
		return Frame{}, err
	}
	return DecodeFrame(frameBytes)
}
