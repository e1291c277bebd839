// Package ctrl implements the encrypted control channel carried
// inside Takion's reliable sub-channel: request/notify message framing,
// AES-GMAC authentication over a counter-keyed stream, and dispatch of
// decoded messages against mutable session state.
package ctrl

import (
	"encoding/binary"

	"github.com/duskline/rpcore/internal/errs"
)

// MessageType identifies a Ctrl request or notification.
type MessageType uint16

const (
	TypeSessionIDSet MessageType = iota + 1
	TypeLoginPINRequest
	TypeLoginPINReply
	TypeGotoBed
	TypeKeyboardSetText
	TypeKeyboardAccept
	TypeKeyboardReject
	TypeToggleMicrophone
	TypeConnectMicrophone
	TypeGoHome
	TypeEnableFeatures
	TypeCantDisplay
)

// frameHeaderSize is the encoded length of (type_be16, payload_size_be32).
const frameHeaderSize = 2 + 4

// Frame is one decrypted, authenticated Ctrl message.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// EncodeFrame serializes f's header and payload (the caller is
// responsible for authenticating/encrypting the result separately via
// the Crypt layer).
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, frameHeaderSize+len(f.Payload))
	binary.BigEndian.PutUint16(buf[0:], uint16(f.Type))
	binary.BigEndian.PutUint32(buf[2:], uint32(len(f.Payload)))
	copy(buf[frameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame parses a Frame header plus payload from buf.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < frameHeaderSize {
		return Frame{}, errs.New(errs.InvalidData, "ctrl.decode_frame", nil)
	}
	size := binary.BigEndian.Uint32(buf[2:6])
	if int(size) > len(buf)-frameHeaderSize {
		return Frame{}, errs.New(errs.BufferTooSmall, "ctrl.decode_frame", nil)
	}
	return Frame{
		Type:    MessageType(binary.BigEndian.Uint16(buf[0:2])),
		Payload: append([]byte(nil), buf[frameHeaderSize:frameHeaderSize+size]...),
	}, nil
}
