package ctrl

import (
	"github.com/duskline/rpcore/internal/errs"
)

// SessionIDSet conveys the console-assigned session id.
type SessionIDSet struct {
	SessionID []byte
}

// LoginPINRequest signals the console wants a pairing PIN. Its payload
// is empty or one byte; Incorrect is true when that byte is non-zero,
// marking a re-request after the previous PIN was rejected.
type LoginPINRequest struct {
	Incorrect bool
}

// LoginPINReply carries the PIN as UTF-8 digits, sent in response to a
// LoginPINRequest.
type LoginPINReply struct {
	PIN []byte
}

// GotoBed is sent by the client just before closing the session.
type GotoBed struct{}

// KeyboardSetText pushes text into the remote on-screen keyboard.
type KeyboardSetText struct {
	Text string
}

// KeyboardAccept/KeyboardReject finalize a remote keyboard session.
type KeyboardAccept struct{}
type KeyboardReject struct{}

// ToggleMicrophone enables or disables the microphone upstream.
type ToggleMicrophone struct {
	Enable bool
}

// ConnectMicrophone requests the console (re)connect the microphone
// stream; no payload.
type ConnectMicrophone struct{}

// GoHome requests the console return to its home screen; no payload.
type GoHome struct{}

// EnableFeatures requests a bitmask of optional console features.
type EnableFeatures struct {
	Mask uint32
}

// CantDisplay carries the console's two display-availability flags.
type CantDisplay struct {
	A bool
	B bool
}

// Decode interprets a Frame's payload per its Type.
func Decode(f Frame) (any, error) {
	p := f.Payload
	switch f.Type {
	case TypeSessionIDSet:
		return &SessionIDSet{SessionID: append([]byte(nil), p...)}, nil
	case TypeLoginPINRequest:
		if len(p) < 1 {
			return &LoginPINRequest{}, nil
		}
		return &LoginPINRequest{Incorrect: p[0] != 0}, nil
	case TypeLoginPINReply:
		return &LoginPINReply{PIN: append([]byte(nil), p...)}, nil
	case TypeGotoBed:
		return &GotoBed{}, nil
	case TypeKeyboardSetText:
		return &KeyboardSetText{Text: string(p)}, nil
	case TypeKeyboardAccept:
		return &KeyboardAccept{}, nil
	case TypeKeyboardReject:
		return &KeyboardReject{}, nil
	case TypeToggleMicrophone:
		if len(p) < 1 {
			return nil, errs.New(errs.InvalidData, "ctrl.decode", nil)
		}
		return &ToggleMicrophone{Enable: p[0] != 0}, nil
	case TypeConnectMicrophone:
		return &ConnectMicrophone{}, nil
	case TypeGoHome:
		return &GoHome{}, nil
	case TypeEnableFeatures:
		if len(p) < 4 {
			return nil, errs.New(errs.InvalidData, "ctrl.decode", nil)
		}
		return &EnableFeatures{Mask: be32(p)}, nil
	case TypeCantDisplay:
		if len(p) < 2 {
			return nil, errs.New(errs.InvalidData, "ctrl.decode", nil)
		}
		return &CantDisplay{A: p[0] != 0, B: p[1] != 0}, nil
	default:
		return nil, errs.New(errs.InvalidData, "ctrl.decode", nil)
	}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// EncodeLoginPINReply builds the Frame for a LoginPINReply.
func EncodeLoginPINReply(pin []byte) Frame {
	return Frame{Type: TypeLoginPINReply, Payload: append([]byte(nil), pin...)}
}

// EncodeGotoBed builds the empty-payload GotoBed Frame.
func EncodeGotoBed() Frame {
	return Frame{Type: TypeGotoBed}
}

// EncodeToggleMicrophone builds a ToggleMicrophone Frame.
func EncodeToggleMicrophone(enable bool) Frame {
	payload := []byte{0}
	if enable {
		payload[0] = 1
	}
	return Frame{Type: TypeToggleMicrophone, Payload: payload}
}

// EncodeGoHome builds the empty-payload GoHome Frame.
func EncodeGoHome() Frame {
	return Frame{Type: TypeGoHome}
}

// EncodeEnableFeatures builds an EnableFeatures Frame.
func EncodeEnableFeatures(mask uint32) Frame {
	payload := []byte{byte(mask >> 24), byte(mask >> 16), byte(mask >> 8), byte(mask)}
	return Frame{Type: TypeEnableFeatures, Payload: payload}
}
