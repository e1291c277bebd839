package ctrl

import (
	"fmt"
	"log/slog"
)

// PINSource supplies a pairing PIN on demand, either from stored
// credentials or an interactive prompt.
type PINSource func() []byte

// DisplaySink receives cant-display edge transitions exactly once per
// change, never on a repeated identical state.
type DisplaySink func(a, b bool)

// Context carries the mutable state a Ctrl session needs while
// dispatching decoded messages, mirroring the teacher's control
// package: pointers to mutable fields plus a Send closure for
// emitting response frames.
type Context struct {
	SessionID       *[]byte
	LastCantDisplay *CantDisplay
	PINSource       PINSource
	DisplaySink     DisplaySink
	Log             *slog.Logger
	Send            func(Frame) error
}

// Handle decodes and dispatches a single Ctrl Frame against ctx,
// mutating state and emitting reply frames as needed (e.g. a
// LoginPINReply in answer to a LoginPINRequest).
func Handle(ctx *Context, f Frame) error {
	if ctx == nil || ctx.Send == nil {
		return fmt.Errorf("ctrl handler: invalid context (nil Send)")
	}
	decoded, err := Decode(f)
	if err != nil {
		return fmt.Errorf("ctrl handler decode: %w", err)
	}

	switch v := decoded.(type) {
	case *SessionIDSet:
		if ctx.SessionID != nil {
			*ctx.SessionID = v.SessionID
		}
		if ctx.Log != nil {
			ctx.Log.Debug("session id set", "session_id", v.SessionID)
		}
	case *LoginPINRequest:
		if ctx.Log != nil {
			ctx.Log.Info("login pin requested", "incorrect", v.Incorrect)
		}
		if ctx.PINSource == nil {
			return nil
		}
		pin := ctx.PINSource()
		if err := ctx.Send(EncodeLoginPINReply(pin)); err != nil {
			return fmt.Errorf("ctrl handler: send login pin reply: %w", err)
		}
	case *CantDisplay:
		if ctx.LastCantDisplay == nil || *ctx.LastCantDisplay != *v {
			if ctx.LastCantDisplay != nil {
				*ctx.LastCantDisplay = *v
			}
			if ctx.DisplaySink != nil {
				ctx.DisplaySink(v.A, v.B)
			}
		}
	case *GotoBed:
		if ctx.Log != nil {
			ctx.Log.Info("console requested goto bed")
		}
	case *KeyboardSetText, *KeyboardAccept, *KeyboardReject,
		*ToggleMicrophone, *ConnectMicrophone, *GoHome, *EnableFeatures:
		if ctx.Log != nil {
			ctx.Log.Debug("ctrl message received", "type", f.Type)
		}
	default:
		return fmt.Errorf("ctrl handler: unexpected decoded type %T", v)
	}
	return nil
}
