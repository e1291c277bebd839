package logger

import (
	"context"
	"log/slog"
	"sync"
)

// LevelMask is a bitmask of slog levels a Sniffer should capture.
// Bits are selected by maskBit(level); use the LevelMask* constants.
type LevelMask uint8

const (
	LevelMaskDebug LevelMask = 1 << iota
	LevelMaskInfo
	LevelMaskWarn
	LevelMaskError
)

func maskBit(l slog.Level) LevelMask {
	switch {
	case l < slog.LevelInfo:
		return LevelMaskDebug
	case l < slog.LevelWarn:
		return LevelMaskInfo
	case l < slog.LevelError:
		return LevelMaskWarn
	default:
		return LevelMaskError
	}
}

// Record is one captured log entry.
type Record struct {
	Level slog.Level
	Msg   string
	Attrs map[string]any
}

var (
	sniffMu  sync.Mutex
	sniffers []*Sniffer
)

// Sniffer tees the global log stream, capturing only records whose
// level matches Mask. Tests attach a Sniffer instead of parsing stdout
// to assert "a warning of kind X was logged during handshake".
type Sniffer struct {
	Mask LevelMask

	mu      sync.Mutex
	records []Record
	closed  bool
}

// Capture attaches a new Sniffer filtering on mask and returns it.
// Call Close to detach.
func Capture(mask LevelMask) *Sniffer {
	Init()
	s := &Sniffer{Mask: mask}
	sniffMu.Lock()
	sniffers = append(sniffers, s)
	sniffMu.Unlock()
	return s
}

// Records returns a snapshot of captured records in arrival order.
func (s *Sniffer) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Close detaches the sniffer; no further records are captured.
func (s *Sniffer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	sniffMu.Lock()
	defer sniffMu.Unlock()
	for i, sn := range sniffers {
		if sn == s {
			sniffers = append(sniffers[:i], sniffers[i+1:]...)
			break
		}
	}
}

func (s *Sniffer) observe(rec slog.Record) {
	if s.Mask&maskBit(rec.Level) == 0 {
		return
	}
	attrs := make(map[string]any)
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.records = append(s.records, Record{Level: rec.Level, Msg: rec.Message, Attrs: attrs})
}

// teeHandler wraps a slog.JSONHandler, forwarding every record to it and
// additionally to any attached sniffers.
type teeHandler struct {
	inner slog.Handler
}

func newTeeHandler(w interface{ Write([]byte) (int, error) }) slog.Handler {
	return &teeHandler{inner: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel})}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	sniffMu.Lock()
	cur := make([]*Sniffer, len(sniffers))
	copy(cur, sniffers)
	sniffMu.Unlock()

	for _, s := range cur {
		s.observe(rec)
	}
	return h.inner.Handle(ctx, rec)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{inner: h.inner.WithGroup(name)}
}
