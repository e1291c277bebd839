package feedback

import "github.com/duskline/rpcore/internal/errs"

// HistoryBuffer is a fixed-size ring of HistoryEvent, newest first.
// Push prepends; Format serializes from "begin", the most recently
// written slot, walking len entries from newest to oldest, matching the wire's expectation that more recent input
// edges appear first in a feedback packet.
type HistoryBuffer struct {
	events []HistoryEvent
	size   int
	begin  int
	length int
}

// NewHistoryBuffer allocates a ring of the given capacity.
func NewHistoryBuffer(size int) *HistoryBuffer {
	return &HistoryBuffer{events: make([]HistoryEvent, size), size: size}
}

// Push inserts event at the front of the ring, evicting the oldest
// entry once the buffer is full.
func (h *HistoryBuffer) Push(event HistoryEvent) {
	h.begin = (h.begin + h.size - 1) % h.size
	h.length++
	if h.length >= h.size {
		h.length = h.size
	}
	h.events[h.begin] = event
}

// Format serializes up to Len() events (newest first) into buf,
// returning the number of bytes written. Returns BufferTooSmall
// without partial output if buf cannot hold every stored event.
func (h *HistoryBuffer) Format(buf []byte) (int, error) {
	written := 0
	for i := 0; i < h.length; i++ {
		event := h.events[(h.begin+i)%h.size]
		if written+event.Len > len(buf) {
			return 0, errs.New(errs.BufferTooSmall, "feedback.history_buffer.format", nil)
		}
		copy(buf[written:], event.Buf[:event.Len])
		written += event.Len
	}
	return written, nil
}

// Len returns the number of events currently stored.
func (h *HistoryBuffer) Len() int { return h.length }

// Cap returns the ring's fixed capacity.
func (h *HistoryBuffer) Cap() int { return h.size }
