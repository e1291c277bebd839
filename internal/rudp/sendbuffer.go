package rudp

import (
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/duskline/rpcore/internal/errs"
	"github.com/duskline/rpcore/internal/stoppipe"
)

const (
	resendTimeout     = 400 * time.Millisecond
	resendWakeup      = resendTimeout / 2
	resendTriesMax    = 10
	sendBufferMaxSize = 16
)

type pendingPacket struct {
	seqNum     uint16
	tries      uint64
	lastSendMs int64
	buf        []byte
}

// SendBuffer is the FIFO of in-flight reliable RUDP packets: it
// retransmits anything unacknowledged past resendTimeout and gives up
// (ack-locally, without telling the remote) once a packet exceeds
// resendTriesMax tries.
type SendBuffer struct {
	mu       sync.Mutex
	packets  []pendingPacket
	capacity int

	// SendRaw transmits the raw bytes of a packet being (re)sent.
	SendRaw func(buf []byte)
	// OnGiveUp is called with the seqnum of any packet dropped after
	// exhausting its retry budget.
	OnGiveUp func(seqNum uint16)

	pipe *stoppipe.Pipe
	wg   conc.WaitGroup
	now  func() int64
}

// NewSendBuffer constructs a SendBuffer with the given capacity (the
// source uses 16).
func NewSendBuffer(capacity int, sendRaw func([]byte)) *SendBuffer {
	return &SendBuffer{
		capacity: capacity,
		SendRaw:  sendRaw,
		pipe:     stoppipe.New(),
		now:      nowMs,
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Start launches the resend loop.
func (b *SendBuffer) Start() {
	b.wg.Go(b.run)
}

// Stop signals the loop to exit and waits for it.
func (b *SendBuffer) Stop() {
	b.pipe.Stop()
	b.wg.Wait()
}

// Push enqueues buf for reliable delivery under seqNum. Returns
// Overflow if the buffer is full, InvalidData if seqNum is a duplicate.
func (b *SendBuffer) Push(seqNum uint16, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.packets) >= b.capacity {
		return errs.New(errs.Overflow, "rudp.send_buffer.push", nil)
	}
	for _, p := range b.packets {
		if p.seqNum == seqNum {
			return errs.New(errs.InvalidData, "rudp.send_buffer.push", nil)
		}
	}
	b.packets = append(b.packets, pendingPacket{seqNum: seqNum, lastSendMs: b.now(), buf: buf})
	return nil
}

// Ack removes every packet with seqNum ≤ the given seqNum (mod-2^16
// comparison), compacting the buffer stably, and returns the list of
// acknowledged sequence numbers.
func (b *SendBuffer) Ack(seqNum uint16) []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ackLocked(seqNum)
}

func (b *SendBuffer) ackLocked(seqNum uint16) []uint16 {
	var acked []uint16
	kept := b.packets[:0]
	for _, p := range b.packets {
		if p.seqNum == seqNum || SeqNum16Less(p.seqNum, seqNum) {
			acked = append(acked, p.seqNum)
			continue
		}
		kept = append(kept, p)
	}
	b.packets = kept
	return acked
}

// Len reports the number of packets currently in flight.
func (b *SendBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}

func (b *SendBuffer) run() {
	ticker := time.NewTicker(resendWakeup)
	defer ticker.Stop()
	for {
		select {
		case <-b.pipe.Done():
			return
		case <-ticker.C:
			b.resend()
		}
	}
}

func (b *SendBuffer) resend() {
	b.mu.Lock()
	now := b.now()
	var giveUps []uint16
	var toSend [][]byte
	kept := b.packets[:0]
	for _, p := range b.packets {
		if now-p.lastSendMs > int64(resendTimeout/time.Millisecond) {
			if p.tries >= resendTriesMax {
				giveUps = append(giveUps, p.seqNum)
				continue
			}
			p.lastSendMs = now
			p.tries++
			toSend = append(toSend, p.buf)
		}
		kept = append(kept, p)
	}
	b.packets = kept
	sendRaw := b.SendRaw
	b.mu.Unlock()

	if sendRaw != nil {
		for _, buf := range toSend {
			sendRaw(buf)
		}
	}
	if b.OnGiveUp != nil {
		for _, seq := range giveUps {
			b.OnGiveUp(seq)
		}
	}
}
