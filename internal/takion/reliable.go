package takion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	rtoInitial    = 200 * time.Millisecond
	rtoMax        = 2 * time.Second
	rtoMaxRetries = 8

	dupWindowSize = 64
)

type outPacket struct {
	seq        uint32
	buf        []byte
	retries    int
	lastSendMs int64
	rto        time.Duration
}

// ReliableChannel is Takion's reliable sub-channel: monotonically
// sequenced outgoing packets retried on an adaptive RTO, and duplicate
// suppression over a sliding window of recently seen incoming seqs.
type ReliableChannel struct {
	mu       sync.Mutex
	nextSeq  uint32
	out      map[uint32]*outPacket
	rttEstMs float64

	seenMu  sync.Mutex
	seen    map[uint32]struct{}
	highest uint32

	// SendRaw transmits the raw bytes of a (re)sent reliable packet.
	SendRaw func(seq uint32, buf []byte)
	now     func() int64

	retransmitCounter prometheus.Counter
	droppedCounter    prometheus.Counter
}

// NewReliableChannel constructs an empty ReliableChannel. reg may be
// nil to skip metrics registration (e.g. in unit tests).
func NewReliableChannel(sendRaw func(seq uint32, buf []byte), reg prometheus.Registerer) *ReliableChannel {
	r := &ReliableChannel{
		out:     make(map[uint32]*outPacket),
		seen:    make(map[uint32]struct{}, dupWindowSize),
		SendRaw: sendRaw,
		now:     func() int64 { return time.Now().UnixMilli() },
		retransmitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rpcore_takion_reliable_retransmits_total", Help: "Reliable sub-channel packets retransmitted after RTO expiry.",
		}),
		droppedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rpcore_takion_reliable_dropped_total", Help: "Reliable sub-channel packets given up on after exhausting retries.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.retransmitCounter, r.droppedCounter)
	}
	return r
}

// Send assigns the next sequence number to buf, transmits it
// immediately, and tracks it for retransmission until acked.
func (r *ReliableChannel) Send(buf []byte) uint32 {
	r.mu.Lock()
	seq := r.nextSeq
	r.nextSeq++
	r.out[seq] = &outPacket{seq: seq, buf: buf, lastSendMs: r.now(), rto: rtoInitial}
	r.mu.Unlock()

	if r.SendRaw != nil {
		r.SendRaw(seq, buf)
	}
	return seq
}

// Tick scans outstanding packets, retransmitting any whose RTO has
// elapsed (doubling its RTO up to rtoMax) and dropping any that have
// exceeded rtoMaxRetries, returning the seqs given up on.
func (r *ReliableChannel) Tick() []uint32 {
	r.mu.Lock()
	now := r.now()
	var dropped []uint32
	var toResend []*outPacket
	for seq, p := range r.out {
		if now-p.lastSendMs < int64(p.rto/time.Millisecond) {
			continue
		}
		if p.retries >= rtoMaxRetries {
			dropped = append(dropped, seq)
			delete(r.out, seq)
			continue
		}
		p.retries++
		p.lastSendMs = now
		p.rto *= 2
		if p.rto > rtoMax {
			p.rto = rtoMax
		}
		toResend = append(toResend, p)
	}
	r.mu.Unlock()

	if r.droppedCounter != nil {
		r.droppedCounter.Add(float64(len(dropped)))
	}
	if r.SendRaw != nil {
		for _, p := range toResend {
			r.SendRaw(p.seq, p.buf)
		}
	}
	if r.retransmitCounter != nil {
		r.retransmitCounter.Add(float64(len(toResend)))
	}
	return dropped
}

// Ack processes a cumulative-ack seq plus a 32-bit SACK bitmap
// covering the 32 seqs immediately following it, dropping every fully
// acknowledged outstanding packet and updating the RTT estimate from
// the cumulative ack's round trip.
func (r *ReliableChannel) Ack(cumulative uint32, sackBitmap uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if p, ok := r.out[cumulative]; ok {
		r.bumpRTT(now - p.lastSendMs)
	}
	for seq := range r.out {
		if seq <= cumulative {
			delete(r.out, seq)
		}
	}
	for bit := 0; bit < 32; bit++ {
		if sackBitmap&(1<<uint(bit)) == 0 {
			continue
		}
		delete(r.out, cumulative+1+uint32(bit))
	}
}

func (r *ReliableChannel) bumpRTT(sampleMs int64) {
	if sampleMs < 0 {
		return
	}
	if r.rttEstMs == 0 {
		r.rttEstMs = float64(sampleMs)
		return
	}
	const alpha = 0.125
	r.rttEstMs = (1-alpha)*r.rttEstMs + alpha*float64(sampleMs)
}

// RTTEstimateMs returns the current smoothed RTT estimate.
func (r *ReliableChannel) RTTEstimateMs() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rttEstMs
}

// Pending reports the number of outstanding unacknowledged packets.
func (r *ReliableChannel) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.out)
}

// Duplicate reports whether seq falls within the already-seen window
// (and, if not, records it), so a retransmitted packet is not
// delivered to the upper layer twice.
func (r *ReliableChannel) Duplicate(seq uint32) bool {
	r.seenMu.Lock()
	defer r.seenMu.Unlock()

	if _, ok := r.seen[seq]; ok {
		return true
	}
	if seq > r.highest {
		r.highest = seq
	}
	r.seen[seq] = struct{}{}
	if len(r.seen) > dupWindowSize {
		r.evictOld()
	}
	return false
}

func (r *ReliableChannel) evictOld() {
	for seq := range r.seen {
		if r.highest-seq >= dupWindowSize {
			delete(r.seen, seq)
		}
	}
}
