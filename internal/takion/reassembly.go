package takion

import (
	"time"

	"github.com/duskline/rpcore/internal/takion/fec"
	"github.com/prometheus/client_golang/prometheus"
)

// frameUnits accumulates the data and parity units of a single
// frame_index until it can either be delivered whole or FEC-reconstructed.
type frameUnits struct {
	unitsTotal int
	data       map[int][]byte
	parity     map[int][]byte
	firstSeen  int64
	delivered  bool
}

// Reassembler buffers incoming data-channel units by frame_index and
// reconstructs frames that arrive with losses, using FEC when enough
// parity units are present to recover the missing data units.
type Reassembler struct {
	fecDataShards   int
	fecParityShards int
	maxAge          time.Duration

	frames map[uint16]*frameUnits
	now    func() int64

	// OnFrame is called once a frame_index is fully available (either
	// complete or FEC-recovered), in data-unit order.
	OnFrame func(frameIndex uint16, units [][]byte)

	fecRecoveryCounter prometheus.Counter
}

// NewReassembler constructs a Reassembler for a FEC group shaped
// (dataShards, parityShards), discarding incomplete frames older than
// maxAge. counter may be nil to skip metrics (e.g. in unit tests); a
// caller juggling several Reassemblers (one per Takion data channel)
// is expected to pass a distinct, already-registered counter to each,
// since each would otherwise collide registering the same metric name.
func NewReassembler(dataShards, parityShards int, maxAge time.Duration, counter prometheus.Counter) *Reassembler {
	return &Reassembler{
		fecDataShards:      dataShards,
		fecParityShards:    parityShards,
		maxAge:             maxAge,
		frames:             make(map[uint16]*frameUnits),
		now:                func() int64 { return time.Now().UnixMilli() },
		fecRecoveryCounter: counter,
	}
}

// Push feeds one received data-channel unit into the reassembler. When
// the owning frame becomes complete or FEC-recoverable, OnFrame fires
// and the frame's bookkeeping is dropped.
func (r *Reassembler) Push(h DataHeader, payload []byte) {
	f, ok := r.frames[h.FrameIndex]
	if !ok {
		f = &frameUnits{
			unitsTotal: int(h.UnitsTotal),
			data:       make(map[int][]byte),
			parity:     make(map[int][]byte),
			firstSeen:  r.now(),
		}
		r.frames[h.FrameIndex] = f
	}
	if f.delivered {
		return
	}

	dataUnits := f.unitsTotal - r.fecParityShards
	if dataUnits <= 0 {
		dataUnits = f.unitsTotal
	}
	if int(h.UnitIndex) < dataUnits {
		f.data[int(h.UnitIndex)] = payload
	} else {
		f.parity[int(h.UnitIndex)-dataUnits] = payload
	}

	r.tryDeliver(h.FrameIndex, f, dataUnits)
}

func (r *Reassembler) tryDeliver(frameIndex uint16, f *frameUnits, dataUnits int) {
	if len(f.data) == dataUnits {
		units := make([][]byte, dataUnits)
		for i := 0; i < dataUnits; i++ {
			units[i] = f.data[i]
		}
		r.deliver(frameIndex, f, units)
		return
	}

	missing := dataUnits - len(f.data)
	if missing == 0 || len(f.parity) < missing {
		return
	}

	shards := make([]fec.Shard, 0, dataUnits)
	for idx, buf := range f.data {
		shards = append(shards, fec.Shard{Index: idx, Data: buf})
	}
	for idx, buf := range f.parity {
		shards = append(shards, fec.Shard{Index: dataUnits + idx, Data: buf})
	}
	if len(shards) < dataUnits {
		return
	}

	dec := fec.NewDecoder(dataUnits, r.fecParityShards)
	recovered, err := dec.Reconstruct(shards)
	if err != nil {
		return
	}
	if r.fecRecoveryCounter != nil {
		r.fecRecoveryCounter.Inc()
	}
	r.deliver(frameIndex, f, recovered)
}

func (r *Reassembler) deliver(frameIndex uint16, f *frameUnits, units [][]byte) {
	f.delivered = true
	delete(r.frames, frameIndex)
	if r.OnFrame != nil {
		r.OnFrame(frameIndex, units)
	}
}

// ExpireStale drops any buffered-incomplete frame older than maxAge,
// returning the frame_indexes given up on.
func (r *Reassembler) ExpireStale() []uint16 {
	now := r.now()
	var expired []uint16
	for idx, f := range r.frames {
		if now-f.firstSeen > int64(r.maxAge/time.Millisecond) {
			expired = append(expired, idx)
			delete(r.frames, idx)
		}
	}
	return expired
}

// Pending reports how many frame_indexes currently have buffered,
// undelivered units.
func (r *Reassembler) Pending() int {
	return len(r.frames)
}
