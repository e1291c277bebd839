package congestion

import (
	"testing"
)

type fakeStats struct {
	received, lost uint64
}

func (f *fakeStats) Take() (uint64, uint64) { return f.received, f.lost }

func TestTickReportsLossRatio(t *testing.T) {
	var got Packet
	c := NewController(&fakeStats{received: 90, lost: 10}, 0.5, func(p Packet) { got = p }, nil)
	c.tick()
	if got.Received != 90 || got.Lost != 10 {
		t.Fatalf("expected unclamped report, got %+v", got)
	}
}

func TestTickClampsAboveMaxLoss(t *testing.T) {
	var got Packet
	var clamped bool
	c := NewController(&fakeStats{received: 40, lost: 60}, 0.1, func(p Packet) { got = p }, nil)
	c.OnClamp = func() { clamped = true }
	c.tick()
	if !clamped {
		t.Fatalf("expected OnClamp to fire when loss exceeds max")
	}
	total := uint64(100)
	wantLost := uint16(float64(total) * 0.1)
	if got.Lost != wantLost {
		t.Fatalf("expected clamped lost=%d, got %d", wantLost, got.Lost)
	}
	if uint64(got.Received)+uint64(got.Lost) != total {
		t.Fatalf("expected received+lost to still sum to total, got %d+%d", got.Received, got.Lost)
	}
}

func TestTickZeroTotalNoDivideByZero(t *testing.T) {
	var got Packet
	c := NewController(&fakeStats{}, 0.5, func(p Packet) { got = p }, nil)
	c.tick()
	if got.Received != 0 || got.Lost != 0 {
		t.Fatalf("expected zero report on zero total, got %+v", got)
	}
}

func TestStartStopTerminates(t *testing.T) {
	c := NewController(&fakeStats{}, 0.5, func(Packet) {}, nil)
	c.Start()
	c.Stop() // must return once the loop observes pipe.Done()
}
