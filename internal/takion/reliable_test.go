package takion

import "testing"

func newTestReliable(sent *[][]byte) *ReliableChannel {
	r := NewReliableChannel(func(seq uint32, buf []byte) {
		*sent = append(*sent, buf)
	}, nil)
	var fakeNow int64 = 1000
	r.now = func() int64 { return fakeNow }
	return r
}

func TestSendAssignsMonotonicSeq(t *testing.T) {
	var sent [][]byte
	r := newTestReliable(&sent)

	s0 := r.Send([]byte("a"))
	s1 := r.Send([]byte("b"))
	if s0 != 0 || s1 != 1 {
		t.Fatalf("expected seqs 0,1 got %d,%d", s0, s1)
	}
	if len(sent) != 2 {
		t.Fatalf("expected 2 raw sends, got %d", len(sent))
	}
	if r.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", r.Pending())
	}
}

func TestAckCumulativeRemovesUpTo(t *testing.T) {
	var sent [][]byte
	r := newTestReliable(&sent)
	r.Send([]byte("a"))
	r.Send([]byte("b"))
	r.Send([]byte("c"))

	r.Ack(1, 0)
	if r.Pending() != 1 {
		t.Fatalf("expected 1 pending after ack(1), got %d", r.Pending())
	}
	if _, ok := r.out[2]; !ok {
		t.Fatalf("expected seq 2 still pending")
	}
}

func TestAckSackBitmapRemovesSelectively(t *testing.T) {
	var sent [][]byte
	r := newTestReliable(&sent)
	for i := 0; i < 5; i++ {
		r.Send([]byte{byte(i)})
	}
	// cumulative=0 acks seq 0; bit 1 (seq 2) and bit 3 (seq 4) also acked.
	r.Ack(0, 1<<1|1<<3)

	if _, ok := r.out[0]; ok {
		t.Fatalf("seq 0 should be acked via cumulative")
	}
	if _, ok := r.out[2]; ok {
		t.Fatalf("seq 2 should be acked via sack bit 1")
	}
	if _, ok := r.out[4]; ok {
		t.Fatalf("seq 4 should be acked via sack bit 3")
	}
	if _, ok := r.out[1]; !ok {
		t.Fatalf("seq 1 should remain pending")
	}
	if _, ok := r.out[3]; !ok {
		t.Fatalf("seq 3 should remain pending")
	}
}

func TestTickRetransmitsPastRTOAndDoublesIt(t *testing.T) {
	var sent [][]byte
	r := newTestReliable(&sent)
	r.Send([]byte("a"))
	sent = nil

	fakeNow := int64(1000)
	r.now = func() int64 { return fakeNow }

	fakeNow = 1000 + 199
	if dropped := r.Tick(); len(dropped) != 0 || len(sent) != 0 {
		t.Fatalf("should not resend before RTO elapses")
	}

	fakeNow = 1000 + 201
	if dropped := r.Tick(); len(dropped) != 0 {
		t.Fatalf("unexpected drop: %v", dropped)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 resend, got %d", len(sent))
	}
	if r.out[0].rto != 2*rtoInitial {
		t.Fatalf("expected rto doubled to %v, got %v", 2*rtoInitial, r.out[0].rto)
	}
}

func TestTickGivesUpAfterMaxRetries(t *testing.T) {
	var sent [][]byte
	r := newTestReliable(&sent)
	r.Send([]byte("a"))

	fakeNow := int64(1000)
	r.now = func() int64 { return fakeNow }

	for i := 0; i < rtoMaxRetries; i++ {
		fakeNow += int64(rtoMax/1_000_000) + 10_000
		r.Tick()
	}
	fakeNow += int64(rtoMax/1_000_000) + 10_000
	dropped := r.Tick()
	if len(dropped) != 1 || dropped[0] != 0 {
		t.Fatalf("expected seq 0 given up, got %v", dropped)
	}
	if r.Pending() != 0 {
		t.Fatalf("expected 0 pending after give-up, got %d", r.Pending())
	}
}

func TestDuplicateDetectsRepeatsWithinWindow(t *testing.T) {
	var sent [][]byte
	r := newTestReliable(&sent)

	if r.Duplicate(5) {
		t.Fatalf("first sighting of seq 5 should not be a duplicate")
	}
	if !r.Duplicate(5) {
		t.Fatalf("second sighting of seq 5 should be a duplicate")
	}
	if r.Duplicate(6) {
		t.Fatalf("first sighting of seq 6 should not be a duplicate")
	}
}

func TestDuplicateWindowEvictsOldEntries(t *testing.T) {
	var sent [][]byte
	r := newTestReliable(&sent)

	for seq := uint32(0); seq < dupWindowSize+10; seq++ {
		r.Duplicate(seq)
	}
	if _, ok := r.seen[0]; ok {
		t.Fatalf("seq 0 should have been evicted from the duplicate window")
	}
	if _, ok := r.seen[dupWindowSize+9]; !ok {
		t.Fatalf("most recent seq should remain in the duplicate window")
	}
}
