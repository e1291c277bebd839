package rudp

import (
	"testing"

	"github.com/duskline/rpcore/internal/errs"
)

func TestPushRejectsDuplicateSeq(t *testing.T) {
	b := NewSendBuffer(4, nil)
	if err := b.Push(1, []byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := b.Push(1, []byte("b"))
	var e *errs.Error
	if err == nil {
		t.Fatalf("expected duplicate seqnum error")
	}
	if !asErr(err, &e) || e.Kind != errs.InvalidData {
		t.Fatalf("expected InvalidData, got %v", err)
	}
}

func TestPushRejectsOverflow(t *testing.T) {
	b := NewSendBuffer(1, nil)
	if err := b.Push(1, []byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := b.Push(2, []byte("b"))
	var e *errs.Error
	if !asErr(err, &e) || e.Kind != errs.Overflow {
		t.Fatalf("expected Overflow, got %v", err)
	}
}

func TestAckRemovesUpToSeqNum(t *testing.T) {
	b := NewSendBuffer(16, nil)
	_ = b.Push(1, []byte("a"))
	_ = b.Push(2, []byte("b"))
	_ = b.Push(3, []byte("c"))

	acked := b.Ack(2)
	if len(acked) != 2 {
		t.Fatalf("expected 2 packets acked, got %d", len(acked))
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 packet remaining, got %d", b.Len())
	}
}

func TestAckHandlesWraparound(t *testing.T) {
	b := NewSendBuffer(16, nil)
	_ = b.Push(0xfffe, []byte("a"))
	_ = b.Push(0x0001, []byte("b"))

	acked := b.Ack(0xfffe)
	if len(acked) != 1 || acked[0] != 0xfffe {
		t.Fatalf("expected only 0xfffe acked, got %v", acked)
	}
}

func TestResendRetransmitsPastTimeout(t *testing.T) {
	b := NewSendBuffer(4, nil)
	var sent [][]byte
	b.SendRaw = func(buf []byte) { sent = append(sent, buf) }

	fakeNow := int64(1000)
	b.now = func() int64 { return fakeNow }
	_ = b.Push(1, []byte("payload"))

	fakeNow = 1000 + 401
	b.resend()

	if len(sent) != 1 {
		t.Fatalf("expected one retransmit past the 400ms timeout, got %d", len(sent))
	}
}

func TestResendGivesUpAfterMaxTries(t *testing.T) {
	b := NewSendBuffer(4, nil)
	var gaveUp []uint16
	b.OnGiveUp = func(seq uint16) { gaveUp = append(gaveUp, seq) }

	fakeNow := int64(0)
	b.now = func() int64 { return fakeNow }
	_ = b.Push(42, []byte("payload"))

	for i := 0; i < resendTriesMax; i++ {
		fakeNow += 401
		b.resend()
	}
	if len(gaveUp) != 0 {
		t.Fatalf("should not give up before exceeding max tries, got %v", gaveUp)
	}
	fakeNow += 401
	b.resend()
	if len(gaveUp) != 1 || gaveUp[0] != 42 {
		t.Fatalf("expected to give up on seq 42, got %v", gaveUp)
	}
	if b.Len() != 0 {
		t.Fatalf("expected packet removed after giving up, got len=%d", b.Len())
	}
}

func asErr(err error, target **errs.Error) bool {
	e, ok := err.(*errs.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
