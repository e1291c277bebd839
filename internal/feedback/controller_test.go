package feedback

import "testing"

func TestIdleTouchesReleased(t *testing.T) {
	s := Idle()
	for i, touch := range s.Touches {
		if touch.ID != -1 {
			t.Fatalf("touch slot %d expected released, got id=%d", i, touch.ID)
		}
	}
	if s.AccelY != 1.0 || s.OrientW != 1.0 {
		t.Fatalf("expected resting accel/orientation, got %+v", s)
	}
}

func TestStartStopTouch(t *testing.T) {
	s := Idle()
	id := s.StartTouch(10, 20)
	if id < 0 {
		t.Fatalf("expected a free touch slot")
	}
	s.StopTouch(uint8(id))
	if s.Touches[0].ID != -1 {
		t.Fatalf("expected touch released after stop")
	}
}

func TestStartTouchExhaustsSlots(t *testing.T) {
	s := Idle()
	for i := 0; i < TouchesMax; i++ {
		if id := s.StartTouch(0, 0); id < 0 {
			t.Fatalf("expected slot %d to be free", i)
		}
	}
	if id := s.StartTouch(0, 0); id != -1 {
		t.Fatalf("expected -1 when all slots full, got %d", id)
	}
}

func TestTouchIDWrapsAt0x80(t *testing.T) {
	s := Idle()
	s.TouchIDNext = 0x7f
	id := s.StartTouch(0, 0)
	if id != 0x7f {
		t.Fatalf("expected id 0x7f, got %d", id)
	}
	if s.TouchIDNext != 0 {
		t.Fatalf("expected touch id counter to wrap to 0, got %d", s.TouchIDNext)
	}
}

func TestSetTouchPosUpdatesActiveTouch(t *testing.T) {
	s := Idle()
	id := s.StartTouch(1, 1)
	s.SetTouchPos(uint8(id), 50, 60)
	if s.Touches[0].X != 50 || s.Touches[0].Y != 60 {
		t.Fatalf("expected updated touch position, got %+v", s.Touches[0])
	}
}

func TestEqualIgnoresInactiveTouchCoords(t *testing.T) {
	a := Idle()
	b := Idle()
	a.Touches[0].X, a.Touches[0].Y = 999, 999 // inactive slot, coords irrelevant
	if !Equal(a, b) {
		t.Fatalf("expected equal states ignoring inactive touch coordinates")
	}
}

func TestOrMergesButtonsAndPicksLargerMagnitude(t *testing.T) {
	a := Idle()
	b := Idle()
	a.Buttons = 0x1
	b.Buttons = 0x2
	a.LeftX = -50
	b.LeftX = 10
	out := Or(a, b)
	if out.Buttons != 0x3 {
		t.Fatalf("expected OR'd buttons 0x3, got %#x", out.Buttons)
	}
	if out.LeftX != -50 {
		t.Fatalf("expected larger-magnitude stick value -50, got %d", out.LeftX)
	}
}

func TestOrPrefersAForTouches(t *testing.T) {
	a := Idle()
	b := Idle()
	a.Touches[0] = Touch{ID: 5, X: 1, Y: 2}
	b.Touches[0] = Touch{ID: 7, X: 3, Y: 4}
	out := Or(a, b)
	if out.Touches[0].ID != 5 {
		t.Fatalf("expected a's touch to win, got id=%d", out.Touches[0].ID)
	}
}
