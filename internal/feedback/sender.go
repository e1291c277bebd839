package feedback

import (
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/duskline/rpcore/internal/stoppipe"
	"github.com/duskline/rpcore/internal/takion"
)

// senderPeriod is the fixed controller-state send interval spec.md
// assigns the feedback channel.
const senderPeriod = 8 * time.Millisecond

// Sender periodically packages the current ControllerState plus any
// pending history events into a PacketFeedback datagram and hands it
// off for unreliable delivery, on its own ticker goroutine.
type Sender struct {
	mu              sync.Mutex
	state           ControllerState
	history         *HistoryBuffer
	enableDualsense bool

	// Send transmits a fully framed feedback packet.
	Send func(packet []byte) error

	pipe *stoppipe.Pipe
	wg   conc.WaitGroup
}

// NewSender constructs a Sender with an idle controller state and a
// history ring of the given capacity.
func NewSender(historySize int, enableDualsense bool, send func([]byte) error) *Sender {
	return &Sender{
		state:           Idle(),
		history:         NewHistoryBuffer(historySize),
		enableDualsense: enableDualsense,
		Send:            send,
		pipe:            stoppipe.New(),
	}
}

// Start launches the periodic send loop.
func (s *Sender) Start() {
	s.wg.Go(s.run)
}

// Stop signals the loop to exit and waits for it.
func (s *Sender) Stop() {
	s.pipe.Stop()
	s.wg.Wait()
}

// SetState replaces the controller state sent on the next tick.
func (s *Sender) SetState(state ControllerState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// PushHistory enqueues a button or touch edge to be carried on the
// next sent packet(s) until it ages out of the ring.
func (s *Sender) PushHistory(event HistoryEvent) {
	s.mu.Lock()
	s.history.Push(event)
	s.mu.Unlock()
}

func (s *Sender) run() {
	ticker := time.NewTicker(senderPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.pipe.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sender) tick() {
	s.mu.Lock()
	state := s.state
	historyCap := s.history.Cap()
	packet := make([]byte, 1+StateV12Size+historyCap*5)
	n, err := s.history.Format(packet[1+StateV12Size:])
	enableDualsense := s.enableDualsense
	s.mu.Unlock()

	if err != nil {
		return
	}

	packet[0] = byte(takion.PacketFeedback)
	EncodeStateV12(packet[1:], state, enableDualsense)
	packet = packet[:1+StateV12Size+n]

	if s.Send != nil {
		_ = s.Send(packet)
	}
}
