package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/duskline/rpcore/internal/audio"
	"github.com/duskline/rpcore/internal/bufpool"
	"github.com/duskline/rpcore/internal/congestion"
	"github.com/duskline/rpcore/internal/ctrl"
	"github.com/duskline/rpcore/internal/errs"
	"github.com/duskline/rpcore/internal/feedback"
	"github.com/duskline/rpcore/internal/logger"
	"github.com/duskline/rpcore/internal/stoppipe"
	"github.com/duskline/rpcore/internal/takion"
)

// feedbackHistorySize is the number of button/touch edges the
// feedback sender's history ring retains between ticks.
const feedbackHistorySize = 8

// MediaSink receives decoded media frames as they arrive off the
// Takion reassembler; the real decode/render pipeline is an external
// collaborator (see spec's non-goals), so this is the full surface a
// Session exposes to it.
type MediaSink interface {
	OnAudioFrame(frameIndex uint16, units [][]byte)
	OnVideoFrame(frameIndex uint16, units [][]byte)
}

// Dependencies are the collaborators a Session drives through its
// lifecycle. Each is independently testable and independently
// mockable, matching how the teacher's server wires listener/registry/
// hook-manager as separate constructed values rather than hardcoding
// them inside Start.
type Dependencies struct {
	// ResolveHost turns ConnectInfo.Host into a dialable Takion address.
	ResolveHost func(ctx context.Context, info ConnectInfo) (string, error)
	// NeedsRegistration reports whether info lacks a usable regist_key.
	NeedsRegistration func(info ConnectInfo) bool
	// Register performs PIN-based pairing, returning the regist_key/key
	// pair the console issues.
	Register func(ctx context.Context, info ConnectInfo) (registKey, key [16]byte, err error)
	// SendHello transmits the launch-spec payload over the established
	// Takion endpoint.
	SendHello func(ctx context.Context, ep *takion.Endpoint, info ConnectInfo) error
	// Pool supplies packet buffers to the Takion endpoint.
	Pool *bufpool.Pool

	MediaSink   MediaSink
	DisplaySink ctrl.DisplaySink
	PINSource   ctrl.PINSource
}

// Session drives one remote-play connection through the states
// described in types.go on a single goroutine, cooperatively
// stoppable via its embedded stop-pipe.
type Session struct {
	id   string
	info ConnectInfo
	deps Dependencies
	log  *slog.Logger

	pipe *stoppipe.Pipe
	wg   conc.WaitGroup

	mu         sync.Mutex
	state      State
	quitReason QuitReason

	endpoint       *takion.Endpoint
	ctrlChan       *ctrl.Channel
	ctrlCtx        *ctrl.Context
	congestion     *congestion.Controller
	audioSender    *audio.Sender
	feedbackSender *feedback.Sender

	sessionID       []byte
	lastCantDisplay ctrl.CantDisplay

	done chan struct{}
}

// New constructs an unstarted Session.
func New(info ConnectInfo, deps Dependencies) *Session {
	id := uuid.NewString()
	return &Session{
		id:    id,
		info:  info,
		deps:  deps,
		log:   logger.Logger().With("session_id", id, "component", "session"),
		pipe:  stoppipe.New(),
		state: StateInit,
		done:  make(chan struct{}),
	}
}

// ID returns the session's generated identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's current driver state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug("state transition", "state", st.String())
}

// Start launches the driver thread. Done() closes once the driver has
// fully exited; QuitReason() then reports why.
func (s *Session) Start(ctx context.Context) {
	s.wg.Go(func() { s.run(ctx) })
}

// Done returns a channel that closes once the driver thread exits.
func (s *Session) Done() <-chan struct{} { return s.done }

// QuitReason reports why the driver thread exited; only meaningful
// after Done() has closed.
func (s *Session) QuitReason() QuitReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quitReason
}

// Stop requests cooperative shutdown: the driver observes the
// stop-pipe and transitions through Stopping, issuing a Ctrl
// goto_bed message first if Ctrl is open.
func (s *Session) Stop() {
	s.pipe.Stop()
	s.wg.Wait()
}

func (s *Session) fail(reason QuitReason) {
	s.mu.Lock()
	s.quitReason = reason
	s.mu.Unlock()
	s.setState(StateStopping)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.teardown()

	s.setState(StateInit)

	if s.deps.NeedsRegistration != nil && s.deps.NeedsRegistration(s.info) {
		s.setState(StateRegistering)
		if s.deps.Register == nil {
			s.fail(QuitSessionRequestFailed)
			return
		}
		registKey, key, err := s.deps.Register(ctx, s.info)
		if err != nil {
			s.log.Warn("registration failed", "error", err)
			s.fail(QuitAuthFailed)
			return
		}
		s.info.RegistKey = registKey
		s.info.Morning = key
	}

	s.setState(StateLookingUp)
	addr := s.info.Host
	if s.deps.ResolveHost != nil {
		resolved, err := s.deps.ResolveHost(ctx, s.info)
		if err != nil {
			s.log.Warn("host resolution failed", "error", err)
			s.fail(QuitHostUnreachable)
			return
		}
		addr = resolved
	}

	s.setState(StateConnectingTakion)
	s.endpoint = takion.NewEndpoint(s.info.Morning[:], s.deps.Pool, nil)
	if err := s.endpoint.Connect(ctx, addr); err != nil {
		s.log.Warn("takion connect failed", "error", err)
		if errs.KindOf(err) == errs.HostUnreach {
			s.fail(QuitHostUnreachable)
		} else {
			s.fail(QuitStreamConnectionFailed)
		}
		return
	}

	s.setState(StateSendingHello)
	if s.deps.SendHello != nil {
		if err := s.deps.SendHello(ctx, s.endpoint, s.info); err != nil {
			s.log.Warn("send hello failed", "error", err)
			s.fail(QuitSessionRequestFailed)
			return
		}
	}

	ctrlChan, err := ctrl.NewChannel(s.endpoint.Keys.SessionKey, func(buf []byte) error {
		s.endpoint.Reliable.Send(buf)
		return nil
	})
	if err != nil {
		s.log.Warn("ctrl channel init failed", "error", err)
		s.fail(QuitCtrlFailed)
		return
	}
	s.ctrlChan = ctrlChan
	s.ctrlCtx = &ctrl.Context{
		SessionID:       &s.sessionID,
		LastCantDisplay: &s.lastCantDisplay,
		PINSource:       s.deps.PINSource,
		DisplaySink:     s.deps.DisplaySink,
		Log:             s.log.With("component", "ctrl"),
		Send:            s.ctrlChan.Send,
	}
	s.endpoint.OnControlData = func(wire []byte) {
		f, err := s.ctrlChan.Receive(wire)
		if err != nil {
			s.log.Warn("ctrl receive failed", "error", err)
			return
		}
		if err := ctrl.Handle(s.ctrlCtx, f); err != nil {
			s.log.Warn("ctrl handle failed", "error", err)
		}
	}

	s.congestion = congestion.NewController(noLossStats{}, 0.1, func(congestion.Packet) {}, nil)
	s.congestion.Start()

	s.audioSender = audio.NewSender(s.info.Platform == PlatformPS5, s.endpoint.SendUnreliable)
	s.feedbackSender = feedback.NewSender(feedbackHistorySize, s.info.EnableDualsense, s.endpoint.SendUnreliable)
	s.feedbackSender.Start()

	s.setState(StateStreaming)
	s.streamLoop(ctx)

	s.mu.Lock()
	if s.quitReason == QuitUnknown {
		s.quitReason = QuitStopped
	}
	s.mu.Unlock()
}

// streamLoop blocks until the caller stops the session or the context
// is cancelled, delivering reassembled frames to the MediaSink.
func (s *Session) streamLoop(ctx context.Context) {
	if s.endpoint != nil && s.deps.MediaSink != nil {
		s.endpoint.ReassemblerAudio.OnFrame = func(frameIndex uint16, units [][]byte) {
			s.deps.MediaSink.OnAudioFrame(frameIndex, units)
		}
		s.endpoint.ReassemblerVideo.OnFrame = func(frameIndex uint16, units [][]byte) {
			s.deps.MediaSink.OnVideoFrame(frameIndex, units)
		}
	}

	select {
	case <-ctx.Done():
	case <-s.pipe.Done():
	}
}

// FeedMicFrame hands one Opus-encoded microphone frame to the audio
// sender, to be packaged and shipped over the unreliable channel.
func (s *Session) FeedMicFrame(opusFrame []byte) error {
	if s.audioSender == nil {
		return nil
	}
	return s.audioSender.Feed(opusFrame)
}

// SetControllerState replaces the controller snapshot the feedback
// sender ships on its next tick.
func (s *Session) SetControllerState(state feedback.ControllerState) {
	if s.feedbackSender != nil {
		s.feedbackSender.SetState(state)
	}
}

// PushHistoryEvent enqueues a button or touch edge to be carried on
// the feedback channel.
func (s *Session) PushHistoryEvent(event feedback.HistoryEvent) {
	if s.feedbackSender != nil {
		s.feedbackSender.PushHistory(event)
	}
}

func (s *Session) teardown() {
	s.setState(StateStopping)
	if s.ctrlChan != nil {
		_ = s.ctrlChan.Send(ctrl.EncodeGotoBed())
	}
	if s.feedbackSender != nil {
		s.feedbackSender.Stop()
	}
	if s.congestion != nil {
		s.congestion.Stop()
	}
	if s.endpoint != nil {
		_ = s.endpoint.Close()
	}
	s.setState(StateDone)
}

// noLossStats is a placeholder congestion.Stats that reports no loss;
// a real Session wires the Takion endpoint's packet counters here.
type noLossStats struct{}

func (noLossStats) Take() (received, lost uint64) { return 0, 0 }
