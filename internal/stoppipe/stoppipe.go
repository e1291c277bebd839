// Package stoppipe provides a cancellable waitable used by every
// long-running worker in a session: the Takion/RUDP receive loops, the
// Ctrl read loop, and the congestion/feedback tickers all select on a
// Pipe instead of blocking forever on I/O.
//
// Go has no portable anonymous-pipe primitive worth wrapping (unlike
// the C original, which falls back to a bound localhost UDP socket on
// platforms without one) — a closed channel already is a broadcastable,
// race-free cancellation signal, so Pipe is channel-based on every
// platform.
package stoppipe

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/duskline/rpcore/internal/errs"
)

// Pipe is a cancellable, idempotent stop signal with reusable select
// helpers for socket operations.
type Pipe struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New returns an initialized, armed Pipe.
func New() *Pipe {
	return &Pipe{done: make(chan struct{})}
}

// Stop signals cancellation. Idempotent: repeated calls are no-ops.
func (p *Pipe) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.done)
}

// Stopped reports whether Stop has been called.
func (p *Pipe) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Reset drains the stop signal, rearming the pipe for reuse. Callers
// must ensure no goroutine is still selecting on the old Done channel.
func (p *Pipe) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = false
	p.done = make(chan struct{})
}

// Done returns the channel that closes when Stop is called, for use
// directly in a select alongside other cases.
func (p *Pipe) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// SelectResult is the outcome of a cancellable wait.
type SelectResult int

const (
	Ready SelectResult = iota
	Cancelled
	TimedOut
	Failed
)

// SelectSingle waits for readyCh to fire, the pipe to stop, or timeout
// (0 = no timeout) to elapse, whichever happens first.
func (p *Pipe) SelectSingle(readyCh <-chan struct{}, timeout time.Duration) SelectResult {
	if timeout <= 0 {
		select {
		case <-readyCh:
			return Ready
		case <-p.Done():
			return Cancelled
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-readyCh:
		return Ready
	case <-p.Done():
		return Cancelled
	case <-timer.C:
		return TimedOut
	}
}

// Connect dials addr over network, cancellable via the pipe and bounded
// by timeout. Socket-level errors are mapped onto the session's error
// taxonomy per spec.md §4.1.
func (p *Pipe) Connect(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	dialCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		conn net.Conn
		err  error
	}
	resCh := make(chan result, 1)
	d := net.Dialer{}
	go func() {
		conn, err := d.DialContext(dialCtx, network, addr)
		resCh <- result{conn, err}
	}()

	select {
	case r := <-resCh:
		if r.err != nil {
			return nil, mapDialErr(r.err)
		}
		return r.conn, nil
	case <-p.Done():
		return nil, errs.New(errs.Canceled, "stoppipe.connect", nil)
	}
}

func mapDialErr(err error) error {
	switch {
	case isTimeout(err):
		return errs.New(errs.Timeout, "stoppipe.connect", err)
	case containsAny(err, "connection refused", "ECONNREFUSED"):
		return errs.New(errs.ConnectionRefused, "stoppipe.connect", err)
	case containsAny(err, "no route to host", "host is unreachable", "EHOSTUNREACH"):
		return errs.New(errs.HostUnreach, "stoppipe.connect", err)
	default:
		return errs.New(errs.Network, "stoppipe.connect", err)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func containsAny(err error, subs ...string) bool {
	msg := err.Error()
	for _, sub := range subs {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
