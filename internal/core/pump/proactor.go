package pump

import "context"

// Proactor runs a Pump on a managed goroutine: the caller gets a handle
// back immediately and suspends at the same points a Reactor would block
// (channel receive, broker send, outbox/inbox I/O, handler awaits), per
// spec §5. Per-channel ordering is identical to Reactor's as long as the
// underlying Channel serialises Receive calls, which every Channel
// implementation in this module does.
type Proactor struct {
	pump   *Pump
	cancel context.CancelFunc
	done   chan struct{}
	result struct {
		reason ExitReason
		err    error
	}
}

// NewProactor builds a Proactor over cfg.
func NewProactor(cfg Config) *Proactor {
	return &Proactor{pump: New(cfg)}
}

// Start launches the pump loop on a new goroutine and returns immediately.
// Calling Start twice on the same Proactor is a programmer error; build a
// new Proactor per run instead.
func (p *Proactor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		reason, err := p.pump.Run(runCtx)
		p.result.reason = reason
		p.result.err = err
	}()
}

// Stop requests cancellation; the pump exits at its next suspension point
// rather than mid-dispatch, preserving the happens-before chain for the
// message in flight.
func (p *Proactor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the pump loop exits and returns why.
func (p *Proactor) Wait() (ExitReason, error) {
	<-p.done
	return p.result.reason, p.result.err
}

// UnacceptableCount exposes the running poison-message tally.
func (p *Proactor) UnacceptableCount() int { return p.pump.UnacceptableCount() }
