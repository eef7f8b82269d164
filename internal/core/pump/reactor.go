package pump

import "context"

// Reactor runs a Pump on the calling goroutine: one blocking "thread" per
// pump, strict per-channel ordering, operations synchronous throughout.
type Reactor struct {
	pump *Pump
}

// NewReactor builds a Reactor over cfg.
func NewReactor(cfg Config) *Reactor {
	return &Reactor{pump: New(cfg)}
}

// Run blocks the caller until the pump's state machine reaches an exit
// condition (spec §4.6).
func (r *Reactor) Run(ctx context.Context) (ExitReason, error) {
	return r.pump.Run(ctx)
}

// UnacceptableCount exposes the running poison-message tally.
func (r *Reactor) UnacceptableCount() int { return r.pump.UnacceptableCount() }
