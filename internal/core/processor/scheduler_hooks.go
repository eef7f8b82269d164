package processor

import (
	"context"
	"time"

	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
	"github.com/flowmesh/dispatchflow/internal/core/scheduler"
)

// ScheduleSendAt schedules req for Send at the given time and returns an
// opaque schedule id.
func (p *Processor) ScheduleSendAt(ctx context.Context, req requestpkg.Request, when time.Time) (string, error) {
	return p.cfg.Scheduler.Schedule(ctx, req, scheduler.ModeSend, when)
}

// ScheduleSendAfter schedules req for Send after the given delay.
func (p *Processor) ScheduleSendAfter(ctx context.Context, req requestpkg.Request, delay time.Duration) (string, error) {
	return p.ScheduleSendAt(ctx, req, time.Now().Add(delay))
}

// SchedulePublishAt schedules req for Publish at the given time.
func (p *Processor) SchedulePublishAt(ctx context.Context, req requestpkg.Request, when time.Time) (string, error) {
	return p.cfg.Scheduler.Schedule(ctx, req, scheduler.ModePublish, when)
}

// SchedulePublishAfter schedules req for Publish after the given delay.
func (p *Processor) SchedulePublishAfter(ctx context.Context, req requestpkg.Request, delay time.Duration) (string, error) {
	return p.SchedulePublishAt(ctx, req, time.Now().Add(delay))
}

// SchedulePostAt schedules req for Post (wrap + outbox-deposit + dispatch)
// at the given time. Unlike scheduled Send/Publish, this firing writes to
// the outbox — the scheduled-Post-touches-outbox resolution from spec §9.
func (p *Processor) SchedulePostAt(ctx context.Context, req requestpkg.Request, when time.Time) (string, error) {
	return p.cfg.Scheduler.Schedule(ctx, req, scheduler.ModePost, when)
}

// SchedulePostAfter schedules req for Post after the given delay.
func (p *Processor) SchedulePostAfter(ctx context.Context, req requestpkg.Request, delay time.Duration) (string, error) {
	return p.SchedulePostAt(ctx, req, time.Now().Add(delay))
}

// Reschedule updates a pending job's due time.
func (p *Processor) Reschedule(ctx context.Context, id string, when time.Time) error {
	return p.cfg.Scheduler.Reschedule(ctx, id, when)
}

// CancelSchedule removes a pending scheduled job. Idempotent: cancelling
// twice, or a job that already fired, is not an error.
func (p *Processor) CancelSchedule(ctx context.Context, id string) error {
	return p.cfg.Scheduler.Cancel(ctx, id)
}

// Fire is the scheduler.Fire callback the façade's scheduler worker should
// be constructed with: it rehydrates a due Job into the corresponding
// Send/Publish/Post call. Per spec §9, scheduled Send/Publish dispatch
// in-process without touching the outbox; scheduled Post goes through the
// full wrap+deposit+dispatch path, since Post itself is defined that way.
func (p *Processor) Fire(ctx context.Context, job scheduler.Job) error {
	switch job.Mode {
	case scheduler.ModeSend:
		_, err := p.Send(ctx, job.Request)
		return err
	case scheduler.ModePublish:
		return p.Publish(ctx, job.Request)
	case scheduler.ModePost:
		return p.Post(ctx, job.Request)
	default:
		return nil
	}
}
