package processor

import (
	"context"
	"time"

	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
	loggingpkg "github.com/flowmesh/dispatchflow/internal/runtime/logging"
)

// JobContext carries information about one Send/Publish call to JobHooks,
// adapted from the teacher's watermill-metadata-bound JobContext: RetryCount
// is a plain field rather than a "protoflow_retry_count" metadata string
// (Processor.Send/Publish leave it at zero, since an unwrapped request
// carries no Header.HandledCount), and RequestType identifies the request
// type rather than a registered watermill handler name.
type JobContext struct {
	RequestType   string
	RequestID     string
	CorrelationID string
	Context       context.Context
	StartedAt     time.Time
	Duration      time.Duration
	RetryCount    int
}

// JobHooks are optional callbacks fired around Send and Publish. Nil hooks
// are simply not called.
type JobHooks struct {
	OnJobStart func(ctx JobContext)
	OnJobDone  func(ctx JobContext)
	OnJobError func(ctx JobContext, err error)
}

// Merge combines two JobHooks, calling h's hooks before other's.
func (h JobHooks) Merge(other JobHooks) JobHooks {
	return JobHooks{
		OnJobStart: chainStart(h.OnJobStart, other.OnJobStart),
		OnJobDone:  chainDone(h.OnJobDone, other.OnJobDone),
		OnJobError: chainError(h.OnJobError, other.OnJobError),
	}
}

func chainStart(a, b func(JobContext)) func(JobContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx JobContext) { a(ctx); b(ctx) }
}

func chainDone(a, b func(JobContext)) func(JobContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx JobContext) { a(ctx); b(ctx) }
}

func chainError(a, b func(JobContext, error)) func(JobContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx JobContext, err error) { a(ctx, err); b(ctx, err) }
}

// runHooks invokes hooks around fn, passing it the request identity needed
// to build a JobContext. fn's own error is returned unchanged.
func runHooks(ctx context.Context, hooks JobHooks, req requestpkg.Request, fn func() error) error {
	jobCtx := JobContext{
		RequestType: requestpkg.TypeName(req),
		RequestID:   req.ID(),
		Context:     ctx,
		StartedAt:   time.Now(),
	}
	if cr, ok := req.(interface{ CorrelationID() string }); ok {
		jobCtx.CorrelationID = cr.CorrelationID()
	}

	if hooks.OnJobStart != nil {
		hooks.OnJobStart(jobCtx)
	}

	err := fn()
	jobCtx.Duration = time.Since(jobCtx.StartedAt)

	if err != nil {
		if hooks.OnJobError != nil {
			hooks.OnJobError(jobCtx, err)
		}
	} else if hooks.OnJobDone != nil {
		hooks.OnJobDone(jobCtx)
	}
	return err
}

// LoggingHooks returns pre-built hooks that log job lifecycle events through
// logger, adapted from the teacher's hooks.LoggingHooks.
func LoggingHooks(logger loggingpkg.ServiceLogger) JobHooks {
	return JobHooks{
		OnJobStart: func(ctx JobContext) {
			logger.Info("job started", loggingpkg.LogFields{
				"request_type":   ctx.RequestType,
				"request_id":     ctx.RequestID,
				"correlation_id": ctx.CorrelationID,
			})
		},
		OnJobDone: func(ctx JobContext) {
			logger.Info("job completed", loggingpkg.LogFields{
				"request_type": ctx.RequestType,
				"request_id":   ctx.RequestID,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
		OnJobError: func(ctx JobContext, err error) {
			logger.Error("job failed", err, loggingpkg.LogFields{
				"request_type": ctx.RequestType,
				"request_id":   ctx.RequestID,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks invoking onStart/onDone/onError with
// just the request type, for callers wiring their own counters.
func MetricsHooks(onStart, onDone, onError func(requestType string)) JobHooks {
	return JobHooks{
		OnJobStart: func(ctx JobContext) {
			if onStart != nil {
				onStart(ctx.RequestType)
			}
		},
		OnJobDone: func(ctx JobContext) {
			if onDone != nil {
				onDone(ctx.RequestType)
			}
		},
		OnJobError: func(ctx JobContext, err error) {
			if onError != nil {
				onError(ctx.RequestType)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that call alertFunc on job errors
// only.
func AlertingHooks(alertFunc func(ctx JobContext, err error)) JobHooks {
	return JobHooks{OnJobError: alertFunc}
}
