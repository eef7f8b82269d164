package scheduler

import requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"

// FireSchedulerRequest wraps a due Job as a dispatchable request. Its Mode
// and inner Request say which of Send/Publish/Post applies and with what
// payload. The worker itself does not build one: it passes the Job straight
// to its Fire callback (processor.Fire).
type FireSchedulerRequest struct {
	requestpkg.Base
	JobID string
	Mode  Mode
	Inner requestpkg.Request
}

// NewFireSchedulerRequest wraps job into a dispatchable FireSchedulerRequest.
func NewFireSchedulerRequest(job Job) FireSchedulerRequest {
	return FireSchedulerRequest{
		Base:  requestpkg.NewBase(requestpkg.Command),
		JobID: job.ID,
		Mode:  job.Mode,
		Inner: job.Request,
	}
}
