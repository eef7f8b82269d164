package inbox

import errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"

func notFound(requestID string) error {
	return errspkg.NewRequestNotFound(requestID)
}
