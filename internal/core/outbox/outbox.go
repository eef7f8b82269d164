// Package outbox implements the transactional outbox: the durable staging
// store that guarantees a committed business transaction's outbound
// messages are eventually dispatched, grounded on the teacher's
// transport/sqlite and transport/postgres message tables adapted from
// broker queue storage into outbox state tracking.
package outbox

import (
	"context"
	"fmt"
	"time"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// State is an outbox entry's position in the Outstanding -> Dispatched
// state machine (spec §8 invariant 4: this transition happens at most once
// per entry).
type State int

const (
	Outstanding State = iota
	Dispatched
)

func (s State) String() string {
	switch s {
	case Outstanding:
		return "outstanding"
	case Dispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// Entry is one outbox row: a staged message plus its dispatch bookkeeping.
// Attempts/LastError follow the attempt-accounting fields used by the
// pack's outbox-pattern examples (Zoff-Tech's outboxEvent and allisson's
// outbox_event both carry a retry/attempt counter alongside status).
type Entry struct {
	MessageID     string
	Message       messagepkg.Message
	State         State
	CreatedAt     time.Time
	DispatchedAt  time.Time
	Attempts      int
	LastError     string
}

// TransactionProvider is implemented by stores that can stage an Entry
// inside a caller-supplied transaction handle, so business-state writes and
// the outbox deposit commit atomically (spec §9: pluggable transaction
// abstraction). Stores that only guarantee single-row atomicity (e.g. a
// plain key-value put) may ignore Txn and still satisfy Outbox.
type TransactionProvider interface {
	// RequiresTransaction returns true if the store requires an explicit
	// transaction handle for Add to be atomic with caller state.
	RequiresTransaction() bool
}

// Outbox is the durable staging contract from spec §6. Implementations must
// make mark-dispatched a conditional update from Outstanding, never an
// unconditional overwrite, to uphold invariant 4.
type Outbox interface {
	// Add stages msg as Outstanding. txn is an opaque handle from the
	// caller's transaction (e.g. *sql.Tx); implementations that don't
	// require one ignore it.
	Add(ctx context.Context, msg messagepkg.Message, txn any) error
	Get(ctx context.Context, messageID string) (Entry, error)
	// Outstanding returns entries still Outstanding, created at or before
	// since, oldest first, capped at limit.
	Outstanding(ctx context.Context, since time.Time, limit int) ([]Entry, error)
	// MarkDispatched conditionally transitions messageID from Outstanding
	// to Dispatched. Calling it on an already-Dispatched or unknown entry
	// is a no-op error (RequestNotFound), never a silent double-mark.
	MarkDispatched(ctx context.Context, messageID string, at time.Time) error
	// RecordAttempt increments Attempts and stores lastErr for
	// observability; it does not change State.
	RecordAttempt(ctx context.Context, messageID string, lastErr error) error
}

func notFound(messageID string) error {
	return errspkg.NewRequestNotFound(messageID)
}

func alreadyDispatched(messageID string) error {
	return fmt.Errorf("dispatchflow: outbox entry %s already dispatched: %w", messageID, errspkg.NewRequestNotFound(messageID))
}
