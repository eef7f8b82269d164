package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// Placeholder selects the bind-variable style a SQL backend expects,
// since lib/pq (Postgres, "$1") and mattn/go-sqlite3 (SQLite, "?") disagree.
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
)

// SQLStore is a reference Outbox backed by database/sql, adapted from the
// teacher's transport/postgres and transport/sqlite message tables: those
// track a broker-queue row through pending/locked/dead-letter; this tracks
// an outbox row through Outstanding/Dispatched plus attempt accounting.
type SQLStore struct {
	db          *sql.DB
	placeholder Placeholder
	table       string
}

// NewSQLStore wraps an already-open *sql.DB. Callers are responsible for
// opening db with the driver matching placeholder (lib/pq for
// PlaceholderDollar, mattn/go-sqlite3 for PlaceholderQuestion).
func NewSQLStore(db *sql.DB, placeholder Placeholder) *SQLStore {
	return &SQLStore{db: db, placeholder: placeholder, table: "dispatchflow_outbox"}
}

// InitSchema creates the outbox table if it doesn't already exist.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		message_id TEXT PRIMARY KEY,
		routing_key TEXT NOT NULL,
		message_type INTEGER NOT NULL,
		payload BLOB NOT NULL,
		content_type TEXT,
		headers TEXT,
		state TEXT NOT NULL DEFAULT 'outstanding',
		created_at TIMESTAMP NOT NULL,
		dispatched_at TIMESTAMP,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`, s.table)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLStore) RequiresTransaction() bool { return true }

func (s *SQLStore) bind(n int) string {
	if s.placeholder == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) execer(txn any) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if tx, ok := txn.(*sql.Tx); ok && tx != nil {
		return tx
	}
	return s.db
}

func (s *SQLStore) Add(ctx context.Context, msg messagepkg.Message, txn any) error {
	headers, err := messagepkg.EncodeBag(msg.Header.Bag)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (message_id, routing_key, message_type, payload, content_type, headers, state, created_at) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		s.table, s.bind(1), s.bind(2), s.bind(3), s.bind(4), s.bind(5), s.bind(6), s.bind(7), s.bind(8),
	)

	_, err = s.execer(txn).ExecContext(ctx, query,
		msg.Header.MessageID, msg.Header.RoutingKey, int(msg.Header.MessageType),
		msg.Body.Bytes, msg.Body.ContentType, headers, Outstanding.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("dispatchflow: outbox insert: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, messageID string) (Entry, error) {
	query := fmt.Sprintf(
		"SELECT message_id, routing_key, message_type, payload, content_type, headers, state, created_at, dispatched_at, attempts, last_error FROM %s WHERE message_id = %s",
		s.table, s.bind(1),
	)
	row := s.db.QueryRowContext(ctx, query, messageID)
	return s.scan(row, messageID)
}

func (s *SQLStore) scan(row *sql.Row, wantMessageID string) (Entry, error) {
	var (
		routingKey, contentType, headers, state string
		msgType                                 int
		payload                                 []byte
		createdAt                               time.Time
		dispatchedAt                            sql.NullTime
		attempts                                int
		lastError                               sql.NullString
		messageID                               string
	)

	if err := row.Scan(&messageID, &routingKey, &msgType, &payload, &contentType, &headers, &state, &createdAt, &dispatchedAt, &attempts, &lastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, notFound(wantMessageID)
		}
		return Entry{}, fmt.Errorf("dispatchflow: outbox scan: %w", err)
	}

	bag, err := messagepkg.DecodeBag(headers)
	if err != nil {
		return Entry{}, err
	}

	entryState := Outstanding
	if state == Dispatched.String() {
		entryState = Dispatched
	}

	msg := messagepkg.Message{
		Header: messagepkg.Header{
			MessageID:   messageID,
			RoutingKey:  routingKey,
			MessageType: messagepkg.Type(msgType),
			Timestamp:   createdAt,
			Bag:         bag,
		},
		Body: messagepkg.Body{Bytes: payload, ContentType: contentType},
	}

	return Entry{
		MessageID:    messageID,
		Message:      msg,
		State:        entryState,
		CreatedAt:    createdAt,
		DispatchedAt: dispatchedAt.Time,
		Attempts:     attempts,
		LastError:    lastError.String,
	}, nil
}

func (s *SQLStore) Outstanding(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	query := fmt.Sprintf(
		"SELECT message_id, routing_key, message_type, payload, content_type, headers, state, created_at, dispatched_at, attempts, last_error FROM %s WHERE state = %s AND created_at <= %s ORDER BY created_at ASC",
		s.table, s.bind(1), s.bind(2),
	)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, Outstanding.String(), since)
	if err != nil {
		return nil, fmt.Errorf("dispatchflow: outbox outstanding query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			routingKey, contentType, headers, state string
			msgType                                 int
			payload                                 []byte
			createdAt                                time.Time
			dispatchedAt                             sql.NullTime
			attempts                                 int
			lastError                                sql.NullString
			messageID                                string
		)
		if err := rows.Scan(&messageID, &routingKey, &msgType, &payload, &contentType, &headers, &state, &createdAt, &dispatchedAt, &attempts, &lastError); err != nil {
			return nil, fmt.Errorf("dispatchflow: outbox outstanding scan: %w", err)
		}

		bag, err := messagepkg.DecodeBag(headers)
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			MessageID: messageID,
			Message: messagepkg.Message{
				Header: messagepkg.Header{
					MessageID:   messageID,
					RoutingKey:  routingKey,
					MessageType: messagepkg.Type(msgType),
					Timestamp:   createdAt,
					Bag:         bag,
				},
				Body: messagepkg.Body{Bytes: payload, ContentType: contentType},
			},
			State:        Outstanding,
			CreatedAt:    createdAt,
			DispatchedAt: dispatchedAt.Time,
			Attempts:     attempts,
			LastError:    lastError.String,
		})
	}
	return entries, rows.Err()
}

func (s *SQLStore) MarkDispatched(ctx context.Context, messageID string, at time.Time) error {
	query := fmt.Sprintf(
		"UPDATE %s SET state = %s, dispatched_at = %s WHERE message_id = %s AND state = %s",
		s.table, s.bind(1), s.bind(2), s.bind(3), s.bind(4),
	)
	result, err := s.db.ExecContext(ctx, query, Dispatched.String(), at, messageID, Outstanding.String())
	if err != nil {
		return fmt.Errorf("dispatchflow: outbox mark-dispatched: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("dispatchflow: outbox mark-dispatched rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, messageID); getErr != nil {
			return notFound(messageID)
		}
		return alreadyDispatched(messageID)
	}
	return nil
}

func (s *SQLStore) RecordAttempt(ctx context.Context, messageID string, lastErr error) error {
	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}
	query := fmt.Sprintf(
		"UPDATE %s SET attempts = attempts + 1, last_error = %s WHERE message_id = %s",
		s.table, s.bind(1), s.bind(2),
	)
	result, err := s.db.ExecContext(ctx, query, errText, messageID)
	if err != nil {
		return fmt.Errorf("dispatchflow: outbox record-attempt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("dispatchflow: outbox record-attempt rows affected: %w", err)
	}
	if affected == 0 {
		return notFound(messageID)
	}
	return nil
}
