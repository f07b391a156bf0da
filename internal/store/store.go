package store

import (
	"database/sql"
	"errors"
	"strings"
)

// DB is the subset of database/sql used by the stores. Both *sql.DB and
// *sql.Tx satisfy it, so a store can be rebound to a transaction for the
// orchestrator's atomic activation path.
type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

var (
	// ErrDuplicateIntent: an intent for this order id already exists.
	// Callers treat it as idempotent success, not a failure.
	ErrDuplicateIntent = errors.New("payment intent already exists for order")

	// ErrDuplicatePayment: the order or payment already funded a subscription.
	ErrDuplicatePayment = errors.New("payment already funded a subscription")

	// ErrCurrentExists: the school already holds an active-or-grace
	// subscription; the schema's partial unique index rejected a second.
	ErrCurrentExists = errors.New("school already has a current subscription")

	// ErrInvalidTransition: a status write was attempted from the wrong
	// state. Indicates a bug in the calling workflow, never expected in
	// normal operation.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// isUniqueViolation reports whether err is a SQLite UNIQUE violation on the
// named column or index. modernc.org/sqlite surfaces these as text, e.g.
// "UNIQUE constraint failed: subscriptions.order_id" for columns and
// "UNIQUE constraint failed: index 'subscriptions_one_current'" for indexes.
func isUniqueViolation(err error, target string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, target)
}
