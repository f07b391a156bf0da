package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/classledger/classledger/internal/model"
)

// IntentStore is the payment-intent ledger. Rows are keyed by the gateway
// order id and are never deleted; status moves created -> paid -> used only.
type IntentStore struct {
	db DB
}

func NewIntentStore(db DB) *IntentStore {
	return &IntentStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *IntentStore) WithTx(tx *sql.Tx) *IntentStore {
	return &IntentStore{db: tx}
}

func scanIntent(scanner interface{ Scan(...any) error }) (*model.PaymentIntent, error) {
	var in model.PaymentIntent
	var paymentID, couponCode sql.NullString
	var schoolID sql.NullInt64
	err := scanner.Scan(
		&in.ID, &in.OrderID, &paymentID, &schoolID, &in.Mode, &in.PlanID,
		&in.EnteredStudents, &in.FutureStudents, &couponCode, &in.Status,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		in.PaymentID = &paymentID.String
	}
	if schoolID.Valid {
		in.SchoolID = &schoolID.Int64
	}
	if couponCode.Valid {
		in.CouponCode = &couponCode.String
	}
	return &in, nil
}

const intentCols = `id, order_id, payment_id, school_id, mode, plan_id, entered_students, future_students, coupon_code, status, created_at, updated_at`

// Create records a new intent in status created. Returns ErrDuplicateIntent
// if the order id is already known.
func (s *IntentStore) Create(orderID string, mode model.IntentMode, schoolID *int64, planID string, enteredStudents, futureStudents int, couponCode *string) (*model.PaymentIntent, error) {
	result, err := s.db.Exec(
		`INSERT INTO payment_intents (order_id, mode, school_id, plan_id, entered_students, future_students, coupon_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orderID, mode, schoolID, planID, enteredStudents, futureStudents, couponCode,
	)
	if err != nil {
		if isUniqueViolation(err, "payment_intents.order_id") {
			return nil, ErrDuplicateIntent
		}
		return nil, fmt.Errorf("insert payment intent: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *IntentStore) GetByID(id int64) (*model.PaymentIntent, error) {
	row := s.db.QueryRow(`SELECT `+intentCols+` FROM payment_intents WHERE id = ?`, id)
	in, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return in, nil
}

func (s *IntentStore) GetByOrderID(orderID string) (*model.PaymentIntent, error) {
	row := s.db.QueryRow(`SELECT `+intentCols+` FROM payment_intents WHERE order_id = ?`, orderID)
	in, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment intent by order: %w", err)
	}
	return in, nil
}

// MarkPaid records gateway confirmation. Idempotent: an intent already paid
// or used is left untouched and the call succeeds, so duplicate gateway
// callbacks are harmless.
func (s *IntentStore) MarkPaid(orderID, paymentID string) error {
	result, err := s.db.Exec(
		`UPDATE payment_intents SET payment_id = ?, status = ?, updated_at = ?
		 WHERE order_id = ? AND status = ?`,
		paymentID, model.IntentPaid, time.Now().UTC(), orderID, model.IntentCreated,
	)
	if err != nil {
		return fmt.Errorf("mark intent paid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	in, err := s.GetByOrderID(orderID)
	if err != nil {
		return err
	}
	if in == nil {
		return fmt.Errorf("mark intent paid: order %s not found", orderID)
	}
	// Already paid or used: no-op by design.
	return nil
}

// MarkUsed consumes a paid intent. Called only inside the orchestrator's
// transaction; any state other than paid is an invariant violation.
func (s *IntentStore) MarkUsed(orderID string) error {
	result, err := s.db.Exec(
		`UPDATE payment_intents SET status = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
		model.IntentUsed, time.Now().UTC(), orderID, model.IntentPaid,
	)
	if err != nil {
		return fmt.Errorf("mark intent used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark intent used for order %s: %w", orderID, ErrInvalidTransition)
	}
	return nil
}
