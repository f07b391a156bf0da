package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/classledger/classledger/internal/model"
)

// SubscriptionStore is the subscription ledger: an append-only chain of
// entitlement periods per school. Rows are created by the orchestrator and
// have their status flipped by the sweeper; nothing is ever deleted.
type SubscriptionStore struct {
	db DB
}

func NewSubscriptionStore(db DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *SubscriptionStore) WithTx(tx *sql.Tx) *SubscriptionStore {
	return &SubscriptionStore{db: tx}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var couponCode sql.NullString
	var prevID sql.NullInt64
	err := scanner.Scan(
		&sub.ID, &sub.SchoolID, &sub.PlanID, &sub.OrderID, &sub.PaymentID,
		&sub.EnteredStudents, &sub.FutureStudents, &sub.BillableStudents,
		&sub.OriginalAmount, &sub.DiscountAmount, &sub.PaidAmount, &couponCode,
		&sub.StartDate, &sub.EndDate, &sub.GraceDays, &sub.GraceEndDate,
		&sub.Status, &prevID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if couponCode.Valid {
		sub.CouponCode = &couponCode.String
	}
	if prevID.Valid {
		sub.PreviousSubscriptionID = &prevID.Int64
	}
	return &sub, nil
}

const subscriptionCols = `id, school_id, plan_id, order_id, payment_id, entered_students, future_students, billable_students, original_amount, discount_amount, paid_amount, coupon_code, start_date, end_date, grace_days, grace_end_date, status, previous_subscription_id, created_at, updated_at`

// Create appends a new ledger row. The schema enforces the idempotency and
// uniqueness invariants: a reused order or payment id comes back as
// ErrDuplicatePayment, and a second active-or-grace row for the school comes
// back as ErrCurrentExists.
func (s *SubscriptionStore) Create(sub *model.Subscription) (*model.Subscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO subscriptions
		 (school_id, plan_id, order_id, payment_id, entered_students, future_students, billable_students,
		  original_amount, discount_amount, paid_amount, coupon_code,
		  start_date, end_date, grace_days, grace_end_date, status, previous_subscription_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.SchoolID, sub.PlanID, sub.OrderID, sub.PaymentID,
		sub.EnteredStudents, sub.FutureStudents, sub.BillableStudents,
		sub.OriginalAmount, sub.DiscountAmount, sub.PaidAmount, sub.CouponCode,
		sub.StartDate, sub.EndDate, sub.GraceDays, sub.GraceEndDate,
		sub.Status, sub.PreviousSubscriptionID,
	)
	if err != nil {
		if isUniqueViolation(err, "subscriptions.order_id") || isUniqueViolation(err, "subscriptions.payment_id") {
			return nil, ErrDuplicatePayment
		}
		if isUniqueViolation(err, "subscriptions_one_current") {
			return nil, ErrCurrentExists
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SubscriptionStore) GetByID(id int64) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByOrderID(orderID string) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE order_id = ?`, orderID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by order: %w", err)
	}
	return sub, nil
}

// GetCurrent returns the school's active-or-grace subscription, or nil. The
// partial unique index guarantees at most one exists.
func (s *SubscriptionStore) GetCurrent(schoolID int64) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE school_id = ? AND status IN (?, ?)`,
		schoolID, model.StatusActive, model.StatusGrace,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current subscription: %w", err)
	}
	return sub, nil
}

// NextQueued returns the earliest queued subscription whose start date is at
// or before now, or nil. Earliest-first ordering keeps stacked renewals
// promoting in chain order.
func (s *SubscriptionStore) NextQueued(schoolID int64, now time.Time) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions
		 WHERE school_id = ? AND status = ? AND start_date <= ?
		 ORDER BY start_date ASC LIMIT 1`,
		schoolID, model.StatusQueued, now,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get next queued subscription: %w", err)
	}
	return sub, nil
}

// Tail returns the school's non-expired subscription with the latest end
// date: the end of the renewal chain a new queued period should attach to.
func (s *SubscriptionStore) Tail(schoolID int64) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions
		 WHERE school_id = ? AND status IN (?, ?, ?)
		 ORDER BY end_date DESC LIMIT 1`,
		schoolID, model.StatusActive, model.StatusGrace, model.StatusQueued,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription tail: %w", err)
	}
	return sub, nil
}

// MaxBillableNonExpired returns the largest billable-student count across the
// school's non-expired rows, or 0 if none exist.
func (s *SubscriptionStore) MaxBillableNonExpired(schoolID int64) (int, error) {
	var max int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(billable_students), 0) FROM subscriptions
		 WHERE school_id = ? AND status != ?`,
		schoolID, model.StatusExpired,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max billable students: %w", err)
	}
	return max, nil
}

// CountBySchool returns the number of ledger rows for the school, any status.
func (s *SubscriptionStore) CountBySchool(schoolID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE school_id = ?`, schoolID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return n, nil
}

// ListBySchool returns the school's full subscription history, newest period
// first.
func (s *SubscriptionStore) ListBySchool(schoolID int64) ([]model.Subscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE school_id = ? ORDER BY start_date DESC, id DESC`,
		schoolID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// UpdateStatus flips a row's status, guarded by the expected previous status
// so redundant or racing sweeps are no-ops. Returns whether the row changed.
func (s *SubscriptionStore) UpdateStatus(id int64, from, to model.SubscriptionStatus) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from,
	)
	if err != nil {
		if isUniqueViolation(err, "subscriptions_one_current") {
			return false, ErrCurrentExists
		}
		return false, fmt.Errorf("update subscription status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
