package billing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/classledger/classledger/internal/model"
	"github.com/classledger/classledger/internal/pricing"
	"github.com/classledger/classledger/internal/store"
)

// ConfirmParams identifies a verified gateway payment. SchoolID resolves
// registration intents created before the school record existed; it is
// ignored when the intent already carries a school.
type ConfirmParams struct {
	OrderID   string
	PaymentID string
	SchoolID  *int64
}

// Confirm is the activation/upgrade orchestrator. The caller has already
// verified the gateway signature; Confirm marks the intent paid, recomputes
// the authoritative price from the intent's stored parameters, and mutates
// the subscription ledger inside one transaction. Re-delivery of an
// already-consumed confirmation returns the existing subscription.
func (e *Engine) Confirm(p ConfirmParams) (*model.Subscription, error) {
	intent, err := e.intents.GetByOrderID(p.OrderID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, fmt.Errorf("order %s: %w", p.OrderID, ErrIntentNotFound)
	}
	if intent.Status == model.IntentUsed {
		// At-least-once delivery: the payment already funded a subscription.
		existing, err := e.subs.GetByOrderID(p.OrderID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("order %s: intent consumed but no subscription recorded", p.OrderID)
		}
		return existing, nil
	}

	// Resolve and verify the tenant before touching either ledger; a paid
	// intent must never be consumed for a school that does not exist.
	schoolID, err := resolveSchool(intent, p.SchoolID)
	if err != nil {
		return nil, err
	}
	school, err := e.schools.GetByID(schoolID)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, fmt.Errorf("school %d: %w", schoolID, ErrUnknownSchool)
	}

	if err := e.intents.MarkPaid(p.OrderID, p.PaymentID); err != nil {
		return nil, err
	}

	// Never trust caller-supplied amounts; the intent's stored parameters
	// are priced again here.
	coupon := ""
	if intent.CouponCode != nil {
		coupon = *intent.CouponCode
	}
	price, err := pricing.Price(intent.PlanID, intent.EnteredStudents, intent.FutureStudents, coupon)
	if err != nil {
		return nil, err
	}

	if err := e.Sweep(schoolID); err != nil {
		return nil, err
	}

	switch intent.Mode {
	case model.ModeUpgrade:
		return e.upgrade(schoolID, intent, price, p.PaymentID)
	default:
		return e.activate(schoolID, intent, price, p.PaymentID)
	}
}

func resolveSchool(intent *model.PaymentIntent, fallback *int64) (int64, error) {
	if intent.SchoolID != nil {
		return *intent.SchoolID, nil
	}
	if fallback != nil {
		return *fallback, nil
	}
	return 0, fmt.Errorf("order %s: %w", intent.OrderID, ErrUnknownSchool)
}

// activate handles initial activation: the school's first subscription goes
// live immediately and becomes the entitlement pointer.
func (e *Engine) activate(schoolID int64, intent *model.PaymentIntent, price *pricing.Breakdown, paymentID string) (*model.Subscription, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin activation: %w", err)
	}
	defer tx.Rollback()

	subs := e.subs.WithTx(tx)
	sub := e.newSubscription(schoolID, intent, price, paymentID, e.now(), model.StatusActive, nil, 0)
	created, err := subs.Create(sub)
	if err != nil {
		return resolveDuplicate(subs, err, intent.OrderID)
	}
	if err := e.schools.WithTx(tx).SetCurrentSubscription(schoolID, created.ID); err != nil {
		return nil, err
	}
	if err := e.markUsed(tx, intent.OrderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activation: %w", err)
	}

	e.logger.Info("subscription activated",
		"school_id", schoolID, "subscription_id", created.ID,
		"plan", created.PlanID, "billable_students", created.BillableStudents,
		"paid_amount", created.PaidAmount)
	return created, nil
}

// upgrade handles renewals: a new period is queued at the tail of the chain,
// or goes live immediately when the school has fully lapsed.
func (e *Engine) upgrade(schoolID int64, intent *model.PaymentIntent, price *pricing.Breakdown, paymentID string) (*model.Subscription, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin upgrade: %w", err)
	}
	defer tx.Rollback()

	subs := e.subs.WithTx(tx)

	count, err := subs.CountBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("school %d: %w", schoolID, ErrNoSubscriptionHistory)
	}

	// Capacity monotonicity: a paid renewal may never shrink capacity below
	// the current roster or below any still-live committed period.
	roster, err := e.schools.WithTx(tx).CountActiveStudents(schoolID)
	if err != nil {
		return nil, err
	}
	maxBillable, err := subs.MaxBillableNonExpired(schoolID)
	if err != nil {
		return nil, err
	}
	if price.BillableStudents < roster || price.BillableStudents < maxBillable {
		return nil, fmt.Errorf("requested %d, roster %d, committed %d: %w",
			price.BillableStudents, roster, maxBillable, ErrCapacityDecrease)
	}

	tail, err := subs.Tail(schoolID)
	if err != nil {
		return nil, err
	}

	var sub *model.Subscription
	if tail != nil {
		// Queue at the chain tail: start exactly where the predecessor
		// ends, so periods stay contiguous and non-overlapping.
		sub = e.newSubscription(schoolID, intent, price, paymentID, tail.EndDate, model.StatusQueued, &tail.ID, 0)
	} else {
		sub = e.newSubscription(schoolID, intent, price, paymentID, e.now(), model.StatusActive, nil, 0)
	}

	created, err := subs.Create(sub)
	if err != nil {
		return resolveDuplicate(subs, err, intent.OrderID)
	}
	if created.Status == model.StatusActive {
		if err := e.schools.WithTx(tx).SetCurrentSubscription(schoolID, created.ID); err != nil {
			return nil, err
		}
	}
	if err := e.markUsed(tx, intent.OrderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upgrade: %w", err)
	}

	e.logger.Info("subscription renewed",
		"school_id", schoolID, "subscription_id", created.ID,
		"status", created.Status, "starts", created.StartDate,
		"paid_amount", created.PaidAmount)
	return created, nil
}

// newSubscription builds a ledger row. carryOver shifts the end date by
// unused time credited from a prior period; current policy always passes
// zero, the parameter is the documented extension point.
func (e *Engine) newSubscription(schoolID int64, intent *model.PaymentIntent, price *pricing.Breakdown, paymentID string, start time.Time, status model.SubscriptionStatus, previousID *int64, carryOver time.Duration) *model.Subscription {
	end := start.AddDate(0, price.DurationMonths, 0).Add(carryOver)
	return &model.Subscription{
		SchoolID:               schoolID,
		PlanID:                 intent.PlanID,
		OrderID:                intent.OrderID,
		PaymentID:              paymentID,
		EnteredStudents:        intent.EnteredStudents,
		FutureStudents:         intent.FutureStudents,
		BillableStudents:       price.BillableStudents,
		OriginalAmount:         price.OriginalAmount,
		DiscountAmount:         price.DiscountAmount,
		PaidAmount:             price.PaidAmount,
		CouponCode:             intent.CouponCode,
		StartDate:              start,
		EndDate:                end,
		GraceDays:              e.graceDays,
		GraceEndDate:           end.Add(time.Duration(e.graceDays) * 24 * time.Hour),
		Status:                 status,
		PreviousSubscriptionID: previousID,
	}
}

// markUsed consumes the funding intent inside the transaction. A non-paid
// intent here means the created/paid/used invariant broke; that aborts the
// operation and is logged loudly.
func (e *Engine) markUsed(tx *sql.Tx, orderID string) error {
	if err := e.intents.WithTx(tx).MarkUsed(orderID); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			e.logger.Error("payment intent not in paid state during ledger mutation",
				"order_id", orderID, "error", err)
		}
		return err
	}
	return nil
}

// resolveDuplicate maps a uniqueness violation raised during Create. If this
// order already funded a subscription the confirmation is a duplicate
// delivery and succeeds idempotently; otherwise the race loser surfaces
// ErrDuplicatePayment for the caller.
func resolveDuplicate(subs *store.SubscriptionStore, err error, orderID string) (*model.Subscription, error) {
	if !errors.Is(err, store.ErrDuplicatePayment) && !errors.Is(err, store.ErrCurrentExists) {
		return nil, err
	}
	existing, lookupErr := subs.GetByOrderID(orderID)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing != nil {
		return existing, nil
	}
	return nil, fmt.Errorf("order %s: %w", orderID, store.ErrDuplicatePayment)
}
