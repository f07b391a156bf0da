package model

import "time"

// IntentMode says what a payment intent is buying: a first subscription for a
// brand-new school, or an upgrade/renewal for an existing one.
type IntentMode string

const (
	ModeRegister IntentMode = "register"
	ModeUpgrade  IntentMode = "upgrade"
)

// IntentStatus is monotonic: created -> paid -> used. It never regresses.
type IntentStatus string

const (
	IntentCreated IntentStatus = "created"
	IntentPaid    IntentStatus = "paid"
	IntentUsed    IntentStatus = "used"
)

type SubscriptionStatus string

const (
	StatusActive  SubscriptionStatus = "active"
	StatusGrace   SubscriptionStatus = "grace"
	StatusQueued  SubscriptionStatus = "queued"
	StatusExpired SubscriptionStatus = "expired"
)

// PaymentIntent records one external payment attempt, keyed by the gateway
// order id. Intents are never deleted; they are the audit trail linking a
// gateway payment to the subscription it funded.
type PaymentIntent struct {
	ID              int64        `json:"id"`
	OrderID         string       `json:"order_id"`
	PaymentID       *string      `json:"payment_id"`
	SchoolID        *int64       `json:"school_id"`
	Mode            IntentMode   `json:"mode"`
	PlanID          string       `json:"plan_id"`
	EnteredStudents int          `json:"entered_students"`
	FutureStudents  int          `json:"future_students"`
	CouponCode      *string      `json:"coupon_code"`
	Status          IntentStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Subscription is one granted entitlement period. Rows are append-only: the
// sweeper and orchestrator flip Status, nothing else is ever rewritten, and
// expired rows accumulate as history. PreviousSubscriptionID chains renewals.
type Subscription struct {
	ID                     int64              `json:"id"`
	SchoolID               int64              `json:"school_id"`
	PlanID                 string             `json:"plan_id"`
	OrderID                string             `json:"order_id"`
	PaymentID              string             `json:"payment_id"`
	EnteredStudents        int                `json:"entered_students"`
	FutureStudents         int                `json:"future_students"`
	BillableStudents       int                `json:"billable_students"`
	OriginalAmount         int64              `json:"original_amount"`
	DiscountAmount         int64              `json:"discount_amount"`
	PaidAmount             int64              `json:"paid_amount"`
	CouponCode             *string            `json:"coupon_code"`
	StartDate              time.Time          `json:"start_date"`
	EndDate                time.Time          `json:"end_date"`
	GraceDays              int                `json:"grace_days"`
	GraceEndDate           time.Time          `json:"grace_end_date"`
	Status                 SubscriptionStatus `json:"status"`
	PreviousSubscriptionID *int64             `json:"previous_subscription_id"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// School is the tenant record. CurrentSubscriptionID is the entitlement
// pointer: the subscription currently authoritative for capacity checks.
type School struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	CurrentSubscriptionID *int64    `json:"current_subscription_id"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type Student struct {
	ID        int64     `json:"id"`
	SchoolID  int64     `json:"school_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
