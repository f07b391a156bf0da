package pricing

import (
	"errors"
	"fmt"

	"github.com/classledger/classledger/internal/catalog"
)

var (
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrUnknownCoupon   = errors.New("unknown coupon")
	ErrInvalidStudents = errors.New("invalid student count")
	ErrNegativeAmount  = errors.New("discount exceeds plan price")
)

// NominalAmount is the smallest payable amount, charged when a full-waiver
// coupon covers the whole plan. Payment gateways reject zero-amount orders.
const NominalAmount int64 = 1

// Breakdown is the authoritative price for a plan purchase. All amounts are
// integer minor currency units.
type Breakdown struct {
	PlanID           string `json:"plan_id"`
	DurationMonths   int    `json:"duration_months"`
	BillableStudents int    `json:"billable_students"`
	MonthlyCost      int64  `json:"monthly_cost"`
	OriginalAmount   int64  `json:"original_amount"`
	DiscountMonths   int    `json:"discount_months"`
	DiscountAmount   int64  `json:"discount_amount"`
	PaidAmount       int64  `json:"paid_amount"`
}

// Price computes the charge for a plan purchase. Pure: the same inputs always
// produce the same breakdown, and client-submitted amounts are never trusted —
// every activation recomputes through here.
func Price(planID string, enteredStudents, futureStudents int, couponCode string) (*Breakdown, error) {
	plan, ok := catalog.LookupPlan(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}
	if enteredStudents <= 0 {
		return nil, fmt.Errorf("%w: entered students must be positive", ErrInvalidStudents)
	}
	if futureStudents < 0 {
		return nil, fmt.Errorf("%w: future students must not be negative", ErrInvalidStudents)
	}

	billable := enteredStudents + futureStudents
	monthly := int64(billable) * plan.PricePerStudentMonth
	original := monthly * int64(plan.DurationMonths)

	b := &Breakdown{
		PlanID:           plan.ID,
		DurationMonths:   plan.DurationMonths,
		BillableStudents: billable,
		MonthlyCost:      monthly,
		OriginalAmount:   original,
		PaidAmount:       original,
	}
	if couponCode == "" {
		return b, nil
	}

	coupon, ok := catalog.LookupCoupon(couponCode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCoupon, couponCode)
	}

	// Policy carve-out: the full-waiver coupon on the half-year plan bypasses
	// month math entirely and charges the nominal minimum. Not a discount in
	// the ledger's eyes, so DiscountAmount stays zero.
	if coupon.FullWaiver && plan.ID == catalog.PlanHalfYear {
		b.DiscountMonths = coupon.DiscountMonths
		b.DiscountAmount = 0
		b.PaidAmount = NominalAmount
		return b, nil
	}

	discount := monthly * int64(coupon.DiscountMonths)
	if discount > original {
		return nil, fmt.Errorf("%w: coupon %s on plan %s", ErrNegativeAmount, coupon.Code, plan.ID)
	}
	b.DiscountMonths = coupon.DiscountMonths
	b.DiscountAmount = discount
	b.PaidAmount = original - discount
	return b, nil
}
