package catalog

// Plan is an immutable catalog entry. Prices are integer minor currency units
// per student per month; there is no dynamic plan configuration.
type Plan struct {
	ID                   string
	DurationMonths       int
	PricePerStudentMonth int64
}

// Coupon grants a number of free months off the plan total. FullWaiver marks
// the promotional coupon that waives a half-year plan entirely (the pricing
// calculator charges the nominal minimum instead of applying month math).
type Coupon struct {
	Code           string
	DiscountMonths int
	FullWaiver     bool
}

const (
	PlanHalfYear  = "6M"
	PlanOneYear   = "1Y"
	PlanTwoYear   = "2Y"
	PlanThreeYear = "3Y"
)

const (
	CouponFree6M    = "FREE_6M"
	CouponEarlyBird = "EARLYBIRD_3M"
	CouponWelcome   = "WELCOME_1M"
)

var plans = map[string]Plan{
	PlanHalfYear:  {ID: PlanHalfYear, DurationMonths: 6, PricePerStudentMonth: 9},
	PlanOneYear:   {ID: PlanOneYear, DurationMonths: 12, PricePerStudentMonth: 8},
	PlanTwoYear:   {ID: PlanTwoYear, DurationMonths: 24, PricePerStudentMonth: 7},
	PlanThreeYear: {ID: PlanThreeYear, DurationMonths: 36, PricePerStudentMonth: 6},
}

var coupons = map[string]Coupon{
	CouponFree6M:    {Code: CouponFree6M, DiscountMonths: 6, FullWaiver: true},
	CouponEarlyBird: {Code: CouponEarlyBird, DiscountMonths: 3},
	CouponWelcome:   {Code: CouponWelcome, DiscountMonths: 1},
}

// LookupPlan returns the plan for id, or false if the id is not in the catalog.
func LookupPlan(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}

// LookupCoupon returns the coupon for code, or false if unknown.
func LookupCoupon(code string) (Coupon, bool) {
	c, ok := coupons[code]
	return c, ok
}

// PlanIDs lists the catalog plan ids in duration order.
func PlanIDs() []string {
	return []string{PlanHalfYear, PlanOneYear, PlanTwoYear, PlanThreeYear}
}
