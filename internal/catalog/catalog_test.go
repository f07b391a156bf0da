package catalog

import "testing"

func TestLookupPlan(t *testing.T) {
	p, ok := LookupPlan(PlanOneYear)
	if !ok {
		t.Fatal("expected 1Y plan in catalog")
	}
	if p.DurationMonths != 12 {
		t.Errorf("duration = %d, want 12", p.DurationMonths)
	}
	if p.PricePerStudentMonth != 8 {
		t.Errorf("price = %d, want 8", p.PricePerStudentMonth)
	}

	if _, ok := LookupPlan("monthly"); ok {
		t.Error("unexpected plan for unknown id")
	}
}

func TestLookupCoupon(t *testing.T) {
	c, ok := LookupCoupon(CouponFree6M)
	if !ok {
		t.Fatal("expected waiver coupon in catalog")
	}
	if !c.FullWaiver {
		t.Error("FREE_6M should be marked full waiver")
	}

	c, ok = LookupCoupon(CouponEarlyBird)
	if !ok || c.DiscountMonths != 3 {
		t.Errorf("EARLYBIRD_3M = %+v, %v; want 3 discount months", c, ok)
	}

	if _, ok := LookupCoupon("NOPE"); ok {
		t.Error("unexpected coupon for unknown code")
	}
}

func TestPlanIDsAllResolve(t *testing.T) {
	for _, id := range PlanIDs() {
		if _, ok := LookupPlan(id); !ok {
			t.Errorf("PlanIDs entry %q not in catalog", id)
		}
	}
}
