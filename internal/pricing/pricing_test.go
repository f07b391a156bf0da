package pricing

import (
	"errors"
	"testing"

	"github.com/classledger/classledger/internal/catalog"
)

func TestPriceOneYearNoCoupon(t *testing.T) {
	b, err := Price(catalog.PlanOneYear, 100, 20, "")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.BillableStudents != 120 {
		t.Errorf("billable = %d, want 120", b.BillableStudents)
	}
	if b.MonthlyCost != 960 {
		t.Errorf("monthly = %d, want 960", b.MonthlyCost)
	}
	if b.OriginalAmount != 11520 {
		t.Errorf("original = %d, want 11520", b.OriginalAmount)
	}
	if b.DiscountAmount != 0 {
		t.Errorf("discount = %d, want 0", b.DiscountAmount)
	}
	if b.PaidAmount != 11520 {
		t.Errorf("paid = %d, want 11520", b.PaidAmount)
	}
}

func TestPriceOneYearWithThreeMonthCoupon(t *testing.T) {
	b, err := Price(catalog.PlanOneYear, 50, 0, catalog.CouponEarlyBird)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.MonthlyCost != 400 {
		t.Errorf("monthly = %d, want 400", b.MonthlyCost)
	}
	if b.OriginalAmount != 4800 {
		t.Errorf("original = %d, want 4800", b.OriginalAmount)
	}
	if b.DiscountAmount != 1200 {
		t.Errorf("discount = %d, want 1200", b.DiscountAmount)
	}
	if b.PaidAmount != 3600 {
		t.Errorf("paid = %d, want 3600", b.PaidAmount)
	}
}

func TestPriceFullWaiverCarveOut(t *testing.T) {
	b, err := Price(catalog.PlanHalfYear, 50, 0, catalog.CouponFree6M)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.PaidAmount != NominalAmount {
		t.Errorf("paid = %d, want %d", b.PaidAmount, NominalAmount)
	}
	if b.DiscountAmount != 0 {
		t.Errorf("discount = %d, want 0 on the waiver path", b.DiscountAmount)
	}
}

func TestPriceFullWaiverOnOtherPlanUsesMonthMath(t *testing.T) {
	// The carve-out is specific to the half-year plan; elsewhere the waiver
	// coupon behaves as an ordinary six-month discount.
	b, err := Price(catalog.PlanOneYear, 10, 0, catalog.CouponFree6M)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if b.DiscountAmount != b.MonthlyCost*6 {
		t.Errorf("discount = %d, want %d", b.DiscountAmount, b.MonthlyCost*6)
	}
	if b.PaidAmount != b.OriginalAmount-b.DiscountAmount {
		t.Errorf("paid = %d, want %d", b.PaidAmount, b.OriginalAmount-b.DiscountAmount)
	}
}

func TestPriceInvariants(t *testing.T) {
	for _, planID := range catalog.PlanIDs() {
		for _, coupon := range []string{"", catalog.CouponWelcome, catalog.CouponEarlyBird} {
			b, err := Price(planID, 25, 5, coupon)
			if err != nil {
				t.Fatalf("price %s/%q: %v", planID, coupon, err)
			}
			if b.BillableStudents != 30 {
				t.Errorf("%s/%q: billable = %d, want 30", planID, coupon, b.BillableStudents)
			}
			if b.PaidAmount != b.OriginalAmount-b.DiscountAmount {
				t.Errorf("%s/%q: paid %d != original %d - discount %d",
					planID, coupon, b.PaidAmount, b.OriginalAmount, b.DiscountAmount)
			}
			if b.PaidAmount < 0 {
				t.Errorf("%s/%q: negative paid amount %d", planID, coupon, b.PaidAmount)
			}
		}
	}
}

func TestPriceUnknownPlan(t *testing.T) {
	_, err := Price("5Y", 10, 0, "")
	if !errors.Is(err, ErrUnknownPlan) {
		t.Errorf("err = %v, want ErrUnknownPlan", err)
	}
}

func TestPriceUnknownCoupon(t *testing.T) {
	_, err := Price(catalog.PlanOneYear, 10, 0, "BOGUS")
	if !errors.Is(err, ErrUnknownCoupon) {
		t.Errorf("err = %v, want ErrUnknownCoupon", err)
	}
}

func TestPriceInvalidStudents(t *testing.T) {
	if _, err := Price(catalog.PlanOneYear, 0, 0, ""); !errors.Is(err, ErrInvalidStudents) {
		t.Errorf("entered=0: err = %v, want ErrInvalidStudents", err)
	}
	if _, err := Price(catalog.PlanOneYear, -3, 0, ""); !errors.Is(err, ErrInvalidStudents) {
		t.Errorf("entered=-3: err = %v, want ErrInvalidStudents", err)
	}
	if _, err := Price(catalog.PlanOneYear, 10, -1, ""); !errors.Is(err, ErrInvalidStudents) {
		t.Errorf("future=-1: err = %v, want ErrInvalidStudents", err)
	}
}
