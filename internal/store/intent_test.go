package store

import (
	"errors"
	"testing"

	"github.com/classledger/classledger/internal/database"
	"github.com/classledger/classledger/internal/model"
)

func setupIntentTestDB(t *testing.T) *IntentStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewIntentStore(db)
}

func TestIntentCreate(t *testing.T) {
	is := setupIntentTestDB(t)

	in, err := is.Create("order_1", model.ModeRegister, nil, "1Y", 100, 20, nil)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if in.OrderID != "order_1" {
		t.Errorf("order_id = %q, want order_1", in.OrderID)
	}
	if in.Status != model.IntentCreated {
		t.Errorf("status = %q, want created", in.Status)
	}
	if in.SchoolID != nil {
		t.Errorf("school_id = %v, want nil for register intent", *in.SchoolID)
	}
	if in.PaymentID != nil {
		t.Errorf("payment_id = %v, want nil before payment", *in.PaymentID)
	}
}

func TestIntentCreateDuplicateOrder(t *testing.T) {
	is := setupIntentTestDB(t)

	if _, err := is.Create("order_1", model.ModeRegister, nil, "1Y", 10, 0, nil); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	_, err := is.Create("order_1", model.ModeRegister, nil, "1Y", 10, 0, nil)
	if !errors.Is(err, ErrDuplicateIntent) {
		t.Errorf("err = %v, want ErrDuplicateIntent", err)
	}
}

func TestIntentMarkPaid(t *testing.T) {
	is := setupIntentTestDB(t)

	if _, err := is.Create("order_1", model.ModeRegister, nil, "1Y", 10, 0, nil); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if err := is.MarkPaid("order_1", "pay_1"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	in, err := is.GetByOrderID("order_1")
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if in.Status != model.IntentPaid {
		t.Errorf("status = %q, want paid", in.Status)
	}
	if in.PaymentID == nil || *in.PaymentID != "pay_1" {
		t.Errorf("payment_id = %v, want pay_1", in.PaymentID)
	}
}

func TestIntentMarkPaidIdempotent(t *testing.T) {
	is := setupIntentTestDB(t)

	if _, err := is.Create("order_1", model.ModeRegister, nil, "1Y", 10, 0, nil); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if err := is.MarkPaid("order_1", "pay_1"); err != nil {
		t.Fatalf("first mark paid: %v", err)
	}
	// Duplicate callback with a different payment id: no-op, original wins.
	if err := is.MarkPaid("order_1", "pay_2"); err != nil {
		t.Fatalf("second mark paid: %v", err)
	}

	in, _ := is.GetByOrderID("order_1")
	if *in.PaymentID != "pay_1" {
		t.Errorf("payment_id = %q, want pay_1 preserved", *in.PaymentID)
	}
	if in.Status != model.IntentPaid {
		t.Errorf("status = %q, want paid", in.Status)
	}
}

func TestIntentMarkPaidUnknownOrder(t *testing.T) {
	is := setupIntentTestDB(t)
	if err := is.MarkPaid("missing", "pay_1"); err == nil {
		t.Error("expected error for unknown order")
	}
}

func TestIntentMarkUsed(t *testing.T) {
	is := setupIntentTestDB(t)

	if _, err := is.Create("order_1", model.ModeRegister, nil, "1Y", 10, 0, nil); err != nil {
		t.Fatalf("create intent: %v", err)
	}

	// used before paid violates the created -> paid -> used order
	if err := is.MarkUsed("order_1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}

	if err := is.MarkPaid("order_1", "pay_1"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := is.MarkUsed("order_1"); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	in, _ := is.GetByOrderID("order_1")
	if in.Status != model.IntentUsed {
		t.Errorf("status = %q, want used", in.Status)
	}

	// a second consume must fail: one payment funds at most one subscription
	if err := is.MarkUsed("order_1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second mark used: err = %v, want ErrInvalidTransition", err)
	}
}

func TestIntentGetByOrderIDNotFound(t *testing.T) {
	is := setupIntentTestDB(t)
	in, err := is.GetByOrderID("missing")
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if in != nil {
		t.Error("expected nil for unknown order")
	}
}
