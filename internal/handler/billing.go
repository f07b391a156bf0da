package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/classledger/classledger/internal/billing"
	"github.com/classledger/classledger/internal/gateway"
	"github.com/classledger/classledger/internal/model"
	"github.com/classledger/classledger/internal/pricing"
	"github.com/classledger/classledger/internal/store"
)

type BillingHandler struct {
	engine        *billing.Engine
	gatewayClient *gateway.Client
	intents       *store.IntentStore
	logger        *slog.Logger
}

func NewBillingHandler(engine *billing.Engine, gc *gateway.Client, intents *store.IntentStore, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		engine:        engine,
		gatewayClient: gc,
		intents:       intents,
		logger:        logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// pricingStatus maps calculator failures to 4xx codes.
func pricingStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, pricing.ErrUnknownPlan):
		return http.StatusUnprocessableEntity, "invalid_plan", true
	case errors.Is(err, pricing.ErrUnknownCoupon):
		return http.StatusUnprocessableEntity, "invalid_coupon", true
	case errors.Is(err, pricing.ErrInvalidStudents):
		return http.StatusBadRequest, "invalid_student_count", true
	case errors.Is(err, pricing.ErrNegativeAmount):
		return http.StatusUnprocessableEntity, "invalid_discount", true
	}
	return 0, "", false
}

// PreviewPrice computes a price breakdown. No side effects.
func (h *BillingHandler) PreviewPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID          string `json:"plan_id"`
		EnteredStudents int    `json:"entered_students"`
		FutureStudents  int    `json:"future_students"`
		CouponCode      string `json:"coupon_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	breakdown, err := pricing.Price(req.PlanID, req.EnteredStudents, req.FutureStudents, req.CouponCode)
	if err != nil {
		if status, code, ok := pricingStatus(err); ok {
			writeError(w, status, code)
			return
		}
		h.logger.Error("price preview", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// CreateIntent prices the request, registers an order with the gateway, and
// records the payment intent. A duplicate order id is an idempotent success.
func (h *BillingHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchoolID        *int64 `json:"school_id"`
		Mode            string `json:"mode"`
		PlanID          string `json:"plan_id"`
		EnteredStudents int    `json:"entered_students"`
		FutureStudents  int    `json:"future_students"`
		CouponCode      string `json:"coupon_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	mode := model.IntentMode(req.Mode)
	if mode != model.ModeRegister && mode != model.ModeUpgrade {
		writeError(w, http.StatusBadRequest, "invalid_mode")
		return
	}
	if mode == model.ModeUpgrade && req.SchoolID == nil {
		writeError(w, http.StatusBadRequest, "school_required")
		return
	}

	breakdown, err := pricing.Price(req.PlanID, req.EnteredStudents, req.FutureStudents, req.CouponCode)
	if err != nil {
		if status, code, ok := pricingStatus(err); ok {
			writeError(w, status, code)
			return
		}
		h.logger.Error("price intent", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	receipt := uuid.NewString()
	orderID, err := h.gatewayClient.CreateOrder(r.Context(), breakdown.PaidAmount, receipt)
	if err != nil {
		h.logger.Error("create gateway order", "error", err)
		writeError(w, http.StatusBadGateway, "gateway_unavailable")
		return
	}

	var couponCode *string
	if req.CouponCode != "" {
		couponCode = &req.CouponCode
	}
	intent, err := h.intents.Create(orderID, mode, req.SchoolID, breakdown.PlanID, req.EnteredStudents, req.FutureStudents, couponCode)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIntent) {
			// The gateway re-issued a known order id; return the ledger row.
			intent, err = h.intents.GetByOrderID(orderID)
			if err != nil || intent == nil {
				writeError(w, http.StatusInternalServerError, "internal")
				return
			}
		} else {
			h.logger.Error("create payment intent", "error", err)
			writeError(w, http.StatusInternalServerError, "internal")
			return
		}
	}

	h.logger.Info("payment intent created",
		"order_id", orderID, "mode", mode, "plan", breakdown.PlanID,
		"amount", breakdown.PaidAmount)
	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id": intent.OrderID,
		"amount":   breakdown.PaidAmount,
		"receipt":  receipt,
		"plan_id":  breakdown.PlanID,
	})
}

// ConfirmPayment verifies the gateway signature and drives the orchestrator.
// Safe under at-least-once delivery from the gateway callback.
func (h *BillingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
		SchoolID  *int64 `json:"school_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if !h.gatewayClient.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		h.logger.Warn("signature verification failed", "order_id", req.OrderID)
		writeError(w, http.StatusBadRequest, "signature_mismatch")
		return
	}

	sub, err := h.engine.Confirm(billing.ConfirmParams{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		SchoolID:  req.SchoolID,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrIntentNotFound):
			writeError(w, http.StatusNotFound, "intent_not_found")
		case errors.Is(err, billing.ErrUnknownSchool):
			writeError(w, http.StatusBadRequest, "school_required")
		case errors.Is(err, billing.ErrNoSubscriptionHistory):
			writeError(w, http.StatusConflict, "no_subscription_history")
		case errors.Is(err, billing.ErrCapacityDecrease):
			writeError(w, http.StatusUnprocessableEntity, "capacity_decrease_rejected")
		case errors.Is(err, store.ErrDuplicatePayment):
			writeError(w, http.StatusConflict, "duplicate_payment")
		default:
			if status, code, ok := pricingStatus(err); ok {
				writeError(w, status, code)
				return
			}
			h.logger.Error("confirm payment", "order_id", req.OrderID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// CurrentEntitlement sweeps, then reports the school's billable ceiling.
func (h *BillingHandler) CurrentEntitlement(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r)
	if !ok {
		return
	}
	ent, err := h.engine.CurrentEntitlement(schoolID)
	if err != nil {
		if errors.Is(err, billing.ErrNoActiveSubscription) {
			writeError(w, http.StatusNotFound, "no_active_subscription")
			return
		}
		h.logger.Error("current entitlement", "school_id", schoolID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// InvoiceHistory lists the school's subscription records, newest first.
func (h *BillingHandler) InvoiceHistory(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r)
	if !ok {
		return
	}
	subs, err := h.engine.InvoiceHistory(schoolID)
	if err != nil {
		h.logger.Error("invoice history", "school_id", schoolID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return 0, false
	}
	return id, true
}
