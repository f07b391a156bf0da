package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/classledger/classledger/internal/billing"
	"github.com/classledger/classledger/internal/gateway"
	"github.com/classledger/classledger/internal/handler"
	"github.com/classledger/classledger/internal/middleware"
	"github.com/classledger/classledger/internal/store"
)

type Config struct {
	Gateway      gateway.Config
	AdminKeyHash string
}

type Server struct {
	db          *sql.DB
	engine      *billing.Engine
	billingH    *handler.BillingHandler
	schoolH     *handler.SchoolHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
	cfg         Config
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	engine := billing.NewEngine(db, logger.With("component", "billing"))
	schoolStore := store.NewSchoolStore(db)
	intentStore := store.NewIntentStore(db)
	gatewayClient := gateway.NewClient(cfg.Gateway)

	billingH := handler.NewBillingHandler(engine, gatewayClient, intentStore, logger.With("component", "billing_api"))
	schoolH := handler.NewSchoolHandler(schoolStore, engine, logger.With("component", "school_api"))

	return &Server{
		db:          db,
		engine:      engine,
		billingH:    billingH,
		schoolH:     schoolH,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
		cfg:         cfg,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Billing (public, rate-limited where unauthenticated writes happen)
	mux.HandleFunc("POST /api/billing/preview", s.rateLimited(s.billingH.PreviewPrice))
	mux.HandleFunc("POST /api/billing/intents", s.rateLimited(s.billingH.CreateIntent))
	mux.HandleFunc("POST /api/billing/confirm", s.rateLimited(s.billingH.ConfirmPayment))

	// Entitlement reads
	mux.HandleFunc("GET /api/schools/{id}/entitlement", s.billingH.CurrentEntitlement)
	mux.HandleFunc("GET /api/schools/{id}/invoices", s.billingH.InvoiceHistory)

	// Roster stand-in, capacity-gated
	mux.HandleFunc("POST /api/schools/{id}/students", s.schoolH.EnrollStudent)

	// Tenant provisioning (admin)
	adminMw := middleware.RequireAdminKey(s.cfg.AdminKeyHash)
	mux.Handle("POST /api/schools", adminMw(http.HandlerFunc(s.schoolH.Create)))
	mux.Handle("GET /api/schools/{id}", adminMw(http.HandlerFunc(s.schoolH.Get)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 20, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
