package billing

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/classledger/classledger/internal/model"
	"github.com/classledger/classledger/internal/store"
)

// DefaultGraceDays is the fixed window after plan expiry during which access
// is retained while renewal is pending.
const DefaultGraceDays = 7

// Engine is the subscription and billing core: pricing recomputation,
// payment-intent bookkeeping, the subscription ledger state machine, and the
// lazy lifecycle sweeper. All multi-row mutations run inside a single SQL
// transaction.
type Engine struct {
	db        *sql.DB
	schools   *store.SchoolStore
	intents   *store.IntentStore
	subs      *store.SubscriptionStore
	graceDays int
	now       func() time.Time
	logger    *slog.Logger
}

func NewEngine(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{
		db:        db,
		schools:   store.NewSchoolStore(db),
		intents:   store.NewIntentStore(db),
		subs:      store.NewSubscriptionStore(db),
		graceDays: DefaultGraceDays,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Entitlement is the answer to "how many students may this school hold".
type Entitlement struct {
	SubscriptionID   int64                    `json:"subscription_id"`
	PlanID           string                   `json:"plan_id"`
	BillableStudents int                      `json:"billable_students"`
	Status           model.SubscriptionStatus `json:"status"`
	EndDate          time.Time                `json:"end_date"`
	GraceEndDate     time.Time                `json:"grace_end_date"`
}

// CurrentEntitlement sweeps the school's ledger up to now, then reports the
// active-or-grace subscription. No such record is a hard failure, not a zero
// ceiling.
func (e *Engine) CurrentEntitlement(schoolID int64) (*Entitlement, error) {
	if err := e.Sweep(schoolID); err != nil {
		return nil, err
	}
	cur, err := e.subs.GetCurrent(schoolID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNoActiveSubscription
	}
	return &Entitlement{
		SubscriptionID:   cur.ID,
		PlanID:           cur.PlanID,
		BillableStudents: cur.BillableStudents,
		Status:           cur.Status,
		EndDate:          cur.EndDate,
		GraceEndDate:     cur.GraceEndDate,
	}, nil
}

// InvoiceHistory returns the school's subscription records, newest period
// first. Read-only; deliberately does not sweep.
func (e *Engine) InvoiceHistory(schoolID int64) ([]model.Subscription, error) {
	return e.subs.ListBySchool(schoolID)
}

// EnrollStudent adds a roster member, gated by the billable-student ceiling
// of the current entitlement. Count and insert share one transaction so
// concurrent enrollments cannot both squeeze past the ceiling.
func (e *Engine) EnrollStudent(schoolID int64, name string) (*model.Student, error) {
	ent, err := e.CurrentEntitlement(schoolID)
	if err != nil {
		return nil, err
	}

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin enrollment: %w", err)
	}
	defer tx.Rollback()

	schools := e.schools.WithTx(tx)
	count, err := schools.CountActiveStudents(schoolID)
	if err != nil {
		return nil, err
	}
	if count+1 > ent.BillableStudents {
		return nil, ErrCapacityExceeded
	}
	student, err := schools.AddStudent(schoolID, name)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return student, nil
}
