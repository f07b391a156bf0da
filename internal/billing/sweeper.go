package billing

import (
	"errors"
	"time"

	"github.com/classledger/classledger/internal/model"
	"github.com/classledger/classledger/internal/store"
)

// Sweep catches the school's ledger up to the current time: active rows past
// their end date drop to grace (or straight to expired if the grace window
// has also passed), grace rows past their grace end expire, and once nothing
// is active or in grace the earliest due queued row is promoted.
//
// There is no background scheduler; every request path that depends on
// subscription status calls this first. The function is idempotent for any
// fixed timestamp and safe under concurrent calls: every status write is
// guarded by the expected previous status, and promotion races are settled
// by the schema's one-current index.
func (e *Engine) Sweep(schoolID int64) error {
	now := e.now()
	for {
		cur, err := e.subs.GetCurrent(schoolID)
		if err != nil {
			return err
		}
		if cur != nil {
			next, due := nextTransition(cur, now)
			if !due {
				return nil
			}
			changed, err := e.subs.UpdateStatus(cur.ID, cur.Status, next)
			if err != nil {
				return err
			}
			if changed {
				e.logger.Info("subscription transition",
					"school_id", schoolID, "subscription_id", cur.ID,
					"from", cur.Status, "to", next)
			}
			// Not changed means a concurrent sweep got there first;
			// either way, re-read and keep going.
			continue
		}

		q, err := e.subs.NextQueued(schoolID, now)
		if err != nil {
			return err
		}
		if q == nil {
			return nil
		}
		promoted, err := e.subs.UpdateStatus(q.ID, model.StatusQueued, model.StatusActive)
		if err != nil {
			if errors.Is(err, store.ErrCurrentExists) {
				// A concurrent sweep promoted something; re-evaluate.
				continue
			}
			return err
		}
		if promoted {
			if err := e.schools.SetCurrentSubscription(schoolID, q.ID); err != nil {
				return err
			}
			e.logger.Info("queued subscription promoted",
				"school_id", schoolID, "subscription_id", q.ID)
		}
		// The promoted row may itself be overdue (a long-lapsed school with
		// stacked renewals); loop until the ledger is stable.
	}
}

// nextTransition returns the status a current (active or grace) row is due
// for at the given time, if any.
func nextTransition(sub *model.Subscription, now time.Time) (model.SubscriptionStatus, bool) {
	switch sub.Status {
	case model.StatusActive:
		if !now.Before(sub.GraceEndDate) {
			return model.StatusExpired, true
		}
		if !now.Before(sub.EndDate) {
			return model.StatusGrace, true
		}
	case model.StatusGrace:
		if !now.Before(sub.GraceEndDate) {
			return model.StatusExpired, true
		}
	}
	return sub.Status, false
}
