package billing

import "errors"

var (
	// ErrIntentNotFound: a confirmation referenced an order id with no
	// recorded payment intent.
	ErrIntentNotFound = errors.New("payment intent not found")

	// ErrUnknownSchool: the intent carries no school and the confirmation
	// did not supply one.
	ErrUnknownSchool = errors.New("confirmation does not resolve to a school")

	// ErrNoSubscriptionHistory: an upgrade was attempted for a school that
	// never held a subscription. Registration must go through initial
	// activation instead.
	ErrNoSubscriptionHistory = errors.New("no subscription history to upgrade from")

	// ErrCapacityDecrease: the requested billable-student count is below the
	// school's committed usage. Client-fixable by entering a higher count.
	ErrCapacityDecrease = errors.New("billable students below committed capacity")

	// ErrCapacityExceeded: a roster addition would push the school past its
	// billable-student ceiling.
	ErrCapacityExceeded = errors.New("roster at billable student capacity")

	// ErrNoActiveSubscription: the school has no subscription in active or
	// grace. Capacity reads hard-fail on this, they do not report zero.
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrSignatureMismatch: the gateway signature did not verify.
	ErrSignatureMismatch = errors.New("payment signature verification failed")
)
