package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup for a record that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied marks a declined platform notification prompt.
	// Terminal: the user must change the platform setting before retrying.
	ErrPermissionDenied = errors.New("notification permission denied")

	// ErrSubscriptionFailure marks a failed key exchange or registry call
	// during Subscribe. The local state is unchanged and the caller may retry.
	ErrSubscriptionFailure = errors.New("push subscription failed")

	// ErrDeliveryFailure marks a notification that could not be displayed
	// after the retry budget was exhausted.
	ErrDeliveryFailure = errors.New("notification delivery failed")

	// ErrFeedUnavailable marks a change feed whose reconnection budget ran out.
	ErrFeedUnavailable = errors.New("change feed unavailable")

	// ErrLedgerWrite marks a failed durable ledger mutation. The affected id
	// is not considered dismissed or read until a later write succeeds.
	ErrLedgerWrite = errors.New("ledger write failed")
)
