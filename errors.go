package triage

import "errors"

var (
	// Queue errors.
	ErrCapacityExceeded  = errors.New("triage: queue capacity exceeded")
	ErrInvalidTransition = errors.New("triage: item is not in processing state")

	// Traffic errors.
	ErrPredictionUnavailable = errors.New("triage: not enough samples for surge prediction")

	// Configuration errors. Wrapped with detail at construction sites.
	ErrInvalidConfig = errors.New("triage: invalid configuration")

	// Dead letter errors.
	ErrEntryNotFound   = errors.New("triage: dead letter entry not found")
	ErrAlreadyReplayed = errors.New("triage: dead letter entry already replayed")
)
