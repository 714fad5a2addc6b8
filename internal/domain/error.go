package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")

	// Webhook boundary
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// Delivery
	ErrNoContentAvailable = errors.New("no content available")
	ErrTransportFailure   = errors.New("chat transport failure")
	ErrLockNotAcquired    = errors.New("lock is held by another worker")

	// Background work
	ErrQueueFull = errors.New("worker queue full")
)
