package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Purchase error taxonomy. The first four are validation errors: they are
// returned before any state mutation and the caller may retry with corrected
// input. ErrTransferFailed is fatal to the purchase that raised it; all
// in-flight mutation is rolled back.
var (
	ErrGameNotActive       = errors.New("game cycle is not active")
	ErrOutOfBounds         = errors.New("coordinates out of bounds")
	ErrInsufficientPayment = errors.New("payment below current cell price")
	ErrAlreadyOwner        = errors.New("cell already owned by buyer")
	ErrTransferFailed      = errors.New("payment transfer failed")
)
