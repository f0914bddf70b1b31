package session

import "errors"

var (
	// ErrConnect wraps failures reported by the wallet provider
	ErrConnect = errors.New("wallet connection failed")
	// ErrRead wraps failures reading balance or decimals
	ErrRead = errors.New("contract read failed")
	// ErrWrite wraps rejected, reverted or underpriced transactions
	ErrWrite = errors.New("transaction failed")

	ErrNotConnected   = errors.New("wallet not connected")
	ErrBusy           = errors.New("another operation is in progress")
	ErrAmountRequired = errors.New("amount required")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrClosed         = errors.New("session closed")
)
