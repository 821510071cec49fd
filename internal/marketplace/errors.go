package marketplace

import "errors"

var (
	ErrAlreadyInitialized = errors.New("marketplace already initialized")
	ErrInvalidFee         = errors.New("invalid fee")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrAlreadyListed      = errors.New("asset already listed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotActive          = errors.New("listing not active")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)
