package economy

import "errors"

var (
	ErrInvalidSchedule   = errors.New("invalid vesting window")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNothingVested     = errors.New("no funds vested for release")
	ErrInsufficientStake = errors.New("insufficient staked balance")
	ErrUnauthorized      = errors.New("unauthorized")
)
