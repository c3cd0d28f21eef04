package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrLockHeld           = errors.New("lock already held")
	ErrNoLiveRound        = errors.New("no live round")
	ErrStakingClosed      = errors.New("staking is closed for this round")
	ErrUnauthorized       = errors.New("unauthorized")
)
