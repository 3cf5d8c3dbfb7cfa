package domain

import "errors"

// Event errors
var (
	ErrEventNotFound      = errors.New("event not found")
	ErrNotEventOwner      = errors.New("only the event creator can perform this action")
	ErrNoSchedule         = errors.New("event has no schedule")
	ErrInvalidEventConfig = errors.New("invalid event configuration")
	ErrInvalidRoster      = errors.New("invalid roster")
	ErrDuplicatePlayer    = errors.New("duplicate player name in roster")
	ErrEventLocked        = errors.New("event schedule is locked")
)

// Match errors
var (
	ErrMatchNotFound = errors.New("match not found")
)
