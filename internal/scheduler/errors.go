package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrNotEnoughPlayers  = errors.New("not enough players for a match")
	ErrDuplicatePlayer   = errors.New("duplicate player id in roster")
	ErrMatchNotFound     = errors.New("match not found")
	ErrRoundNotFound     = errors.New("round not found")
	ErrPlayerNotInRound  = errors.New("player is not part of the round")
	ErrInvalidSwap       = errors.New("invalid swap")
	ErrConstraintViolate = errors.New("edit violates partner or opponent limits")
	ErrNoReplacement     = errors.New("no valid replacement match")
	ErrApprovedInTail    = errors.New("approved matches exist after the edited round")
	ErrMatchNotEditable  = errors.New("match is not editable")
	ErrInvalidStyle      = errors.New("invalid round style")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// EditError is returned by edit operations that were refused. Err is one of
// the sentinel errors above so callers can use errors.Is.
type EditError struct {
	Op     string
	Reason string
	Err    error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *EditError) Unwrap() error {
	return e.Err
}

func editErr(op string, err error, format string, args ...any) error {
	return &EditError{Op: op, Reason: fmt.Sprintf(format, args...), Err: err}
}
