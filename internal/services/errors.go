package services

import (
	"database/sql"
	"errors"
	"fmt"

	"tradepost/internal/lifecycle"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("invalid input")
	ErrConflict          = errors.New("changed by someone else, reload and retry")
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	ErrBidTooLow         = errors.New("bid too low")
	ErrAuctionClosed     = errors.New("auction closed")
	ErrBadCreds          = errors.New("invalid email or password")
	ErrEmailTaken        = errors.New("email already registered")
	ErrUnauthorized      = errors.New("unauthorized")
)

// notFound maps sql.ErrNoRows to ErrNotFound for the named entity.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErr(what string) error { return fmt.Errorf("%s: %w", what, ErrNotFound) }
