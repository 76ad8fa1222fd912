package services

import (
	"errors"
	"fmt"
)

// Domain outcomes. Handlers translate these to HTTP statuses with errors.Is;
// nothing below the handler layer ever writes a response or swallows a
// mutation failure.
var (
	ErrNotFound           = errors.New("not found")
	ErrSelfFollow         = errors.New("cannot follow yourself")
	ErrAlreadyFollowing   = errors.New("already following")
	ErrNotFollowing       = errors.New("not following")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already exists")
	ErrValidation         = errors.New("invalid input")
	ErrBlocked            = errors.New("content blocked")
)

// ValidationError rejects malformed input before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BlockedError rejects content that hit the moderation denylist. It is a
// client-visible, user-correctable outcome, not a retryable fault.
type BlockedError struct {
	Rule string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("content blocked by moderation rule %q", e.Rule)
}

func (e *BlockedError) Unwrap() error {
	return ErrBlocked
}
