package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("authentication required")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	ErrForbidden          = errors.New("forbidden")

	ErrNotFound       = errors.New("not found")
	ErrToolNotFound   = fmt.Errorf("tool %w", ErrNotFound)
	ErrReviewNotFound = fmt.Errorf("review %w", ErrNotFound)
	ErrGroupNotFound  = fmt.Errorf("group %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)

	ErrDuplicateVote   = errors.New("you have already voted")
	ErrAlreadyMember   = errors.New("already a member of this group")
	ErrAlreadyVerified = errors.New("email is already verified")

	ErrConflict       = errors.New("conflict")
	ErrUsernameTaken  = fmt.Errorf("%w: username or email already registered", ErrConflict)
	ErrReviewExists   = fmt.Errorf("%w: you have already reviewed this tool", ErrConflict)
	ErrGroupNameTaken = fmt.Errorf("%w: group name already taken", ErrConflict)

	ErrTokenInvalid = errors.New("invalid verification token")
	ErrTokenExpired = errors.New("verification token has expired")
)

// ValidationError carries per-field messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// invalid builds a single-field ValidationError.
func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
