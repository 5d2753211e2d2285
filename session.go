package authxero

import (
	goerrors "github.com/goliatone/go-errors"
)

// SessionStatus is the lifecycle state of the client session.
type SessionStatus string

const (
	// StatusInitializing is the state before the startup verification ran.
	StatusInitializing SessionStatus = "initializing"
	// StatusUnauthenticated means no usable credentials are held.
	StatusUnauthenticated SessionStatus = "unauthenticated"
	// StatusAuthenticated means the session was verified and email is confirmed.
	StatusAuthenticated SessionStatus = "authenticated"
	// StatusUnverified means credentials exist but the email is pending confirmation.
	StatusUnverified SessionStatus = "unverified"
	// StatusTerminating is the transient state while a logout is in flight.
	StatusTerminating SessionStatus = "terminating"
)

const textCodeInvalidSessionTransition = "INVALID_SESSION_TRANSITION"

// ErrInvalidSessionTransition is returned when a requested status change is not allowed.
var ErrInvalidSessionTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidSessionTransition).
	WithCode(goerrors.CodeBadRequest)

// sessionTransitions is the allowed transition graph. Forced termination
// bypasses it explicitly, never by accident.
var sessionTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	StatusInitializing: {
		StatusUnauthenticated: {},
		StatusAuthenticated:   {},
		StatusUnverified:      {},
	},
	StatusUnauthenticated: {
		StatusAuthenticated: {},
		StatusUnverified:    {},
	},
	StatusAuthenticated: {
		StatusTerminating:     {},
		StatusUnauthenticated: {},
	},
	StatusUnverified: {
		StatusAuthenticated:   {},
		StatusTerminating:     {},
		StatusUnauthenticated: {},
	},
	StatusTerminating: {
		StatusUnauthenticated: {},
	},
}

func canTransitionSession(from, to SessionStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := sessionTransitions[from]
	if !ok {
		return false
	}
	_, exists := allowed[to]
	return exists
}

// SessionSnapshot is the read-only view of the session handed to callers.
// User is nil unless the status is Authenticated or Unverified.
type SessionSnapshot struct {
	User      *User
	Status    SessionStatus
	LastError error
}

// IsAuthenticated reports whether the snapshot holds a verified session.
func (s SessionSnapshot) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// RequiresVerification reports whether the user must confirm their email.
func (s SessionSnapshot) RequiresVerification() bool {
	return s.Status == StatusUnverified
}
