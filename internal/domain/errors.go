package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyToken is returned when a package transfer presents a blank token.
	ErrEmptyToken = errors.New("transfer token is empty")
	// ErrInvalidToken is returned when a transfer token does not match the current one.
	ErrInvalidToken = errors.New("transfer token is invalid")
	// ErrEmptyAnswer is returned when a team submits blank answer text.
	ErrEmptyAnswer = errors.New("answer text is empty")
	// ErrEmptyTeamName rejects registration with a blank team name.
	ErrEmptyTeamName = errors.New("team name is empty")
	// ErrRegistrationClosed rejects new-team registration outside Published/Live.
	ErrRegistrationClosed = errors.New("registration is closed")
	// ErrRenameClosed rejects a name change once the quiz has left Published.
	ErrRenameClosed = errors.New("team name can no longer be changed")
	// ErrTeamNameTaken rejects a name already used by another team in the quiz.
	ErrTeamNameTaken = errors.New("team name is already taken")
	// ErrSessionNotActive signals a stale client session; the connection must
	// be terminated and the client sent through the reactivate flow.
	ErrSessionNotActive = errors.New("session is not active")
)

// AlreadyAnsweredError is the write-once violation for a question key.
// It carries the first submission's text so callers can display it.
type AlreadyAnsweredError struct {
	PriorText string
}

func (e AlreadyAnsweredError) Error() string {
	return fmt.Sprintf("question already answered: %q", e.PriorText)
}
