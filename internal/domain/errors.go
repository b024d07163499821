package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")

	// ErrAuthFailed marks an unrecoverable credential rejection. Any stored
	// refresh credential must be invalidated before another attempt.
	ErrAuthFailed = errors.New("authentication rejected")

	// ErrTransport marks a recoverable connection failure, eligible for a
	// delayed reconnect.
	ErrTransport = errors.New("transport failure")

	// ErrNoCredentials means neither a refresh credential nor a password is
	// available; operator action is required.
	ErrNoCredentials = errors.New("no usable credentials")

	// ErrChallengeRequired accompanies WAITING_FOR_CODE transitions. Not a
	// failure: the session is held open until a guard code arrives.
	ErrChallengeRequired = errors.New("guard challenge outstanding")

	ErrTooManyGames = errors.New("too many games in activity set")
)
