package session

import (
	"errors"
	"fmt"
)

// ErrElementNotFound is returned by Page implementations when a located
// element never appeared within the caller's deadline.
var ErrElementNotFound = errors.New("element not found")

// AuthenticationError means no authenticated session could be established.
// It is fatal for the process.
type AuthenticationError struct {
	Step string
	Err  error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed at %s", e.Step)
	}
	return fmt.Sprintf("authentication failed at %s: %v", e.Step, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

type TeamNotFoundError struct {
	Team string
	Err  error
}

func (e *TeamNotFoundError) Error() string {
	return fmt.Sprintf("team %q not found: %v", e.Team, e.Err)
}

func (e *TeamNotFoundError) Unwrap() error { return e.Err }

// MeetingNotFoundError is the error form of a NotFound banner lookup, for
// callers that need one.
type MeetingNotFoundError struct {
	Meeting string
}

func (e *MeetingNotFoundError) Error() string {
	return fmt.Sprintf("scheduled meeting %q not found", e.Meeting)
}

type JoinError struct {
	Meeting string
	Stage   string
	Err     error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join %q failed at %s: %v", e.Meeting, e.Stage, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }

// LeaveError is non-fatal: the meeting may already have ended.
type LeaveError struct {
	Err error
}

func (e *LeaveError) Error() string {
	return fmt.Sprintf("leave control not found: %v", e.Err)
}

func (e *LeaveError) Unwrap() error { return e.Err }
