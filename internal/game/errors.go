package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected action.
type ErrorKind string

const (
	KindRoomNotFound       ErrorKind = "RoomNotFound"
	KindRoomFull           ErrorKind = "RoomFull"
	KindRoomAlreadyStarted ErrorKind = "RoomAlreadyStarted"
	KindPlayerNotInRoom    ErrorKind = "PlayerNotInRoom"
	KindNotYourTurn        ErrorKind = "NotYourTurn"
	KindWrongPhase         ErrorKind = "WrongPhase"
	KindInvalidAction      ErrorKind = "InvalidAction"
	KindInsufficientEnergy ErrorKind = "InsufficientEnergy"
)

// Error is a recoverable rejection. The room state is unchanged when one is
// returned.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotYourTurn)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrRoomNotFound       = &Error{Kind: KindRoomNotFound}
	ErrRoomFull           = &Error{Kind: KindRoomFull}
	ErrRoomAlreadyStarted = &Error{Kind: KindRoomAlreadyStarted}
	ErrPlayerNotInRoom    = &Error{Kind: KindPlayerNotInRoom}
	ErrNotYourTurn        = &Error{Kind: KindNotYourTurn}
	ErrWrongPhase         = &Error{Kind: KindWrongPhase}
	ErrInvalidAction      = &Error{Kind: KindInvalidAction}
	ErrInsufficientEnergy = &Error{Kind: KindInsufficientEnergy}
)

// NewError builds an *Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or InvalidAction for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInvalidAction
}
