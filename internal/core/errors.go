package core

import (
	"errors"
	"fmt"
)

// Kind is the closed set of outcomes a core operation can fail with.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindActiveTimerExists
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindActiveTimerExists:
		return "active_timer_exists"
	default:
		return "internal"
	}
}

// Entity names the record an error is about.
type Entity string

const (
	EntityProject   Entity = "project"
	EntityTimeEntry Entity = "time_entry"
	EntityTaskName  Entity = "task_name"
)

// Error carries a kind and a caller-facing message. Err holds the underlying
// cause for internal failures and is never shown to clients.
type Error struct {
	Kind    Kind
	Entity  Entity
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) works
// for every entity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Entity != "" {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrActiveTimerExists = &Error{Kind: KindActiveTimerExists}
	ErrInternal          = &Error{Kind: KindInternal}
)

func NotFound(entity Entity, id string) *Error {
	var label string
	switch entity {
	case EntityProject:
		label = "Project"
	case EntityTaskName:
		label = "Task"
	default:
		label = "Time entry"
	}
	return &Error{Kind: KindNotFound, Entity: entity, Message: fmt.Sprintf("%s not found: %s", label, id)}
}

func Validation(entity Entity, msg string) *Error {
	return &Error{Kind: KindValidation, Entity: entity, Message: msg}
}

func ActiveTimerExists(activeID string) *Error {
	return &Error{
		Kind:    KindActiveTimerExists,
		Entity:  EntityTimeEntry,
		Message: fmt.Sprintf("A timer is already running (entry %s). Stop it before starting a new one.", activeID),
	}
}

func Internal(entity Entity, err error) *Error {
	return &Error{Kind: KindInternal, Entity: entity, Message: "internal error", Err: err}
}

// KindOf classifies any error; anything that is not a *Error is internal.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// EntityOf returns the entity of a *Error in the chain, or "".
func EntityOf(err error) Entity {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Entity
	}
	return ""
}
