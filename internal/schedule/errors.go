package schedule

import (
	"errors"
	"fmt"
)

// Kind classifies why the engine rejected an operation. Every rejected
// mutation carries one, so the handler layer can answer with the right
// status and the conflicting resource.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindCapacity     Kind = "capacity"
	KindNotFound     Kind = "not_found"
	KindPrecondition Kind = "precondition"
)

// Error is the engine's typed failure. Resource names the entity that
// caused the rejection (e.g. the match already bound to a slot), when
// there is one.
type Error struct {
	Kind     Kind
	Resource string
	Message  string
}

func (e *Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Resource)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a typed engine error.
func Errorf(kind Kind, resource, format string, args ...any) *Error {
	return &Error{Kind: kind, Resource: resource, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or "" if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
