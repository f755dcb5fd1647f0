// Package lockerr classifies the lock manager's errors by what a caller
// can do about them, rather than by subsystem.
//
// The package distinguishes three kinds of outcome that get conflated
// under a single "error" concept in many libraries; only the first two
// have a Category value:
//
//   - Programmer: the caller violated an invariant (double-unlock,
//     unlocking a resource it never held, a malformed mode). These are
//     unrecoverable — Fatal panics rather than returning an error, the
//     same way a broken invariant aborts the owning process elsewhere in
//     this kind of system.
//   - Resource: an operation could not complete for an environmental
//     reason (allocation failure) with state left unchanged. These are
//     ordinary errors a caller can retry or surface.
//   - Contention: WAITING, CANCELLED and a detected cycle are not
//     errors at all; they're reported as lock.Status values, not through
//     this package.
package lockerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category classifies a LockError by what the caller can do about it.
type Category int

const (
	// CategoryProgrammer marks a violated invariant. LockErrors in this
	// category are only ever surfaced through Fatal, never returned.
	CategoryProgrammer Category = iota
	// CategoryResource marks a failure to acquire some resource needed
	// to service the request (e.g. allocating a new LockRequest).
	CategoryResource
)

func (c Category) String() string {
	switch c {
	case CategoryProgrammer:
		return "programmer"
	case CategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

// LockError is a structured error carrying a category, the component
// that raised it, and — via github.com/pkg/errors — a captured stack
// trace and optional wrapped cause.
type LockError struct {
	Category  Category
	Component string
	Message   string
	Cause     error
}

// New creates a LockError in category for component, capturing a stack
// trace at the call site.
func New(category Category, component, format string, args ...any) *LockError {
	return &LockError{
		Category:  category,
		Component: component,
		Message:   errors.Errorf(format, args...).Error(),
		Cause:     errors.New(fmt.Sprintf(format, args...)),
	}
}

// Wrap annotates err with component context and message, capturing a
// stack trace at the call site.
func Wrap(err error, category Category, component, message string) *LockError {
	if err == nil {
		return nil
	}
	return &LockError{
		Category:  category,
		Component: component,
		Message:   message,
		Cause:     errors.Wrap(err, message),
	}
}

func (e *LockError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("lock[%s/%s]: %s", e.Category, e.Component, e.Cause)
	}
	return fmt.Sprintf("lock[%s]: %s", e.Category, e.Cause)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// Fatal reports a violated invariant — a programmer error — and aborts
// the process. It never returns. Callers should use it only for
// conditions that mean the caller misused the API (double-unlocking a
// resource, releasing a lock it never held), never for conditions an
// environment can legitimately produce.
func Fatal(component, format string, args ...any) {
	err := New(CategoryProgrammer, component, format, args...)
	panic(err)
}
