// Package xerrors provides error wrappers that carry caller position
// and stack data the log package knows how to render.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

type stacked struct {
	err error
	pcs []uintptr
}

func (s *stacked) Error() string       { return s.err.Error() }
func (s *stacked) Unwrap() error       { return s.err }
func (s *stacked) StackPCs() []uintptr { return s.pcs }
func (s *stacked) IsXerrorsWrapper()   {}

type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error     { return w.err }
func (w *wrapped) PC() uintptr       { return w.pc }
func (w *wrapped) IsXerrorsWrapper() {}

func stackPCs(skip int) []uintptr {
	const maxDepth = 64
	pcs := make([]uintptr, maxDepth)
	// 2 skips runtime.Callers + stackPCs itself
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

// New is errors.New plus a captured stack.
func New(msg string) error { return &stacked{err: errors.New(msg), pcs: stackPCs(1)} }

// Newf is fmt.Errorf plus a captured stack.
func Newf(format string, args ...any) error {
	return &stacked{err: fmt.Errorf(format, args...), pcs: stackPCs(1)}
}

// Wrap annotates err with a message and the caller's position.
// Returns nil when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: callerPC(1)}
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

// WithStack attaches a full stack capture to err without changing its message.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &stacked{err: err, pcs: stackPCs(1)}
}

// EnsureTrace attaches a stack only if the chain doesn't already carry one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	type hasStack interface{ StackPCs() []uintptr }
	var hs hasStack
	if errors.As(err, &hs) && hs != nil && len(hs.StackPCs()) > 0 {
		return err
	}
	return &stacked{err: err, pcs: stackPCs(1)}
}
