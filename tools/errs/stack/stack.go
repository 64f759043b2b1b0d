package stack

import (
	"fmt"
	"runtime"
	"strings"
)

const maxDepth = 16

type Error struct {
	err    error
	frames []uintptr
}

// New wraps err with the caller stack, skipping the given number of frames.
func New(err error, skip int) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	return &Error{err: err, frames: pcs[:n]}
}

func (e *Error) Error() string { return e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

// Stack renders the captured call sites, innermost first.
func (e *Error) Stack() string {
	var b strings.Builder
	frames := runtime.CallersFrames(e.frames)
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s\n%s", e.err.Error(), e.Stack())
			return
		}
		fallthrough
	default:
		fmt.Fprint(s, e.err.Error())
	}
}
