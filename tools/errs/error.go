package errs

import (
	"fmt"
	"strings"
)

// New builds a generic CodeError with optional key/value detail pairs.
func New(msg string, kv ...any) *CodeError {
	e := NewCodeError(ServerInternalError, msg)
	if len(kv) > 0 {
		e.Detail = toString("", kv)
	}
	return &e
}

type errorWrapper struct {
	err error
	msg string
}

func NewErrorWrapper(err error, msg string) error {
	return &errorWrapper{err: err, msg: msg}
}

func (w *errorWrapper) Error() string {
	if w.msg == "" {
		return w.err.Error()
	}
	return w.msg + ": " + w.err.Error()
}

func (w *errorWrapper) Unwrap() error { return w.err }

func toString(msg string, kv []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		if i+1 < len(kv) {
			fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, "%v", kv[i])
		}
	}
	return b.String()
}
