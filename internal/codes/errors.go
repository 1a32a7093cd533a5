package codes

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal scracc error.
type Kind int

const (
	KindArgument Kind = iota + 1
	KindIO
	KindCompile
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument error"
	case KindIO:
		return "io error"
	case KindCompile:
		return "compile error"
	default:
		return "error"
	}
}

// Error is a tagged failure of one pipeline stage.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Argumentf reports bad, missing or contradictory command line input.
func Argumentf(format string, args ...any) error {
	return &Error{Kind: KindArgument, Op: fmt.Sprintf(format, args...)}
}

// IO wraps a filesystem failure on path.
func IO(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// Compile reports a failed compiler run.
func Compile(path string, err error) error {
	return &Error{Kind: KindCompile, Op: "compilation failed for", Path: path, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ExitCode maps a scracc failure to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	return ExitFailure
}
