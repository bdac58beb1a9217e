// pkg/njdot/errors.go

package njdot

import (
	"errors"
	"fmt"
	"strings"

	"NJCrashes/pkg/chunk"
	"NJCrashes/pkg/sqlite"
)

// Kind classifies query failures. Invalid* are caller errors and never
// retried; FetchFailure is transient; Format is fatal to the query and
// must never be conflated with an empty result.
type Kind int

const (
	KindInvalidFilter Kind = iota + 1
	KindInvalidPagination
	KindFetchFailure
	KindDataUnavailable
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindInvalidFilter:
		return "invalid_filter"
	case KindInvalidPagination:
		return "invalid_pagination"
	case KindFetchFailure:
		return "fetch_failure"
	case KindDataUnavailable:
		return "data_unavailable"
	case KindFormat:
		return "format_error"
	}
	return "unknown"
}

// Error is the tagged failure value every query operation returns;
// callers branch on KindOf instead of unwinding.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind classifying err, or 0 for nil/foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var fe *chunk.FetchError
	if errors.As(err, &fe) {
		return KindFetchFailure
	}
	var fo *sqlite.FormatError
	if errors.As(err, &fo) {
		return KindFormat
	}
	return 0
}

// classify wraps accessor errors into the taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var fe *chunk.FetchError
	if errors.As(err, &fe) {
		return &Error{Kind: KindFetchFailure, Msg: "range fetch failed", Err: err}
	}
	var fo *sqlite.FormatError
	if errors.As(err, &fo) {
		return &Error{Kind: KindFormat, Msg: "data file is malformed", Err: err}
	}
	// the SQLite driver reports corruption as SQLITE_CORRUPT ("database
	// disk image is malformed") or SQLITE_NOTADB ("file is not a
	// database"), plain strings with no type to match on
	if msg := err.Error(); strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") {
		return &Error{Kind: KindFormat, Msg: "data file is malformed", Err: err}
	}
	return &Error{Kind: KindDataUnavailable, Msg: "query failed", Err: err}
}
