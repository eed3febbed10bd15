package catalog

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Kind classifies a catalog failure for user-facing reporting.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	PermissionDenied
	AuthExpired
	InvalidQuery
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case AuthExpired:
		return "auth_expired"
	case InvalidQuery:
		return "invalid_query"
	default:
		return "unknown"
	}
}

// Error is a classified catalog failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("catalog %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or Unknown for non-catalog errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Unknown
}

// classify maps a Drive API failure onto the catalog error taxonomy.
func classify(op string, err error) *Error {
	return &Error{Kind: kindFromStatus(statusCode(err)), Op: op, Err: err}
}

func kindFromStatus(code int) Kind {
	switch code {
	case 404:
		return NotFound
	case 403:
		return PermissionDenied
	case 401:
		return AuthExpired
	case 400:
		return InvalidQuery
	default:
		return Unknown
	}
}

// statusCode extracts the HTTP status from a googleapi error, or 0.
func statusCode(err error) int {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return 0
}
