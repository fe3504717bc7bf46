// errors.go defines the error taxonomy surfaced by the ingestion coordinator.
// Handlers map each kind to an HTTP status without inspecting error strings.
package ingest

import "fmt"

// Kind classifies an ingestion failure
type Kind int

const (
	// KindInternal covers database, storage, and other infrastructure failures.
	KindInternal Kind = iota
	// KindValidation covers malformed packages and unsatisfiable manifests.
	KindValidation
	// KindNotFound covers references to entities that do not exist.
	KindNotFound
	// KindConflict covers duplicate (mod, version) publications.
	KindConflict
	// KindUnauthorized covers callers lacking publish permission.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is an ingestion failure with a classification kind
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind returns the classification of err, defaulting to KindInternal for
// errors that did not originate in the coordinator.
func ErrKind(err error) Kind {
	if ingestErr, ok := err.(*Error); ok {
		return ingestErr.Kind
	}
	return KindInternal
}

func validationErr(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func conflictErr(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func internalErr(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}
