// Package apierr defines the typed error kinds the scenario engine surfaces
// to its callers, per the error handling design.
package apierr

import "fmt"

// Kind is the category of a façade-level failure.
type Kind string

const (
	KindBadInput        Kind = "BAD_INPUT"
	KindUnknownScenario  Kind = "UNKNOWN_SCENARIO"
	KindMissingAnchor    Kind = "MISSING_ANCHOR"
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindInternal         Kind = "INTERNAL"
)

// Error is the typed error the façade and its collaborators return. It
// carries enough structure for the HTTP edge to render
// {error, details, required_anchor} without re-deriving it.
type Error struct {
	Kind           Kind
	Details        string
	RequiredAnchor string
	Err            error // wrapped cause, optional
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Details)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with the given kind and detail message.
func New(kind Kind, details string) *Error {
	return &Error{Kind: kind, Details: details}
}

// Wrap builds an INTERNAL *Error wrapping err, matching the propagation
// policy that store failures and unexpected invariant breaks surface as
// INTERNAL with logged context.
func Wrap(err error, details string) *Error {
	return &Error{Kind: KindInternal, Details: details, Err: err}
}

// NotFound builds a NOT_FOUND error for the given entity/id.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Details: fmt.Sprintf("%s %q not found", entity, id)}
}

// MissingAnchor builds a MISSING_ANCHOR error naming the required anchor type.
func MissingAnchor(requiredAnchor string) *Error {
	return &Error{Kind: KindMissingAnchor, Details: "required anchor not supplied", RequiredAnchor: requiredAnchor}
}

// BadInput builds a BAD_INPUT error with the given detail.
func BadInput(details string) *Error {
	return &Error{Kind: KindBadInput, Details: details}
}

// UnknownScenario builds an UNKNOWN_SCENARIO error for the given key.
func UnknownScenario(key string) *Error {
	return &Error{Kind: KindUnknownScenario, Details: fmt.Sprintf("no template mapping for scenario %q", key)}
}
