package annotation

import (
	"errors"
	"fmt"
)

var (
	ErrSchema    = errors.New("schema error")
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("ambiguous match")
)

// SchemaError reports a missing or malformed element or attribute in an
// annotation document. Value is empty when the attribute is missing.
type SchemaError struct {
	Element   string
	Attribute string
	Value     string
	Err       error
}

func (e *SchemaError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil && e.Value == "" {
		return fmt.Sprintf("%s: <%s> is missing %q", ErrSchema, e.Element, e.Attribute)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: <%s> %s=%q", ErrSchema, e.Element, e.Attribute, e.Value)
	}
	return fmt.Sprintf("%s: <%s> %s=%q: %v", ErrSchema, e.Element, e.Attribute, e.Value, e.Err)
}

func (e *SchemaError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSchema}
	}
	return []error{ErrSchema, e.Err}
}

func missing(element, attribute string) error {
	return &SchemaError{Element: element, Attribute: attribute}
}

// NotFoundError is returned when an image, task, label or job id cannot be located
type NotFoundError struct {
	Kind string
	Key  string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %q %s: %v", e.Kind, e.Key, ErrNotFound, e.Err)
	}
	return fmt.Sprintf("%s %q %s", e.Kind, e.Key, ErrNotFound)
}

func (e *NotFoundError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNotFound}
	}
	return []error{ErrNotFound, e.Err}
}

// AmbiguousError is returned when a lookup that must be unique matches several records
type AmbiguousError struct {
	Kind    string
	Key     string
	Matches int
}

func (e *AmbiguousError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s %q matches %d records", ErrAmbiguous, e.Kind, e.Key, e.Matches)
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }
