package header

import "fmt"

// ValidationError reports a mandatory header field that is missing or a
// field whose value falls outside its permitted domain. It is fatal to the
// offending file's contribution, never to the batch as a whole during
// pre-flight checks.
type ValidationError struct {
	File   string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("file %s: header %s: %s", e.File, e.Field, e.Reason)
}

func missing(file, field string) *ValidationError {
	return &ValidationError{File: file, Field: field, Reason: "mandatory field is missing"}
}

func outOfDomain(file, field string, value any) *ValidationError {
	return &ValidationError{File: file, Field: field, Reason: fmt.Sprintf("value %v is not permitted", value)}
}
