package pricing

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports malformed or out-of-domain request fields.
// Fields maps the offending field name to a reason.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"errors,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func newFieldError(field, reason string) *ValidationError {
	return &ValidationError{
		Message: "invalid input",
		Fields:  map[string]string{field: reason},
	}
}

// ComputationError means a derived value became non-finite.
type ComputationError struct {
	Stage string
	Value float64
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("non-finite value at %s: %v", e.Stage, e.Value)
}
