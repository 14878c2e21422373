package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound marks a lookup for an ID that does not exist. Non-fatal;
// callers decide the fallback.
var ErrNotFound = errors.New("record not found")

// ErrIndexUnavailable marks a similarity-search failure. Callers must be
// able to tell this apart from an empty result.
var ErrIndexUnavailable = errors.New("similarity index unavailable")

// ValidationError reports a malformed record rejected at ingestion.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: field %q failed %q", e.Field, e.Reason)
}

// BatchError reports which positions of a batch operation were rejected.
// When a BatchError is returned, no record of the batch was written.
type BatchError struct {
	Failed map[int]error
}

func (e *BatchError) Error() string {
	idx := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("[%d] %v", i, e.Failed[i]))
	}
	return "batch rejected: " + strings.Join(parts, "; ")
}

var validate = validator.New()

// Validate checks the record against the ingestion contract: title required,
// rating within [0,10].
func (m *MovieRecord) Validate() error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{
			Field:  strings.ToLower(verrs[0].Field()),
			Reason: verrs[0].Tag(),
		}
	}
	return err
}
