package model

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrNoJSON        = errors.New("no JSON object found in model output")
)

// UnavailableError reports that the backing model service could not be reached,
// timed out, or produced nothing usable. Callers decide whether to retry.
type UnavailableError struct {
	Model string
	err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Model, e.err)
}

func (e *UnavailableError) Unwrap() error {
	return e.err
}

// NewUnavailableError wraps err as a model availability failure.
func NewUnavailableError(model string, err error) error {
	return &UnavailableError{Model: model, err: err}
}

// IsUnavailable returns true if err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}
