package models

import "errors"

// Status is the outcome tag carried by every Manifest.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusProcessing    Status = "processing"
	StatusFetchFailed   Status = "fetch-failed"
	StatusInvalidFormat Status = "invalid-format"
	StatusUnknownFormat Status = "not-a-known-format"
	StatusParseError    Status = "parse-error"
)

// StatusError ties an error to the status it should surface as.
type StatusError struct {
	Status Status
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return string(e.Status)
	}
	return string(e.Status) + ": " + e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewStatusError wraps err with a status.
func NewStatusError(status Status, err error) *StatusError {
	return &StatusError{Status: status, Err: err}
}

// StatusOf extracts the status from an error chain, defaulting to parse-error.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusParseError
}
