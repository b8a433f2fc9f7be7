package query

import "errors"

// ErrIndexMissing is the structured "required index does not exist" condition.
// Readers report it by returning an error for which errors.Is matches.
var ErrIndexMissing = errors.New("query: required index is missing")

// IndexMissingError carries the index a rejected read needs.
type IndexMissingError struct {
	Spec IndexSpec
	Err  error
}

func (e *IndexMissingError) Error() string {
	msg := "query: " + e.Spec.Collection + " needs index " + e.Spec.Name()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndexMissingError) Is(target error) bool {
	return target == ErrIndexMissing
}

func (e *IndexMissingError) Unwrap() error {
	return e.Err
}
