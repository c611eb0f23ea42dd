package domain

import "errors"

// Error kinds shared by every layer. Wrap them with fmt.Errorf("%w: ...")
// and test with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrInternal   = errors.New("internal error")
)
