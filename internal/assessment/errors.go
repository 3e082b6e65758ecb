package assessment

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalid            = errors.New("invalid assessment")
	ErrGradeCountMismatch = errors.New("manual grade count does not match ungraded answers")
	ErrAlreadyEvaluated   = errors.New("submission already evaluated")
)

// ErrInvalidGrade marks an evaluation whose points fall outside a question's
// [0, max] range.
var ErrInvalidGrade = errors.New("grade out of range")
