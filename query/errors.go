package query

import apperrors "github.com/kbukum/smokedb/errors"

// Sentinels for the cardinality failures of terminal operators. The errors
// returned carry their own message and details but match these under
// errors.Is.
var (
	ErrEmptySequence    = apperrors.EmptySequence()
	ErrOutOfRange       = apperrors.OutOfRange(0)
	ErrMultipleElements = apperrors.MultipleElements()
	ErrNoMatch          = apperrors.NoMatch()
	ErrInvalidCast      = apperrors.InvalidCast(nil, "")
)
