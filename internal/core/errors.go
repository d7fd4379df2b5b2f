package core

import "errors"

// Validation error kinds. A *ValidationError unwraps to one of these.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNonPositiveAmount  = errors.New("non-positive amount")
	ErrMissingPayer       = errors.New("missing payer")
	ErrUnknownPayer       = errors.New("unknown payer")
	ErrNoParticipants     = errors.New("no participants")
	ErrUnknownParticipant = errors.New("unknown participant")
)

// ErrAmountOutOfRange reports an amount too large for integer cents.
var ErrAmountOutOfRange = errors.New("amount out of range")

// ValidationError carries a message meant for the person submitting the
// input, alongside the kind used for programmatic checks.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalid(kind error, msg string) error {
	return &ValidationError{Kind: kind, Message: msg}
}

// IsValidation reports whether err is a validation failure that can be
// shown to the user as-is.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
