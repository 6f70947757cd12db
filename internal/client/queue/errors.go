package queue

import "errors"

var (
	ErrNotFound          = errors.New("queue item not found")
	ErrNotPDF            = errors.New("not a pdf file")
	ErrNotEligible       = errors.New("item is not ready for conversion")
	ErrMissingSession    = errors.New("upload session missing")
	ErrNotRetryable      = errors.New("only failed or cancelled items can be retried")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Returned by Gate implementations.
	ErrLimitExceeded        = errors.New("limit exceeded")
	ErrAuthRequired         = errors.New("sign in to start a conversion")
	ErrVerificationRequired = errors.New("verify your email to start a conversion")
)
