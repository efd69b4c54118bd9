package common

import "errors"

// Application error taxonomy. Services wrap these with fmt.Errorf and %w;
// handlers map them to HTTP statuses with errors.Is.
var (
	// ErrValidation bad or missing input
	ErrValidation = errors.New("validation failed")

	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrSignature webhook signature missing or invalid
	ErrSignature = errors.New("invalid webhook signature")

	// ErrStorage object storage or datastore failure
	ErrStorage = errors.New("storage failure")

	// ErrProcessor payment processor failure
	ErrProcessor = errors.New("payment processor failure")

	// ErrInternal unexpected internal error
	ErrInternal = errors.New("internal error")
)
