package domain

import "errors"

var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("status changed concurrently")
	ErrUnknownSequence = errors.New("unknown email sequence")
	ErrRetryExhausted  = errors.New("retry attempts exhausted")
)
