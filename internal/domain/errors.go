package domain

import "errors"

var (
	// ErrUnauthorized means the caller could not prove the principal a call acts as.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOverflow means a contribution would push a total past the largest Amount.
	ErrOverflow = errors.New("amount overflow")
)
