package services

import "errors"

// Sentinel errors returned by the messenger services. Controllers map them
// to HTTP statuses; everything else is treated as a server fault.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrMessengerIDExhausted = errors.New("unable to generate unique messenger id")
)
