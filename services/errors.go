package services

import "errors"

// Error taxonomy shared by services and handlers
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUpstream        = errors.New("upstream unavailable")
	ErrTimeLimit       = errors.New("time limit exceeded")
)
