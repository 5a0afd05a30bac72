package service

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("detection backend unavailable")
)
