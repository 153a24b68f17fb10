package repository

import "errors"

// Sentinel kinds for dead-letter store errors.
var (
	ErrNotFound     = errors.New("dead letter not found")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrInvalidName  = errors.New("invalid dead letter name")
)
