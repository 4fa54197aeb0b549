package models

import "errors"

var (
	// ErrInvalidInput indicates a caller broke a structural invariant
	// (missing fields, id collisions, gaps in chunk indices).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates missing or bad credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrLLMUnavailable indicates no answer-synthesis model is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
