package services

import "errors"

var (
	// ErrNotFound is returned when the referenced user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidRequest covers every failure while building, hashing or
	// persisting a user on create and edit. The wrapped cause is for logs only.
	ErrInvalidRequest = errors.New("request data is invalid")
)
