package model

import "errors"

// Failure taxonomy for the relay core. Every failure path surfaces one of
// these kinds, matched with errors.Is; nothing escapes uncategorized.
var (
	// ErrUnauthenticated rejects a handshake credential. Terminates the connection.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden marks an operation by a non-participant of a conversation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks an unknown conversation or user.
	ErrNotFound = errors.New("not found")

	// ErrPersistence marks a store write or read that did not complete.
	ErrPersistence = errors.New("persistence failure")

	// ErrDuplicateSession marks a second registration of the same connection handle.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrProtocolAbuse marks a connection that exceeded the malformed-frame
	// threshold. Terminates the connection.
	ErrProtocolAbuse = errors.New("protocol abuse")
)

// Error frame codes, mirrored from the taxonomy above.
const (
	CodeForbidden   = "forbidden"
	CodeNotFound    = "not_found"
	CodePersistence = "persistence"
	CodeBadFrame    = "bad_frame"
)
