package session

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrChallengeNotFound covers unknown, expired, and already-consumed
	// challenge IDs. The three cases are deliberately indistinguishable to
	// the client.
	ErrChallengeNotFound = errors.New("session: challenge not found or expired")

	// ErrPeerMismatch means the verifying peer is not the peer the
	// challenge was issued to. The challenge is consumed regardless.
	ErrPeerMismatch = errors.New("session: peer ID mismatch")

	// ErrVerificationFailed means the oracle rejected the response.
	ErrVerificationFailed = errors.New("session: verification failed")

	// ErrReconstruction means a stored challenge failed to deserialize.
	ErrReconstruction = errors.New("session: can't reconstruct stored challenge")
)

// NewError wraps a private failure with the public reason and HTTP status
// the API layer reports for it.
func NewError(verb, publicReason string, privateReason error, statusCode int) *Error {
	return &Error{
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    statusCode,
	}
}

type Error struct {
	PrivateReason error
	Verb          string
	PublicReason  string
	StatusCode    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("session: error when processing %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}

func notFound(verb string, privateReason error) *Error {
	return NewError(verb, "Challenge not found or expired", privateReason, http.StatusNotFound)
}

func forbidden(verb, publicReason string, privateReason error) *Error {
	return NewError(verb, publicReason, privateReason, http.StatusForbidden)
}

func internalError(verb string, privateReason error) *Error {
	return NewError(verb, "Internal error", privateReason, http.StatusInternalServerError)
}
