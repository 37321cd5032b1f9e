package seqcastclient

import "errors"

var (
	// ErrHandshakeAttemptsExhausted is returned when the server did not
	// reply to any of the admission requests.
	ErrHandshakeAttemptsExhausted = errors.New("server did not reply to admission requests")

	// ErrUnexpectedHandshakeReply is returned when the server replies to
	// an admission request with something other than an admission reply.
	ErrUnexpectedHandshakeReply = errors.New("unexpected handshake reply")

	errInvalidSilenceTimeout = errors.New("silence timeout must be positive")
	errNegativeInterval      = errors.New("handshake interval cannot be negative")
)
