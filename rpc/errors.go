package rpc

import (
	"errors"
	"fmt"
)

// ErrMalformedMessage is returned (wrapped) when a datagram cannot be decoded
// into one of the seqcast messages.
var ErrMalformedMessage = errors.New("malformed message")

// ErrMessageTooLarge is returned when encoding a message would produce a
// datagram larger than MaxDatagramSize.
var ErrMessageTooLarge = errors.New("message too large")

// ErrUnexpectedKind is returned by the typed decoders when the datagram is
// a valid message of a different kind than the requested one.
var ErrUnexpectedKind = errors.New("unexpected message kind")

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
