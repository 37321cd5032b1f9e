package seqcastserver

import (
	"errors"
)

var (
	errZeroPacketCount  = errors.New("session packet count must be positive")
	errNegativeDelay    = errors.New("session inter-packet delay cannot be negative")
	errInvalidMinClient = errors.New("minimum number of clients must be at least one")
)
