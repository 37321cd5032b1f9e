package seqcastserver

import (
	"fmt"
	"time"
)

// DefaultMaxAdmissionWait is the default cap on how long each admission check
// blocks waiting for new clients.
const DefaultMaxAdmissionWait = 200 * time.Millisecond

// DefaultPacketCount is the default number of packets in a session.
const DefaultPacketCount = 50

// minPollTimeout is used in place of a zero admission wait, so that checking
// for new clients never blocks indefinitely.
const minPollTimeout = time.Millisecond

// Session is the immutable description of a single streaming run.
type Session struct {
	// Count is the total number of packets. Packets are numbered
	// [0, Count).
	Count uint32

	// Delay is the target interval between consecutive packet sends.
	Delay time.Duration
}

// NewSession validates and returns a new session.
func NewSession(count uint32, delay time.Duration) (Session, error) {
	sess := Session{Count: count, Delay: delay}
	if err := sess.validate(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (sess Session) validate() error {
	if sess.Count == 0 {
		return errZeroPacketCount
	}
	if sess.Delay < 0 {
		return fmt.Errorf("%w (%s)", errNegativeDelay, sess.Delay)
	}
	return nil
}

// Budget splits the inter-packet delay into the time spent waiting for new
// clients on each admission check and the residual sleep. The sum of both is
// always the session delay.
func (sess Session) Budget(maxAdmissionWait time.Duration) (perIteration, residual time.Duration) {
	perIteration = min(sess.Delay, maxAdmissionWait)
	if perIteration < 0 {
		perIteration = 0
	}
	residual = sess.Delay - perIteration
	return
}
