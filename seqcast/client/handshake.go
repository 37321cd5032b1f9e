package seqcastclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/companyzero/seqcast/rpc"
	"github.com/companyzero/seqcast/seqcast/transport"
)

// Handshake requests admission to the server's stream and returns the total
// number of packets in the stream.
//
// The request is sent again every time the wait for the reply times out, up to
// the configured max number of attempts.
func (c *Client) Handshake(ctx context.Context) (uint32, error) {
	// A receive without timeout may only be unblocked by closing the
	// socket.
	if closer, ok := c.conn.(io.Closer); ok && c.cfg.handshakeInterval == 0 {
		stop := context.AfterFunc(ctx, func() { closer.Close() })
		defer stop()
	}

	req, err := rpc.Encode(rpc.AdmissionRequest{})
	if err != nil {
		return 0, err
	}

	interval := c.cfg.handshakeInterval
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		c.log.Debugf("Sending admission request (attempt #%d)", attempt)
		if err := c.conn.SendTo(req, c.server); err != nil {
			return 0, c.ctxErrOr(ctx, fmt.Errorf("unable to send "+
				"admission request: %w", err))
		}
		c.stats.datagramWritten(len(req))

		count, err := c.awaitReply(ctx, interval)
		if !errors.Is(err, transport.ErrTimeout) {
			if err == nil {
				c.log.Infof("Admitted to stream of %d packets after "+
					"%d attempt(s)", count, attempt)
			}
			return count, err
		}

		if c.cfg.maxHandshakeAttempts > 0 && attempt >= c.cfg.maxHandshakeAttempts {
			return 0, fmt.Errorf("%w after %d attempts",
				ErrHandshakeAttemptsExhausted, attempt)
		}
		interval = min(interval*2, c.cfg.maxHandshakeInterval)
	}
}

// awaitReply waits up to timeout for the admission reply. Datagrams sent
// from addresses other than the server's are ignored. A zero timeout waits
// indefinitely.
func (c *Client) awaitReply(ctx context.Context, timeout time.Duration) (uint32, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		wait := transport.NoTimeout
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return 0, transport.ErrTimeout
			}
		}

		b, from, err := c.conn.RecvFrom(wait)
		if errors.Is(err, transport.ErrTimeout) {
			return 0, err
		}
		if err != nil {
			return 0, c.ctxErrOr(ctx, err)
		}
		c.stats.datagramRead(len(b))

		if from != c.server {
			c.log.Debugf("Ignoring %d bytes from %s during handshake",
				len(b), from)
			continue
		}

		reply, err := rpc.DecodeAdmissionReply(b)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrUnexpectedHandshakeReply, err)
		}
		return reply.Count, nil
	}
}

// ctxErrOr returns the context error if ctx is done, otherwise err.
func (c *Client) ctxErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
