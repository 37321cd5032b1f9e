package seqcastclient

import (
	"context"
	"errors"

	"github.com/companyzero/seqcast/rpc"
	"github.com/companyzero/seqcast/seqcast/internal/seqtracker"
	"github.com/companyzero/seqcast/seqcast/transport"
)

// Receive consumes the stream of count packets until no datagram arrives for
// the configured silence timeout. This must be called after the handshake.
//
// The returned summary is valid even when an error is returned and accounts
// for the packets received up to that point.
func (c *Client) Receive(ctx context.Context, count uint32) (Summary, error) {
	rec := seqtracker.New(count)
	for {
		if err := ctx.Err(); err != nil {
			return rec.Summary(), err
		}

		b, from, err := c.conn.RecvFrom(c.cfg.silenceTimeout)
		if errors.Is(err, transport.ErrTimeout) {
			c.log.Debugf("No packets for %s, ending stream",
				c.cfg.silenceTimeout)
			break
		}
		if err != nil {
			return rec.Summary(), c.ctxErrOr(ctx, err)
		}
		c.stats.datagramRead(len(b))

		if from != c.server {
			c.log.Debugf("Discarding %d bytes from %s", len(b), from)
			rec.Discard()
			c.stats.discarded()
			continue
		}

		pkt, err := rpc.DecodePacket(b)
		if err != nil {
			c.log.Debugf("Discarding datagram: %v", err)
			rec.Discard()
			c.stats.discarded()
			continue
		}

		ooo := rec.OutOfOrderCount()
		obs := rec.Observe(pkt.Sequence)
		c.stats.packetObserved(obs, rec.OutOfOrderCount() > ooo)
		c.log.Tracef("Received packet %d (%s, %d bytes of payload)",
			pkt.Sequence, obs, len(pkt.Payload))
		if c.cfg.packetHandler != nil {
			c.cfg.packetHandler(pkt, obs)
		}
	}

	summ := rec.Summary()
	c.log.Infof("Stream ended: %d of %d packets arrived, %d lost, %d out "+
		"of order", summ.Arrived, summ.Count, summ.Lost, len(summ.OutOfOrder))
	return summ, nil
}
