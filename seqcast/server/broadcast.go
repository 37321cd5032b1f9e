package seqcastserver

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/companyzero/seqcast/rpc"
)

// broadcast waits for the first clients, then sends every packet of the
// session to all admitted clients, running an admission check between
// consecutive packets.
func (s *Server) broadcast(ctx context.Context) error {
	perIteration, residual := s.sess.Budget(s.cfg.maxAdmissionWait)
	s.log.Infof("Streaming %d packets every %s (admission wait %s, "+
		"residual delay %s)", s.sess.Count, s.sess.Delay, perIteration,
		residual)

	s.log.Infof("Waiting for %d client(s)", s.cfg.minClients)
	if err := s.admit(ctx, perIteration); err != nil {
		return err
	}

	var dests []netip.AddrPort
	buf := make([]byte, 0, rpc.MaxDatagramSize)
	for seq := uint32(0); seq < s.sess.Count; seq++ {
		pkt := rpc.Packet{Sequence: seq, Payload: s.cfg.payloadGen(seq)}
		var err error
		buf, err = pkt.AppendEncoded(buf[:0])
		if err != nil {
			return fmt.Errorf("unable to produce packet: %w", err)
		}

		// Clients admitted after this point only receive the next
		// packets.
		dests = s.registry.AppendSnapshot(dests[:0])
		for _, dest := range dests {
			if err := s.send(buf, dest); err != nil {
				return err
			}
		}
		s.nextSeq = seq + 1
		s.stats.packetBroadcast(len(dests))
		s.log.Tracef("Sent packet %d to %d clients", seq, len(dests))

		if err := sleep(ctx, residual); err != nil {
			return err
		}
		if err := s.admit(ctx, perIteration); err != nil {
			return err
		}
	}

	s.log.Infof("Sent all %d packets to %d clients", s.sess.Count,
		s.registry.Len())
	return nil
}

// sleep blocks for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
