package seqcastserver

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/companyzero/seqcast/rpc"
	"github.com/companyzero/seqcast/seqcast/transport"
)

// admit runs the admission loop: it receives datagrams until a receive times
// out with at least the minimum number of clients admitted.
//
// New clients are added to the registry and immediately sent the admission
// reply. Already admitted clients are sent the reply again, so that a client
// that lost its reply can still finish its handshake. Anything else is
// ignored.
func (s *Server) admit(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = minPollTimeout
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, from, err := s.conn.RecvFrom(timeout)
		if errors.Is(err, transport.ErrTimeout) {
			if s.registry.Len() >= s.cfg.minClients {
				return nil
			}
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		s.stats.datagramRead(len(b))
		if err := s.handleAdmissionMsg(b, from); err != nil {
			return err
		}
	}
}

// handleAdmissionMsg processes a single datagram received during admission.
// Only fatal errors are returned.
func (s *Server) handleAdmissionMsg(b []byte, from netip.AddrPort) error {
	msg, err := rpc.Decode(b)
	if err != nil {
		s.log.Debugf("Ignoring datagram from %s: %v", from, err)
		s.stats.malformedMsg()
		return nil
	}
	if _, ok := msg.(rpc.AdmissionRequest); !ok {
		s.log.Debugf("Ignoring unexpected %s from %s", msg.Kind(), from)
		s.stats.malformedMsg()
		return nil
	}
	s.stats.admissionRequest()

	if !s.registry.Add(from, time.Now()) {
		s.log.Debugf("Re-acknowledging admitted client %s", from)
	} else {
		s.log.Infof("Admitted client %s (%d clients, next packet %d)",
			from, s.registry.Len(), s.nextSeq)
		s.stats.clientAdmitted()
		if s.cfg.admittedCb != nil {
			s.cfg.admittedCb(from, s.nextSeq)
		}
	}

	return s.send(s.reply, from)
}

// send writes b to the given address. Failures to write to a single client
// are logged and skipped. Only a closed socket is reported back.
func (s *Server) send(b []byte, to netip.AddrPort) error {
	err := s.conn.SendTo(b, to)
	if err == nil {
		s.stats.datagramWritten(len(b))
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return err
	}
	s.log.Warnf("Unable to send %d bytes to %s: %v", len(b), to, err)
	s.stats.sendFailed()
	return nil
}
