// Package transport wraps a UDP socket with the send-to / receive-with-timeout
// primitives used by seqcast servers and clients.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/companyzero/seqcast/rpc"
)

// NoTimeout may be passed to RecvFrom to block until a datagram arrives.
const NoTimeout time.Duration = 0

// PacketConn is the datagram interface used by the protocol loops.
type PacketConn interface {
	// SendTo sends b as a single datagram to the given address.
	SendTo(b []byte, to netip.AddrPort) error

	// RecvFrom blocks for up to timeout waiting for the next datagram. A
	// zero timeout blocks indefinitely. Returns ErrTimeout if the timeout
	// elapses. The returned slice is only valid until the next call.
	RecvFrom(timeout time.Duration) ([]byte, netip.AddrPort, error)
}

// Conn is a bound UDP socket. It is not safe for concurrent reads.
type Conn struct {
	c   *net.UDPConn
	buf []byte
}

var _ PacketConn = (*Conn)(nil)

// Listen binds a new UDP socket to addr. A zero port binds to an ephemeral
// port and an invalid (zero) address binds to all interfaces.
func Listen(addr netip.AddrPort) (*Conn, error) {
	var udpAddr *net.UDPAddr
	if addr.Addr().IsValid() {
		udpAddr = net.UDPAddrFromAddrPort(addr)
	} else {
		udpAddr = &net.UDPAddr{Port: int(addr.Port())}
	}
	c, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to bind to %s: %w",
			ErrTransportFailure, udpAddr, err)
	}
	return newConn(c), nil
}

// ListenHost binds to the given host and port. An empty host binds to all
// interfaces.
func ListenHost(ctx context.Context, host string, port uint16) (*Conn, error) {
	if host == "" {
		return Listen(netip.AddrPortFrom(netip.Addr{}, port))
	}
	addr, err := ResolveAddr(ctx, host, port)
	if err != nil {
		return nil, err
	}
	return Listen(addr)
}

// ResolveAddr resolves host into an address suitable for sending datagrams
// to. IPv4 addresses are preferred.
func ResolveAddr(ctx context.Context, host string, port uint16) (netip.AddrPort, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(ip.Unmap(), port), nil
	}

	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("unable to resolve host %q: %w", host, err)
	}
	if len(ips) == 0 {
		return netip.AddrPort{}, fmt.Errorf("host %q resolved to no addresses", host)
	}
	ip := ips[0]
	for _, cand := range ips {
		if cand.Unmap().Is4() {
			ip = cand
			break
		}
	}
	return netip.AddrPortFrom(ip.Unmap(), port), nil
}

func newConn(c *net.UDPConn) *Conn {
	return &Conn{
		c: c,

		// One extra byte so oversized datagrams are seen as such by
		// the decoder instead of being silently truncated.
		buf: make([]byte, rpc.MaxDatagramSize+1),
	}
}

// LocalAddr returns the address the socket is bound to.
func (c *Conn) LocalAddr() netip.AddrPort {
	addr := c.c.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// SendTo sends b as a single datagram to the given address.
func (c *Conn) SendTo(b []byte, to netip.AddrPort) error {
	_, err := c.c.WriteToUDPAddrPort(b, to)
	if err != nil {
		return fmt.Errorf("%w: write to %s: %w", ErrTransportFailure, to, err)
	}
	return nil
}

// RecvFrom waits up to timeout for the next datagram. See PacketConn.
func (c *Conn) RecvFrom(timeout time.Duration) ([]byte, netip.AddrPort, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.c.SetReadDeadline(deadline); err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("%w: set read deadline: %w",
			ErrTransportFailure, err)
	}

	n, addr, err := c.c.ReadFromUDPAddrPort(c.buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, netip.AddrPort{}, ErrTimeout
	}
	if err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("%w: read: %w",
			ErrTransportFailure, err)
	}
	addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
	return c.buf[:n], addr, nil
}

// SetReadBuffer sets the size of the kernel receive buffer of the socket.
func (c *Conn) SetReadBuffer(bytes int) error {
	return c.c.SetReadBuffer(bytes)
}

// KernelReadBufferSize returns the size of the kernel buffer used for
// receiving on the socket. Returns ErrKernelBufferUnsupported on platforms
// where it cannot be queried.
func (c *Conn) KernelReadBufferSize() (int, error) {
	return kernelReadBufferSize(c.c)
}

// Close releases the socket. Any blocked RecvFrom returns an error wrapping
// net.ErrClosed.
func (c *Conn) Close() error {
	return c.c.Close()
}
