package seqcastserver

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/companyzero/seqcast/internal/assert"
	"github.com/companyzero/seqcast/internal/testutils"
	"github.com/companyzero/seqcast/rpc"
	"github.com/companyzero/seqcast/seqcast/transport"
)

// datagram is a datagram exchanged through a fakeConn.
type datagram struct {
	b    []byte
	addr netip.AddrPort
}

// fakeConn is a PacketConn where the test feeds the inbound datagrams and
// inspects the outbound ones.
type fakeConn struct {
	in     chan datagram
	out    chan datagram
	closed chan struct{}
	once   sync.Once

	mtx      sync.Mutex
	failTo   map[netip.AddrPort]error
	timeouts []time.Duration
}

var _ transport.PacketConn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan datagram, 100),
		out:    make(chan datagram, 1000),
		closed: make(chan struct{}),
		failTo: make(map[netip.AddrPort]error),
	}
}

func (c *fakeConn) SendTo(b []byte, to netip.AddrPort) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}

	c.mtx.Lock()
	err := c.failTo[to]
	c.mtx.Unlock()
	if err != nil {
		return err
	}

	c.out <- datagram{b: bytes.Clone(b), addr: to}
	return nil
}

func (c *fakeConn) RecvFrom(timeout time.Duration) ([]byte, netip.AddrPort, error) {
	c.mtx.Lock()
	c.timeouts = append(c.timeouts, timeout)
	c.mtx.Unlock()

	var timeoutChan <-chan time.Time
	if timeout != transport.NoTimeout {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutChan = t.C
	}

	select {
	case d := <-c.in:
		return d.b, d.addr, nil
	case <-timeoutChan:
		return nil, netip.AddrPort{}, transport.ErrTimeout
	case <-c.closed:
		return nil, netip.AddrPort{}, fmt.Errorf("%w: read: %w",
			transport.ErrTransportFailure, net.ErrClosed)
	}
}

func (c *fakeConn) Close() {
	c.once.Do(func() { close(c.closed) })
}

// recvTimeouts returns the timeouts of every RecvFrom call so far.
func (c *fakeConn) recvTimeouts() []time.Duration {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]time.Duration(nil), c.timeouts...)
}

func (c *fakeConn) failSendsTo(addr netip.AddrPort, err error) {
	c.mtx.Lock()
	c.failTo[addr] = err
	c.mtx.Unlock()
}

// push queues a datagram as if sent by from.
func (c *fakeConn) push(t testing.TB, from netip.AddrPort, b []byte) {
	t.Helper()
	assert.WriteChan(t, c.in, datagram{b: b, addr: from})
}

// requestAdmission queues an admission request from the given address.
func (c *fakeConn) requestAdmission(t testing.TB, from netip.AddrPort) {
	t.Helper()
	b, err := rpc.Encode(rpc.AdmissionRequest{})
	assert.NilErr(t, err)
	c.push(t, from, b)
}

// drain returns all datagrams written so far.
func (c *fakeConn) drain() []datagram {
	var res []datagram
	for {
		select {
		case d := <-c.out:
			res = append(res, d)
		default:
			return res
		}
	}
}

// assertNextReply asserts the next written datagram is an admission reply
// to addr with the given count.
func (c *fakeConn) assertNextReply(t testing.TB, to netip.AddrPort, count uint32) {
	t.Helper()
	d := assert.ChanWritten(t, c.out)
	assert.DeepEqual(t, d.addr, to)
	reply, err := rpc.DecodeAdmissionReply(d.b)
	assert.NilErr(t, err)
	assert.DeepEqual(t, reply.Count, count)
}

// assertNextPacket asserts the next written datagram is the packet seq sent
// to addr.
func (c *fakeConn) assertNextPacket(t testing.TB, to netip.AddrPort, seq uint32) rpc.Packet {
	t.Helper()
	d := assert.ChanWritten(t, c.out)
	assert.DeepEqual(t, d.addr, to)
	pkt, err := rpc.DecodePacket(d.b)
	assert.NilErr(t, err)
	assert.DeepEqual(t, pkt.Sequence, seq)
	return pkt
}

// testAddr returns a loopback address with the given port.
func testAddr(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port)
}

// newTestServer creates a server that streams sess through conn.
func newTestServer(t testing.TB, conn *fakeConn, sess Session, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{
		WithLogger(testutils.TestLoggerSys(t, "SCSV")),
		WithReportStatsInterval(0),
	}, opts...)
	s, err := New(conn, sess, opts...)
	assert.NilErr(t, err)
	t.Cleanup(conn.Close)
	return s
}

// runTestServer runs the server in a goroutine and returns a chan where the
// result of Run() is written.
func runTestServer(ctx context.Context, s *Server) chan error {
	errChan := make(chan error, 1)
	go func() { errChan <- s.Run(ctx) }()
	return errChan
}

// TestHumanFormatting tests the helpers used to format the stats log line.
func TestHumanFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		got  string
		want string
	}{
		{got: hbytes(0), want: "0B"},
		{got: hbytes(999), want: "999B"},
		{got: hbytes(1500), want: "1.50KB"},
		{got: hbytes(2_340_000), want: "2.34MB"},
		{got: hcount(12), want: "12"},
		{got: hcount(1500), want: "1.50K"},
		{got: hrate(12.5), want: "12.50"},
		{got: hrate(3e9), want: "3.00G"},
		{got: hrate(5e18), want: "5000000.00T"},
	}

	for i, tc := range tests {
		if tc.got != tc.want {
			t.Fatalf("case %d: got %q, want %q", i, tc.got, tc.want)
		}
	}
}
