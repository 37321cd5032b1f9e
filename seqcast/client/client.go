package seqcastclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/companyzero/seqcast/internal/logutil"
	"github.com/companyzero/seqcast/rpc"
	"github.com/companyzero/seqcast/seqcast/internal/seqtracker"
	"github.com/companyzero/seqcast/seqcast/transport"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Summary is the accounting of a received stream.
type Summary = seqtracker.Summary

// Observation is the result of receiving a single packet.
type Observation = seqtracker.Observation

const (
	Accepted  = seqtracker.Accepted
	Duplicate = seqtracker.Duplicate
	Discarded = seqtracker.Discarded
)

// PacketHandler is the signature for callbacks called for every packet
// received from the server. The payload is only valid for the duration of the
// call.
type PacketHandler func(pkt rpc.Packet, obs Observation)

// config holds client config data.
type config struct {
	log                  slog.Logger
	handshakeInterval    time.Duration
	maxHandshakeInterval time.Duration
	maxHandshakeAttempts int
	silenceTimeout       time.Duration
	packetHandler        PacketHandler
	promAddr             string
}

// defaultConfig initializes the default config for a client.
func defaultConfig() config {
	return config{
		log:                  slog.Disabled,
		handshakeInterval:    100 * time.Millisecond,
		maxHandshakeInterval: 2 * time.Second,
		maxHandshakeAttempts: 20,
		silenceTimeout:       time.Second,
	}
}

// Option is a functional client config option.
type Option func(c *config)

// WithLogger sets the logger for the client.
func WithLogger(log slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithHandshakeInterval sets the time to wait for the first admission reply
// and the cap on the wait after later attempts. The wait doubles after every
// unanswered attempt.
//
// A zero interval sends a single admission request and waits for the reply
// indefinitely.
func WithHandshakeInterval(interval, maxInterval time.Duration) Option {
	return func(c *config) {
		c.handshakeInterval = interval
		c.maxHandshakeInterval = max(interval, maxInterval)
	}
}

// WithMaxHandshakeAttempts sets the number of admission requests sent before
// giving up. Zero means unlimited attempts.
func WithMaxHandshakeAttempts(n int) Option {
	return func(c *config) {
		c.maxHandshakeAttempts = n
	}
}

// WithSilenceTimeout sets how long the client waits for the next packet
// before considering the stream finished.
func WithSilenceTimeout(d time.Duration) Option {
	return func(c *config) {
		c.silenceTimeout = d
	}
}

// WithPacketHandler sets a callback called for every received packet.
func WithPacketHandler(h PacketHandler) Option {
	return func(c *config) {
		c.packetHandler = h
	}
}

// WithPrometheusListenAddr sets the address to offer Prometheus metrics
// endpoint collection.
func WithPrometheusListenAddr(addr string) Option {
	return func(c *config) {
		c.promAddr = addr
	}
}

// Client joins a single stream from a server.
type Client struct {
	cfg    config
	log    slog.Logger
	conn   transport.PacketConn
	server netip.AddrPort
	stats  *stats
}

// New creates a new client that joins the stream of the server at the given
// address through conn.
func New(conn transport.PacketConn, server netip.AddrPort, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.silenceTimeout <= 0 {
		return nil, errInvalidSilenceTimeout
	}
	if cfg.handshakeInterval < 0 {
		return nil, errNegativeInterval
	}

	server = netip.AddrPortFrom(server.Addr().Unmap(), server.Port())
	return &Client{
		cfg:    cfg,
		log:    logutil.PeerLogger(cfg.log, server),
		conn:   conn,
		server: server,
		stats:  newStats(cfg.promAddr != ""),
	}, nil
}

// runPrometheusListener runs the Prometheus metrics endpoint in the given
// address.
func (c *Client) runPrometheusListener(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.stats.reg, promhttp.HandlerOpts{}))
	hs := http.Server{
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}
	c.log.Infof("Exposing prometheus metrics on %s", addr)
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}()
	err := hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Run performs the handshake with the server and then receives the stream
// until the server goes silent.
func (c *Client) Run(ctx context.Context) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var summ Summary
	var streamErr error
	g.Go(func() error {
		defer cancel()
		var count uint32
		count, streamErr = c.Handshake(gctx)
		if streamErr != nil {
			return streamErr
		}
		summ, streamErr = c.Receive(gctx, count)
		return streamErr
	})

	if c.cfg.promAddr != "" {
		g.Go(func() error { return c.runPrometheusListener(gctx, c.cfg.promAddr) })
	}

	err := g.Wait()
	switch {
	case streamErr == nil:
		return summ, nil
	case ctx.Err() != nil:
		return summ, ctx.Err()
	default:
		return summ, err
	}
}
