package seqcastserver

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/companyzero/seqcast/rpc"
	"github.com/companyzero/seqcast/seqcast/transport"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// PayloadGenerator returns the payload of the packet with the given sequence
// number.
type PayloadGenerator func(seq uint32) []byte

// ClientAdmittedCallback is called when a new client is admitted. nextSeq is
// the sequence number of the first packet the client may receive.
type ClientAdmittedCallback func(addr netip.AddrPort, nextSeq uint32)

// RepeatedPayload returns a generator of payloads made of b repeated seq+1
// times. Lengths wrap around so payloads always fit in a datagram.
func RepeatedPayload(b byte) PayloadGenerator {
	return func(seq uint32) []byte {
		n := int(seq%rpc.MaxPacketPayloadSize) + 1
		return bytes.Repeat([]byte{b}, n)
	}
}

// config determines a server config.
type config struct {
	log slog.Logger

	// maxAdmissionWait caps the time each admission check blocks.
	maxAdmissionWait time.Duration

	// minClients is the number of clients that must be admitted before
	// any admission check is allowed to end.
	minClients int

	payloadGen PayloadGenerator
	admittedCb ClientAdmittedCallback
	promAddr   string

	// statsReportInterval is the interval to log stats. If zero, stats are
	// not logged.
	statsReportInterval time.Duration
}

// fillConfig fills a new config with the default config values, then applies
// all specified options.
func fillConfig(opts ...Option) config {
	cfg := config{
		log:                 slog.Disabled,
		maxAdmissionWait:    DefaultMaxAdmissionWait,
		minClients:          1,
		payloadGen:          RepeatedPayload('a'),
		statsReportInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option is a functional server config option.
type Option func(c *config)

// WithLogger sets up the server to use the logger. Logger MUST NOT be nil.
func WithLogger(l slog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithMaxAdmissionWait sets the cap on the time each admission check blocks
// waiting for new clients.
func WithMaxAdmissionWait(d time.Duration) Option {
	return func(c *config) {
		c.maxAdmissionWait = d
	}
}

// WithMinClients sets the number of clients that must be admitted before the
// first packet is sent.
func WithMinClients(n int) Option {
	return func(c *config) {
		c.minClients = n
	}
}

// WithPayloadGenerator sets the function that generates packet payloads.
func WithPayloadGenerator(gen PayloadGenerator) Option {
	return func(c *config) {
		c.payloadGen = gen
	}
}

// WithClientAdmittedCallback sets a callback called when new clients are
// admitted.
func WithClientAdmittedCallback(cb ClientAdmittedCallback) Option {
	return func(c *config) {
		c.admittedCb = cb
	}
}

// WithPrometheusListenAddr sets the address to offer Prometheus metrics
// endpoint collection.
func WithPrometheusListenAddr(addr string) Option {
	return func(c *config) {
		c.promAddr = addr
	}
}

// WithReportStatsInterval sets the interval to log stats. If set to zero,
// reporting is disabled.
func WithReportStatsInterval(interval time.Duration) Option {
	return func(c *config) {
		c.statsReportInterval = interval
	}
}

// Server streams a single session to all admitted clients.
type Server struct {
	cfg  config
	log  slog.Logger
	conn transport.PacketConn
	sess Session

	stats    *stats
	registry *Registry

	// reply is the pre-encoded admission reply.
	reply []byte

	// nextSeq is the sequence number of the next packet to be sent.
	nextSeq uint32
}

// New creates a new server that will stream sess through conn.
func New(conn transport.PacketConn, sess Session, opts ...Option) (*Server, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	cfg := fillConfig(opts...)
	if cfg.minClients < 1 {
		return nil, errInvalidMinClient
	}

	reply, err := rpc.Encode(rpc.AdmissionReply{Count: sess.Count})
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		log:      cfg.log,
		conn:     conn,
		sess:     sess,
		stats:    newStats(cfg.promAddr != ""),
		registry: NewRegistry(),
		reply:    reply,
	}, nil
}

// Registry returns the server's client registry. It must only be accessed
// after Run returns.
func (s *Server) Registry() *Registry {
	return s.registry
}

// runPrometheusListener runs the Prometheus metrics endpoint in the given
// address.
func (s *Server) runPrometheusListener(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	promHandler := promhttp.InstrumentMetricHandler(
		s.stats.reg, promhttp.HandlerFor(s.stats.reg, promhttp.HandlerOpts{}),
	)
	mux.Handle("/metrics", promHandler)
	hs := http.Server{
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}
	s.log.Infof("Exposing prometheus metrics on %s", addr)
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

// Run the session. Returns nil once every packet has been sent.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var bcastErr error
	g.Go(func() error {
		bcastErr = s.broadcast(gctx)
		cancel()
		return bcastErr
	})

	if s.cfg.promAddr != "" {
		g.Go(func() error { return s.runPrometheusListener(gctx, s.cfg.promAddr) })
	}
	g.Go(func() error { return s.runReportStatsLoop(gctx, s.cfg.statsReportInterval) })

	err := g.Wait()
	switch {
	case bcastErr == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}
