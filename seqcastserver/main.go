package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/companyzero/seqcast/internal/version"
	"github.com/companyzero/seqcast/lockfile"
	seqcastserver "github.com/companyzero/seqcast/seqcast/server"
	"github.com/companyzero/seqcast/seqcast/transport"
)

func realMain() error {
	// Settings.
	cfg, err := obtainSettings(os.Args[1:], os.Stderr)
	if err != nil {
		return err
	}

	// Log.
	logBackend, err := newLogBackend(os.Stdout, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logBackend.Close()
	log, err := logBackend.logger("SCSV", cfg.DebugLevel)
	if err != nil {
		return err
	}
	log.Infof("Running %s version %s", appName, version.String())

	// Main context.
	errMainCtxCanceled := errors.New("main context canceled")
	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, mainCancel := context.WithCancelCause(context.Background())
	go func() {
		<-sigCtx.Done()
		log.Infof("Interrupt detected. Shutting down server.")
		mainCancel(errMainCtxCanceled)
	}()

	// Only one server may stream from a given port.
	if cfg.Port != 0 {
		lockPath := filepath.Join(cfg.RootDir, fmt.Sprintf("%s-%d.lock", appName, cfg.Port))
		lockCtx, lockCancel := context.WithTimeout(ctx, time.Second)
		lf, err := lockfile.Acquire(lockCtx, lockPath,
			fmt.Sprintf("Port=%d", cfg.Port))
		lockCancel()
		if err != nil {
			return fmt.Errorf("unable to acquire lock file %s (is "+
				"another server running on port %d?): %w", lockPath,
				cfg.Port, err)
		}
		defer lf.Close()
	}

	// Socket.
	conn, err := transport.ListenHost(ctx, cfg.BindHost, cfg.Port)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := setupKernelUDPBuffer(conn, cfg.RcvBuf, log); err != nil {
		return err
	}
	log.Infof("Listening on %s", conn.LocalAddr())

	// Server.
	sess, err := seqcastserver.NewSession(cfg.PacketCount, cfg.Delay)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfiguration, err)
	}
	opts := []seqcastserver.Option{
		seqcastserver.WithLogger(log),
		seqcastserver.WithMinClients(cfg.MinClients),
		seqcastserver.WithMaxAdmissionWait(cfg.MaxAdmissionWait),
		seqcastserver.WithPrometheusListenAddr(cfg.ListenPrometheus),
		seqcastserver.WithReportStatsInterval(cfg.StatsInterval),
		seqcastserver.WithClientAdmittedCallback(func(addr netip.AddrPort, nextSeq uint32) {
			if nextSeq > 0 {
				log.Infof("Client %s joined late and will miss the "+
					"first %d packets", addr, nextSeq)
			}
		}),
	}
	server, err := seqcastserver.New(conn, sess, opts...)
	if err != nil {
		return err
	}

	err = server.Run(ctx)
	if errors.Is(err, context.Canceled) && context.Cause(ctx) == errMainCtxCanceled {
		// Ignore graceful shutdown error.
		return nil
	}
	if err != nil {
		return err
	}

	log.Infof("Packets sent to %d clients. Terminating.", server.Registry().Len())
	return nil
}

func main() {
	err := realMain()
	if errors.Is(err, errCmdDone) {
		return
	}
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
