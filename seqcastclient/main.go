package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/companyzero/seqcast/internal/version"
	"github.com/companyzero/seqcast/rpc"
	seqcastclient "github.com/companyzero/seqcast/seqcast/client"
	"github.com/companyzero/seqcast/seqcast/transport"
)

// printSummary writes the final accounting of the stream.
func printSummary(w io.Writer, summ seqcastclient.Summary) {
	fmt.Fprintln(w, "Stream finished!")
	fmt.Fprintln(w, "Packets received:", summ.Arrived)
	fmt.Fprintln(w, "Packets lost:", summ.Lost)
	fmt.Fprintln(w, "Packets out of order:", len(summ.OutOfOrder))
	fmt.Fprintln(w, "Out of order packets:", fmt.Sprint(summ.OutOfOrder))
	if summ.Duplicates > 0 || summ.Discarded > 0 {
		fmt.Fprintf(w, "Duplicate packets: %d, discarded datagrams: %d\n",
			summ.Duplicates, summ.Discarded)
	}
}

// packetPrinter returns a handler that prints every received packet.
func packetPrinter(w io.Writer) seqcastclient.PacketHandler {
	return func(pkt rpc.Packet, obs seqcastclient.Observation) {
		switch obs {
		case seqcastclient.Accepted:
			fmt.Fprintf(w, "Received packet %d: %s\n", pkt.Sequence, pkt.Payload)
		default:
			fmt.Fprintf(w, "Received packet %d (%s)\n", pkt.Sequence, obs)
		}
	}
}

func realMain() error {
	// Settings.
	cfg, err := obtainSettings(os.Args[1:], os.Stderr)
	if err != nil {
		return err
	}

	// Log.
	logBackend, err := newLogBackend(os.Stderr, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logBackend.Close()
	log, err := logBackend.logger("SCCL", cfg.DebugLevel)
	if err != nil {
		return err
	}
	log.Debugf("Running %s version %s", appName, version.String())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Socket.
	serverAddr, err := transport.ResolveAddr(ctx, cfg.Host, cfg.Port)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfiguration, err)
	}
	conn, err := transport.Listen(netip.AddrPort{})
	if err != nil {
		return err
	}
	defer conn.Close()
	if cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(cfg.RcvBuf); err != nil {
			return fmt.Errorf("unable to set receive buffer size: %w", err)
		}
	}
	log.Infof("Joining stream of %s from %s", serverAddr, conn.LocalAddr())

	// Client.
	opts := []seqcastclient.Option{
		seqcastclient.WithLogger(log),
		seqcastclient.WithHandshakeInterval(cfg.HandshakeInterval, cfg.MaxHandshakeInterval),
		seqcastclient.WithMaxHandshakeAttempts(cfg.HandshakeAttempts),
		seqcastclient.WithSilenceTimeout(cfg.SilenceTimeout),
		seqcastclient.WithPrometheusListenAddr(cfg.ListenPrometheus),
	}
	if cfg.PrintPackets {
		opts = append(opts, seqcastclient.WithPacketHandler(packetPrinter(os.Stdout)))
	}
	client, err := seqcastclient.New(conn, serverAddr, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfiguration, err)
	}

	summ, err := client.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, summ)
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
