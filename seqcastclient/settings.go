package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/companyzero/seqcast/internal/version"
	"github.com/jrick/flagfile"
	"github.com/mitchellh/go-homedir"
	strduration "github.com/xhit/go-str2duration/v2"
)

const (
	appName     = "seqcastclient"
	maxLogFiles = 10
)

var (
	// errCmdDone is returned when the command line only requested
	// information (help, version) and the process should exit cleanly.
	errCmdDone = errors.New("cmd done")

	errConfiguration = errors.New("configuration error")
)

type settings struct {
	Host string
	Port uint16

	HandshakeInterval    time.Duration
	MaxHandshakeInterval time.Duration
	HandshakeAttempts    int
	SilenceTimeout       time.Duration
	PrintPackets         bool
	RcvBuf               int
	ListenPrometheus     string

	// log section
	LogFile    string
	DebugLevel string
}

func defaultCfgFile() string {
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "."+appName, appName+".conf")
}

// obtainSettings parses the command line arguments and the config file.
func obtainSettings(args []string, out io.Writer) (*settings, error) {
	defaultCfg := defaultCfgFile()

	// Parse CLI arguments.
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <host> <port>\n\n", appName)
		fmt.Fprintf(fs.Output(), "Joins the packet stream of the server "+
			"at <host>:<port> and reports\nreceived, lost and out of "+
			"order packets.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	flagCfgFile := fs.String("cfg", defaultCfg, "Config file to load")
	flagVersion := fs.Bool("version", false, "Display current version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errCmdDone
		}
		return nil, fmt.Errorf("%w: %v", errConfiguration, err)
	}

	if *flagVersion {
		fmt.Fprintf(out, "%s %s (%s) protocol version %d\n", appName,
			version.String(), runtime.Version(), version.ProtocolVersion)
		return nil, errCmdDone
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected 2 arguments, got %d",
			errConfiguration, fs.NArg())
	}
	host := fs.Arg(0)
	if host == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: empty host", errConfiguration)
	}
	port, err := strconv.ParseUint(fs.Arg(1), 10, 16)
	if err != nil || port == 0 {
		fs.Usage()
		return nil, fmt.Errorf("%w: invalid port %q", errConfiguration, fs.Arg(1))
	}

	// Define config file flags.
	fs = flag.NewFlagSet("Config Options", flag.ContinueOnError)
	fs.SetOutput(out)
	flagHandshakeInterval := fs.String("handshakeinterval", "100ms", "Time to wait for the admission reply before resending the request")
	flagMaxHandshakeInterval := fs.String("maxhandshakeinterval", "2s", "Max time to wait for the admission reply")
	flagHandshakeAttempts := fs.Int("handshakeattempts", 20, "Number of admission requests before giving up (0 is unlimited)")
	flagSilenceTimeout := fs.String("silencetimeout", "1s", "Time without packets after which the stream is considered done")
	flagPrintPackets := fs.Bool("printpackets", true, "Print every received packet")
	flagRcvBuf := fs.Int("rcvbuf", 0, "Kernel receive buffer size (0 keeps the OS default)")
	flagListenPrometheus := fs.String("listenprometheus", "", "Address to expose prometheus metrics")
	flagLogFile := fs.String("log.logfile", "", "Log file location")
	flagDebugLevel := fs.String("log.debuglevel", "warn", "Debug Level")

	cfgFile, err := homedir.Expand(*flagCfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfiguration, err)
	}
	f, err := os.Open(cfgFile)
	switch {
	case errors.Is(err, os.ErrNotExist) && *flagCfgFile == defaultCfg:
		// The default config file is optional.
	case err != nil:
		return nil, fmt.Errorf("%w: %v", errConfiguration, err)
	default:
		parser := flagfile.Parser{
			ParseSections: true,
		}
		err := parser.Parse(f, fs)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errConfiguration, cfgFile, err)
		}
	}

	s := &settings{
		Host:              host,
		Port:              uint16(port),
		HandshakeAttempts: *flagHandshakeAttempts,
		PrintPackets:      *flagPrintPackets,
		RcvBuf:            *flagRcvBuf,
		ListenPrometheus:  *flagListenPrometheus,
		DebugLevel:        *flagDebugLevel,
	}
	durations := []struct {
		name string
		in   string
		out  *time.Duration
	}{
		{"handshakeinterval", *flagHandshakeInterval, &s.HandshakeInterval},
		{"maxhandshakeinterval", *flagMaxHandshakeInterval, &s.MaxHandshakeInterval},
		{"silencetimeout", *flagSilenceTimeout, &s.SilenceTimeout},
	}
	for _, d := range durations {
		*d.out, err = strduration.ParseDuration(d.in)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s %q: %v",
				errConfiguration, d.name, d.in, err)
		}
	}
	if s.SilenceTimeout <= 0 {
		return nil, fmt.Errorf("%w: silencetimeout must be positive", errConfiguration)
	}
	if s.HandshakeAttempts < 0 {
		return nil, fmt.Errorf("%w: handshakeattempts cannot be negative", errConfiguration)
	}
	if *flagLogFile != "" {
		s.LogFile, err = homedir.Expand(*flagLogFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errConfiguration, err)
		}
	}

	return s, nil
}
