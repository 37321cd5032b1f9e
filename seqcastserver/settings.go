package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/companyzero/seqcast/internal/version"
	seqcastserver "github.com/companyzero/seqcast/seqcast/server"
	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
	strduration "github.com/xhit/go-str2duration/v2"
)

const (
	appName     = "seqcastserver"
	maxLogFiles = 100
)

var (
	// errCmdDone is returned when the command line only requested
	// information (help, version) and the process should exit cleanly.
	errCmdDone = errors.New("cmd done")

	errConfiguration = errors.New("configuration error")
)

type settings struct {
	Port  uint16        // port to bind to
	Delay time.Duration // interval between packets

	RootDir          string
	PacketCount      uint32
	MinClients       int
	BindHost         string // empty binds all interfaces
	RcvBuf           int    // kernel receive buffer (0 keeps the OS default)
	MaxAdmissionWait time.Duration
	ListenPrometheus string // listen addr for metrics

	// log section
	LogFile       string // log filename
	DebugLevel    string // debug level config string
	StatsInterval time.Duration
}

func defaultRootDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

func defaultSettings(rootDir string) *settings {
	return &settings{
		RootDir:          rootDir,
		PacketCount:      seqcastserver.DefaultPacketCount,
		MinClients:       1,
		MaxAdmissionWait: seqcastserver.DefaultMaxAdmissionWait,
		LogFile:          filepath.Join(rootDir, "logs", appName+".log"),
		DebugLevel:       "info",
		StatsInterval:    10 * time.Second,
	}
}

// parseDelay parses the inter-packet delay. Plain numbers are seconds.
func parseDelay(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || secs > math.MaxInt64/float64(time.Second) {
			return 0, fmt.Errorf("invalid delay %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := strduration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: %v", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid delay %q", s)
	}
	return d, nil
}

// obtainSettings parses the command line arguments and the config file.
func obtainSettings(args []string, out io.Writer) (*settings, error) {
	rootDir := defaultRootDir()
	defaultCfgFile := filepath.Join(rootDir, appName+".conf")

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <port> <delay>\n\n", appName)
		fmt.Fprintf(fs.Output(), "Streams numbered packets to every client "+
			"that requests admission on <port>,\none packet every <delay> "+
			"(seconds, or a duration such as 500ms).\n\nFlags:\n")
		fs.PrintDefaults()
	}
	filename := fs.String("cfg", defaultCfgFile, "config file")
	versionFlag := fs.Bool("version", false, "show version")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errCmdDone
		}
		return nil, fmt.Errorf("%w: %v", errConfiguration, err)
	}

	if *versionFlag {
		fmt.Fprintf(out, "%s %s (%s) protocol version %d\n", appName,
			version.String(), runtime.Version(), version.ProtocolVersion)
		return nil, errCmdDone
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected 2 arguments, got %d",
			errConfiguration, fs.NArg())
	}
	port, err := strconv.ParseUint(fs.Arg(0), 10, 16)
	if err != nil {
		fs.Usage()
		return nil, fmt.Errorf("%w: invalid port %q", errConfiguration, fs.Arg(0))
	}
	delay, err := parseDelay(fs.Arg(1))
	if err != nil {
		fs.Usage()
		return nil, fmt.Errorf("%w: %v", errConfiguration, err)
	}

	s := defaultSettings(rootDir)
	s.Port = uint16(port)
	s.Delay = delay

	// The default config file is optional.
	cfgFile, err := homedir.Expand(*filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfiguration, err)
	}
	_, statErr := os.Stat(cfgFile)
	if *filename != defaultCfgFile || statErr == nil {
		if err := s.load(cfgFile); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errConfiguration, cfgFile, err)
		}
	}

	return s, nil
}

// load fills the settings from the given INI config file.
func (s *settings) load(filename string) error {
	cfg, err := ini.LoadFile(filename)
	if err != nil {
		return err
	}

	get := func(s *string, section, field string) bool {
		v, ok := cfg.Get(section, field)
		if ok {
			*s = v
		}
		return ok
	}
	getInt := func(i *int, section, field string) error {
		s, ok := cfg.Get(section, field)
		if !ok {
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", field, err)
		}
		*i = v
		return nil
	}
	getDuration := func(d *time.Duration, section, field string) error {
		s, ok := cfg.Get(section, field)
		if !ok {
			return nil
		}
		if s == "" {
			// Disabled.
			*d = 0
			return nil
		}
		v, err := strduration.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("unable to parse %s duration: %v", field, err)
		}
		*d = v
		return nil
	}

	get(&s.BindHost, "", "bindhost")
	get(&s.ListenPrometheus, "", "listenprometheus")
	get(&s.LogFile, "log", "logfile")
	get(&s.DebugLevel, "log", "debuglevel")

	var rawCount string
	if get(&rawCount, "", "packetcount") {
		count, err := strconv.ParseUint(rawCount, 10, 32)
		if err != nil || count == 0 {
			return fmt.Errorf("invalid packetcount %q", rawCount)
		}
		s.PacketCount = uint32(count)
	}

	if err := getInt(&s.MinClients, "", "minclients"); err != nil {
		return err
	}
	if s.MinClients < 1 {
		return fmt.Errorf("minclients must be at least 1")
	}
	if err := getInt(&s.RcvBuf, "", "rcvbuf"); err != nil {
		return err
	}
	if err := getDuration(&s.MaxAdmissionWait, "", "maxadmissionwait"); err != nil {
		return err
	}
	if err := getDuration(&s.StatsInterval, "log", "statsinterval"); err != nil {
		return err
	}

	if s.LogFile != "" {
		logFile, err := homedir.Expand(s.LogFile)
		if err != nil {
			return err
		}
		s.LogFile = logFile
	}

	return nil
}
