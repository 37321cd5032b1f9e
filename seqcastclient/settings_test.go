package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/companyzero/seqcast/internal/assert"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), appName+".conf")
	assert.NilErr(t, os.WriteFile(fname, []byte(contents), 0o600))
	return fname
}

// TestObtainSettingsArgs tests parsing of the positional arguments.
func TestObtainSettingsArgs(t *testing.T) {
	t.Parallel()

	cfgFile := writeConfig(t, "")
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{{
		name:    "no args",
		args:    []string{"-cfg", cfgFile},
		wantErr: errConfiguration,
	}, {
		name:    "missing port",
		args:    []string{"-cfg", cfgFile, "localhost"},
		wantErr: errConfiguration,
	}, {
		name:    "zero port",
		args:    []string{"-cfg", cfgFile, "localhost", "0"},
		wantErr: errConfiguration,
	}, {
		name:    "bad port",
		args:    []string{"-cfg", cfgFile, "localhost", "http"},
		wantErr: errConfiguration,
	}, {
		name:    "empty host",
		args:    []string{"-cfg", cfgFile, "", "9000"},
		wantErr: errConfiguration,
	}, {
		name:    "missing explicit config",
		args:    []string{"-cfg", filepath.Join(t.TempDir(), "none.conf"), "localhost", "9000"},
		wantErr: errConfiguration,
	}, {
		name:    "version",
		args:    []string{"-version"},
		wantErr: errCmdDone,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := obtainSettings(tc.args, &out)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

// TestObtainSettingsDefaults tests the settings used with an empty config
// file.
func TestObtainSettingsDefaults(t *testing.T) {
	t.Parallel()

	cfgFile := writeConfig(t, "")
	var out bytes.Buffer
	s, err := obtainSettings([]string{"-cfg", cfgFile, "example.com", "9000"}, &out)
	assert.NilErr(t, err)
	want := &settings{
		Host:                 "example.com",
		Port:                 9000,
		HandshakeInterval:    100 * time.Millisecond,
		MaxHandshakeInterval: 2 * time.Second,
		HandshakeAttempts:    20,
		SilenceTimeout:       time.Second,
		PrintPackets:         true,
		DebugLevel:           "warn",
	}
	assert.DeepEqual(t, s, want)
}

// TestObtainSettingsConfigFile tests values are loaded from the config file.
func TestObtainSettingsConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgFile := writeConfig(t, `
handshakeinterval=50ms
maxhandshakeinterval=1s
handshakeattempts=0
silencetimeout=3s
printpackets=false
rcvbuf=4096

[log]
logfile=`+filepath.Join(dir, "client.log")+`
debuglevel=trace
`)

	var out bytes.Buffer
	s, err := obtainSettings([]string{"-cfg", cfgFile, "127.0.0.1", "9000"}, &out)
	assert.NilErr(t, err)
	assert.DeepEqual(t, s.HandshakeInterval, 50*time.Millisecond)
	assert.DeepEqual(t, s.MaxHandshakeInterval, time.Second)
	assert.DeepEqual(t, s.HandshakeAttempts, 0)
	assert.DeepEqual(t, s.SilenceTimeout, 3*time.Second)
	assert.BoolIs(t, s.PrintPackets, false)
	assert.DeepEqual(t, s.RcvBuf, 4096)
	assert.DeepEqual(t, s.LogFile, filepath.Join(dir, "client.log"))
	assert.DeepEqual(t, s.DebugLevel, "trace")
}

// TestObtainSettingsInvalidConfig tests invalid config values are rejected.
func TestObtainSettingsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []string{
		"silencetimeout=0s",
		"silencetimeout=never",
		"handshakeattempts=-1",
		"handshakeattempts=lots",
	}

	for _, contents := range tests {
		t.Run(contents, func(t *testing.T) {
			cfgFile := writeConfig(t, contents)
			var out bytes.Buffer
			_, err := obtainSettings([]string{"-cfg", cfgFile, "localhost", "9000"}, &out)
			assert.ErrorIs(t, err, errConfiguration)
		})
	}
}
