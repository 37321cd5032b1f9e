// Package logutil holds slog helpers.
package logutil

import (
	"net/netip"

	"github.com/decred/slog"
)

// prefixLogger tags every message with a fixed prefix, usually the remote
// address a client or server is talking to.
type prefixLogger struct {
	slog.Logger
	prefix string
}

func (p *prefixLogger) f(format string) string {
	return p.prefix + " " + format
}

// v prepends the prefix as its own operand. The backend already separates
// operands with a space.
func (p *prefixLogger) v(args []interface{}) []interface{} {
	return append([]interface{}{p.prefix}, args...)
}

func (p *prefixLogger) Tracef(format string, params ...interface{}) {
	p.Logger.Tracef(p.f(format), params...)
}

func (p *prefixLogger) Debugf(format string, params ...interface{}) {
	p.Logger.Debugf(p.f(format), params...)
}

func (p *prefixLogger) Infof(format string, params ...interface{}) {
	p.Logger.Infof(p.f(format), params...)
}

func (p *prefixLogger) Warnf(format string, params ...interface{}) {
	p.Logger.Warnf(p.f(format), params...)
}

func (p *prefixLogger) Errorf(format string, params ...interface{}) {
	p.Logger.Errorf(p.f(format), params...)
}

func (p *prefixLogger) Criticalf(format string, params ...interface{}) {
	p.Logger.Criticalf(p.f(format), params...)
}

func (p *prefixLogger) Trace(v ...interface{})    { p.Logger.Trace(p.v(v)...) }
func (p *prefixLogger) Debug(v ...interface{})    { p.Logger.Debug(p.v(v)...) }
func (p *prefixLogger) Info(v ...interface{})     { p.Logger.Info(p.v(v)...) }
func (p *prefixLogger) Warn(v ...interface{})     { p.Logger.Warn(p.v(v)...) }
func (p *prefixLogger) Error(v ...interface{})    { p.Logger.Error(p.v(v)...) }
func (p *prefixLogger) Critical(v ...interface{}) { p.Logger.Critical(p.v(v)...) }

// PrefixLogger returns a logger that prepends prefix to every message.
// Level changes apply to the wrapped logger.
func PrefixLogger(log slog.Logger, prefix string) slog.Logger {
	if prefix == "" {
		return log
	}
	return &prefixLogger{Logger: log, prefix: prefix}
}

// PeerLogger returns a logger that tags every message with the remote addr.
func PeerLogger(log slog.Logger, addr netip.AddrPort) slog.Logger {
	return PrefixLogger(log, "["+addr.String()+"]")
}
