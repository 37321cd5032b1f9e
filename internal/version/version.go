// Package version reports the version of the running binary from its build
// info.
package version

import (
	"runtime/debug"
)

// ProtocolVersion is the version of the datagram protocol spoken by the
// server and client.
const ProtocolVersion = 1

const unknown = "(unknown version)"

// String returns the module version of the binary, or the VCS revision it was
// built from when running a development build.
func String() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return unknown
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	var vcs, revision string
	var modified bool
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs":
			vcs = bs.Value
		case "vcs.revision":
			revision = bs.Value
		case "vcs.modified":
			modified = bs.Value == "true"
		}
	}
	if vcs == "" {
		return unknown
	}
	if vcs == "git" && len(revision) > 9 {
		revision = revision[:9]
	}
	if modified {
		revision += "+dirty"
	}
	return revision
}
