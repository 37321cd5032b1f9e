package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/companyzero/seqcast/seqcast/transport"
	"github.com/decred/slog"
)

// minKernelBufferSize is the kernel receive buffer size below which a
// warning is logged, as admission requests may be dropped by the kernel
// when many clients join at once.
const minKernelBufferSize = 128 * 1024

// setupKernelUDPBuffer applies the configured receive buffer size to the
// socket and checks the size of the resulting kernel buffer.
func setupKernelUDPBuffer(conn *transport.Conn, rcvBuf int, log slog.Logger) error {
	if rcvBuf > 0 {
		if err := conn.SetReadBuffer(rcvBuf); err != nil {
			return fmt.Errorf("unable to set receive buffer size of "+
				"%s to %d: %w", conn.LocalAddr(), rcvBuf, err)
		}
	}

	size, err := conn.KernelReadBufferSize()
	if errors.Is(err, transport.ErrKernelBufferUnsupported) {
		log.Debugf("Skipping kernel UDP buffer size check: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to query kernel for UDP "+
			"buffer size of listen addr %s: %v", conn.LocalAddr(), err)
	}
	log.Debugf("Kernel UDP receive buffer size is %d bytes", size)

	if size < minKernelBufferSize {
		log.Warnf("Kernel UDP buffer size for listen address %s "+
			"is small (%d bytes)", conn.LocalAddr(), size)
		switch runtime.GOOS {
		case "linux":
			log.Warnf("Use `sysctl -w net.core.{rmem_max,rmem_default}=size_in_bytes` " +
				"to set the UDP kernel buffer sizes on Linux")
		case "openbsd":
			log.Warnf("Use `sysctl net.inet.udp.recvspace=size_in_bytes` " +
				"to set the UDP kernel buffer sizes on OpenBSD")
		}
	}

	return nil
}
