package transport

import "errors"

var (
	// ErrTimeout is returned by RecvFrom when no datagram arrived within
	// the requested timeout. It is a scheduling signal, not a failure.
	ErrTimeout = errors.New("receive timeout")

	// ErrTransportFailure wraps socket-level errors other than timeouts.
	ErrTransportFailure = errors.New("transport failure")

	// ErrKernelBufferUnsupported is returned when the size of the kernel
	// socket buffer cannot be queried on the current platform.
	ErrKernelBufferUnsupported = errors.New("kernel buffer size not available on this platform")
)
