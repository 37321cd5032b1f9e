//go:build !unix

package transport

import "net"

func kernelReadBufferSize(c *net.UDPConn) (int, error) {
	return 0, ErrKernelBufferUnsupported
}
