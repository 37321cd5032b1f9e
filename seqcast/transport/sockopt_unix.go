//go:build unix

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

func kernelReadBufferSize(c *net.UDPConn) (int, error) {
	sysConn, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}

	var size int
	var getErr error
	err = sysConn.Control(func(fd uintptr) {
		size, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	})
	if err != nil {
		return 0, err
	}
	if getErr != nil {
		return 0, getErr
	}
	return size, nil
}
