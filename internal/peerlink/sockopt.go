package peerlink

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl returns a net.ListenConfig control function that sets
// SO_REUSEADDR and, when sendBuf is positive, SO_SNDBUF
func socketControl(sendBuf int) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
				opErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
				return
			}
			if sendBuf > 0 {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sendBuf); err != nil {
					opErr = fmt.Errorf("set SO_SNDBUF to %d: %w", sendBuf, err)
				}
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}
