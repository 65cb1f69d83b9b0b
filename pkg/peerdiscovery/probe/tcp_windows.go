//go:build windows

package probe

import (
	"errors"
	"syscall"
)

// wsaeConnRefused is WSAECONNREFUSED
const wsaeConnRefused = syscall.Errno(10061)

// isConnectionRefused reports whether the peer answered the SYN with a RST
func isConnectionRefused(err error) bool {
	return errors.Is(err, wsaeConnRefused) || errors.Is(err, syscall.ECONNREFUSED)
}
