//go:build !windows

package probe

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isConnectionRefused reports whether the peer answered the SYN with a RST
func isConnectionRefused(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED)
}
