//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package multicast

import "golang.org/x/sys/unix"

// setReusePort enables SO_REUSEPORT. Kernels that predate the option
// (Linux < 3.9) reject it, which is reported as unsupported.
func setReusePort(fd uintptr) (OptionStatus, error) {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return OptionUnsupported, err
	}
	return OptionEnabled, nil
}
