//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package multicast

import "errors"

var errNoReusePort = errors.New("SO_REUSEPORT is not available on this platform")

func setReusePort(fd uintptr) (OptionStatus, error) {
	return OptionUnsupported, errNoReusePort
}
