//go:build !unix && !windows

package multicast

func setReuseAddr(fd uintptr) error {
	return nil
}
