//go:build !unix

package watcher

import (
	"os"
)

const supported = false

func dup(int) (int, error)        { return -1, ErrUnsupported }
func dup2(int, int) error         { return ErrUnsupported }
func closeFd(int)                 {}
func rawFd(*os.File) (int, error) { return -1, ErrUnsupported }

func openPTY() (*os.File, *os.File, error) {
	return nil, nil, ErrUnsupported
}

// DupFile is not available on this platform; it returns the original
// file for fd 1 and 2 so logging keeps working.
func DupFile(fd int, name string) (*os.File, error) {
	switch fd {
	case 1:
		return os.Stdout, nil
	case 2:
		return os.Stderr, nil
	}
	return nil, ErrUnsupported
}
