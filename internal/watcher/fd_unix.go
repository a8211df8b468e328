//go:build unix

package watcher

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const supported = true

func dup(fd int) (int, error) {
	return unix.Dup(fd)
}

func closeFd(fd int) {
	_ = unix.Close(fd)
}

// rawFd returns the descriptor behind f without switching it to blocking
// mode the way f.Fd does.
func rawFd(f *os.File) (int, error) {
	conn, err := f.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := conn.Control(func(raw uintptr) { fd = int(raw) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// openPTY returns the master as the read end and a raw-mode slave as the
// write end, so no CRLF translation happens on the way through.
func openPTY() (*os.File, *os.File, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open pty: %w", err)
	}

	slaveFd, err := rawFd(slave)
	if err == nil {
		_, err = term.MakeRaw(slaveFd)
	}
	if err != nil {
		master.Close()
		slave.Close()
		return nil, nil, fmt.Errorf("set pty %s to raw mode: %w", slave.Name(), err)
	}
	return master, slave, nil
}

// DupFile returns a new *os.File on a duplicate of fd. Writes to it keep
// reaching the original destination after fd itself is redirected.
func DupFile(fd int, name string) (*os.File, error) {
	dupFd, err := unix.Dup(fd)
	if err != nil {
		return nil, fmt.Errorf("dup fd %d: %w", fd, err)
	}
	unix.CloseOnExec(dupFd)
	return os.NewFile(uintptr(dupFd), name), nil
}
