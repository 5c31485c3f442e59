//go:build !windows

package console

import (
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Stdio is the process terminal on stdin.
type Stdio struct {
	in *os.File
}

func NewStdio() *Stdio {
	return &Stdio{in: os.Stdin}
}

func (s *Stdio) Read(p []byte) (int, error) { return s.in.Read(p) }

func (s *Stdio) EnterRaw() (Guard, error) {
	fd := int(s.in.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.GetState(fd)
	if err != nil {
		return nil, err
	}
	if err := makeRaw(fd); err != nil {
		return nil, err
	}
	return &restoreGuard{fd: fd, state: state}, nil
}

func (s *Stdio) ReadInput(buf []byte, timeout time.Duration) (int, error) {
	fds := []unix.PollFd{{Fd: int32(s.in.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if fds[0].Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
		return 0, nil
	}
	read, err := s.in.Read(buf)
	if read == 0 && err == nil {
		return 0, io.EOF
	}
	return read, err
}

type restoreGuard struct {
	once  sync.Once
	fd    int
	state *term.State
	err   error
}

func (g *restoreGuard) Release() error {
	g.once.Do(func() { g.err = term.Restore(g.fd, g.state) })
	return g.err
}
