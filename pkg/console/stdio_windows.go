package console

import (
	"errors"
	"os"
	"time"

	"golang.org/x/term"
)

var errNoPoll = errors.New("console: timed input is not supported on windows")

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
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return guardFunc(func() error { return term.Restore(fd, state) }), nil
}

func (s *Stdio) ReadInput(buf []byte, timeout time.Duration) (int, error) {
	return 0, errNoPoll
}
