// Package console abstracts the local terminal used by the interactive
// shell: switching it into raw mode and reading keystrokes with a bounded
// wait.
package console

import (
	"errors"
	"io"
	"time"
)

var ErrNotTerminal = errors.New("console: standard input is not a terminal")

// Guard restores the terminal mode that was active before EnterRaw.
type Guard interface {
	Release() error
}

type Terminal interface {
	// Read is a blocking read of line oriented input.
	io.Reader
	// EnterRaw switches to byte at a time input without local echo or line
	// editing. Output processing is left alone.
	EnterRaw() (Guard, error)
	// ReadInput waits up to timeout for input. It returns 0, nil when nothing
	// arrived and io.EOF once the input is closed.
	ReadInput(buf []byte, timeout time.Duration) (int, error)
}

type guardFunc func() error

func (g guardFunc) Release() error { return g() }
