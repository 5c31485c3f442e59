package console

import (
	"io"
	"time"
)

// Fake is a scripted Terminal. Each ReadInput call returns the next chunk of
// Input; an empty chunk behaves like a poll timeout. Read drains the same
// chunks as a byte stream. Both return io.EOF once the script is exhausted.
type Fake struct {
	Input [][]byte

	EnterErr   error
	ReleaseErr error

	Entered  int
	Released int
	Polls    int

	partial []byte
}

func NewFake(chunks ...string) *Fake {
	f := &Fake{}
	for _, c := range chunks {
		f.Input = append(f.Input, []byte(c))
	}
	return f
}

// Raw reports whether the fake is currently in raw mode.
func (f *Fake) Raw() bool { return f.Entered > f.Released }

func (f *Fake) EnterRaw() (Guard, error) {
	if f.EnterErr != nil {
		return nil, f.EnterErr
	}
	f.Entered++
	return guardFunc(func() error {
		f.Released++
		return f.ReleaseErr
	}), nil
}

func (f *Fake) ReadInput(buf []byte, _ time.Duration) (int, error) {
	f.Polls++
	if len(f.Input) == 0 {
		return 0, io.EOF
	}
	chunk := f.Input[0]
	n := copy(buf, chunk)
	if n < len(chunk) {
		f.Input[0] = chunk[n:]
	} else {
		f.Input = f.Input[1:]
	}
	return n, nil
}

func (f *Fake) Read(p []byte) (int, error) {
	for len(f.partial) == 0 {
		if len(f.Input) == 0 {
			return 0, io.EOF
		}
		f.partial, f.Input = f.Input[0], f.Input[1:]
	}
	n := copy(p, f.partial)
	f.partial = f.partial[n:]
	return n, nil
}
