package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kevmo314/go-u3vterm/pkg/console"
)

// Interactive modes.
const (
	ModeLine = 1
	ModeRaw  = 2
)

// EscapeKey (Ctrl+]) leaves raw mode without being sent to the device.
const EscapeKey = 0x1D

const (
	warmupIdle    = 50 * time.Millisecond
	warmupMaxWait = 500 * time.Millisecond

	inputPollTimeout = 20 * time.Millisecond
	outputPollPeriod = 10 * time.Millisecond
	outputPollWindow = 10 * time.Millisecond

	initialDirectory = "cd /root"
)

// SelectMode returns the interactive mode to run. Firmware below
// MinV2Version only supports line mode. Any mode other than ModeLine runs the
// raw loop.
func SelectMode(requested int, version uint32) int {
	if requested != ModeLine && version < MinV2Version {
		return ModeLine
	}
	return requested
}

// ResolveMode initializes the session and picks the mode the firmware can
// run, logging a warning when it has to fall back.
func (s *Session) ResolveMode(requested int) (int, error) {
	if err := s.Initialize(); err != nil {
		return 0, err
	}
	mode := SelectMode(requested, s.version)
	if mode != requested {
		s.log.Warn("firmware below minimum for raw mode, falling back to line mode",
			zap.String("version", fmt.Sprintf("0x%x", s.version)),
			zap.String("min_version", fmt.Sprintf("0x%x", MinV2Version)))
	}
	return mode, nil
}

// Interactive runs the interactive shell on con until the user leaves it or
// input ends.
func (s *Session) Interactive(mode int, con console.Terminal) error {
	if mode == ModeLine {
		return s.lineLoop(con)
	}
	return s.rawLoop(con)
}

// greet prints the banner, flushes pending output and moves the remote
// shell into its working directory.
func (s *Session) greet() error {
	if err := s.EnsureSession(); err != nil {
		return err
	}
	fmt.Fprintf(s.stdout, "Interactive shell ready (firmware version 0x%x). Type 'exit' to quit.\n", s.version)

	warmup, err := s.DrainOutput(warmupIdle, warmupMaxWait)
	if err != nil {
		s.log.Warn("warmup drain failed", zap.Error(err))
	}
	if len(warmup) > 0 {
		if _, err := s.stdout.Write(warmup); err != nil {
			return fmt.Errorf("write warmup output: %w", err)
		}
	}
	if err := s.SendCommand(initialDirectory); err != nil {
		return err
	}
	return s.drainTo(DefaultDrainIdle, DefaultDrainMaxWait)
}

// runFileVerb runs a file transfer from an interactive loop. Failures are
// printed and the loop carries on.
func (s *Session) runFileVerb(line string) {
	_, err := s.HandleFileCommand(line)
	if err = s.reportUsage(err); err != nil {
		fmt.Fprintln(s.stderr, err)
	}
}

// lineLoop is the line mode shell for firmware without raw byte support.
func (s *Session) lineLoop(con console.Terminal) error {
	if err := s.greet(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(con)
	for {
		if !scanner.Scan() {
			fmt.Fprintln(s.stdout)
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "exit" || line == "quit" {
			return nil
		}
		if IsFileCommand(line) {
			s.runFileVerb(line)
			// refresh the prompt
			line = " "
		}
		if err := s.SendCommand(line); err != nil {
			return err
		}
		if err := s.drainTo(DefaultDrainIdle, DefaultDrainMaxWait); err != nil {
			return err
		}
	}
}

// rawLoop relays keystrokes byte by byte and interleaves short output
// drains, intercepting exit, file transfer verbs and EscapeKey locally.
func (s *Session) rawLoop(con console.Terminal) (err error) {
	if err := s.greet(); err != nil {
		return err
	}
	guard, err := con.EnterRaw()
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer func() { err = multierr.Append(err, guard.Release()) }()

	var (
		in       = make([]byte, 256)
		line     lineBuffer
		lastPoll time.Time
	)
	for {
		n, rerr := con.ReadInput(in, inputPollTimeout)
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read input: %w", rerr)
		}
		if n > 0 {
			done, err := s.relayInput(in[:n], &line)
			if err != nil || done {
				return err
			}
		}

		if now := s.clock.Now(); now.Sub(lastPoll) >= outputPollPeriod {
			if err := s.drainTo(outputPollWindow, outputPollWindow); err != nil {
				return err
			}
			lastPoll = now
		}
	}
}

// relayInput forwards one batch of keystrokes. done is true when the user
// asked to leave.
func (s *Session) relayInput(in []byte, line *lineBuffer) (done bool, err error) {
	out := make([]byte, 0, len(in))
	for _, ch := range in {
		switch {
		case ch == EscapeKey:
			done = true
			continue
		case ch == '\r' || ch == '\n':
			text := line.take()
			if text == "exit" {
				out = append(out, '\b', '\b', '\b', '\b')
				if err := s.writeInput(out); err != nil {
					return true, err
				}
				return true, nil
			}
			if IsFileCommand(text) {
				out = append(out, erase(len(text))...)
				out = append(out, '\n')
				if err := s.writeInput(out); err != nil {
					return false, err
				}
				out = out[:0]
				fmt.Fprintln(s.stdout)
				s.runFileVerb(text)
				continue
			}
		case ch == 0x7f || ch == '\b':
			line.pop()
		case ch >= 0x20 && ch < 0x7f:
			line.push(ch)
		}
		out = append(out, ch)
	}
	if len(out) > 0 {
		if err := s.writeInput(out); err != nil {
			return done, err
		}
	}
	return done, nil
}

func erase(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = '\b'
	}
	return b
}

// lineBuffer shadows the line being typed on the remote shell.
type lineBuffer struct {
	buf []byte
}

func (l *lineBuffer) push(ch byte) { l.buf = append(l.buf, ch) }

func (l *lineBuffer) pop() {
	if len(l.buf) > 0 {
		l.buf = l.buf[:len(l.buf)-1]
	}
}

func (l *lineBuffer) take() string {
	s := string(l.buf)
	l.buf = l.buf[:0]
	return s
}
