package terminal

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kevmo314/go-u3vterm/pkg/poll"
)

const (
	DefaultDrainIdle    = 200 * time.Millisecond
	DefaultDrainMaxWait = 5 * time.Second

	drainPollInterval = 50 * time.Millisecond
)

// SendCommand writes text to the remote shell input, newline terminated, in
// chunks of at most the device chunk hint. It does not wait for output.
func (s *Session) SendCommand(text string) error {
	if err := s.EnsureSession(); err != nil {
		return err
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return s.writeInput([]byte(text))
}

func (s *Session) writeInput(payload []byte) error {
	chunk := int(s.chunkHint)
	for len(payload) > 0 {
		n := min(chunk, len(payload))
		if err := s.bus.WriteMemory(DataAddr, payload[:n]); err != nil {
			return fmt.Errorf("write terminal input: %w", err)
		}
		payload = payload[n:]
	}
	return nil
}

// DrainOutput collects remote output until nothing has arrived for idle or
// maxWait has elapsed, whichever comes first. An empty result is not an
// error.
func (s *Session) DrainOutput(idle, maxWait time.Duration) ([]byte, error) {
	if err := s.EnsureSession(); err != nil {
		return nil, err
	}
	deadline := s.clock.Now().Add(maxWait)
	quiet := poll.NewIdle(s.clock, idle)
	warnedOverflow := false

	var out []byte
	for s.clock.Now().Before(deadline) {
		status, err := s.readRegister(StatusAddr)
		if err != nil {
			return out, fmt.Errorf("read status: %w", err)
		}
		if status&StatusOverflow != 0 && !warnedOverflow {
			s.log.Warn("terminal output overflowed, some bytes dropped")
			warnedOverflow = true
		}
		if status&StatusError != 0 {
			s.log.Warn("terminal reported error bit")
		}

		avail, err := s.readRegister(AvailAddr)
		if err != nil {
			return out, fmt.Errorf("read output available: %w", err)
		}
		if avail == 0 {
			if quiet.Quiet() {
				break
			}
			s.clock.Sleep(drainPollInterval)
			continue
		}

		buf, err := s.bus.ReadMemory(DataAddr, int(min(avail, s.chunkHint)))
		if err != nil {
			return out, fmt.Errorf("read terminal output: %w", err)
		}
		out = append(out, buf...)
		quiet.Progress()
	}
	if len(out) > 0 {
		s.log.Debug("drained terminal output", zap.Int("bytes", len(out)))
	}
	return out, nil
}

func (s *Session) drainTo(idle, maxWait time.Duration) error {
	out, err := s.DrainOutput(idle, maxWait)
	if len(out) > 0 {
		if _, werr := s.stdout.Write(out); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// RunOnce executes one command line. File transfer verbs are handled
// locally, anything else is sent to the remote shell and its output printed.
// A malformed file verb prints its usage and is not a failure.
func (s *Session) RunOnce(command string) error {
	handled, err := s.HandleFileCommand(command)
	if handled {
		return s.reportUsage(err)
	}
	if err := s.SendCommand(command); err != nil {
		return err
	}
	return s.drainTo(DefaultDrainIdle, DefaultDrainMaxWait)
}
