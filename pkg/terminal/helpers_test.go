package terminal_test

import (
	"bytes"
	"testing"

	"github.com/kevmo314/go-u3vterm/pkg/poll"
	"github.com/kevmo314/go-u3vterm/pkg/terminal"
	"github.com/kevmo314/go-u3vterm/pkg/terminal/terminaltest"
	"github.com/kevmo314/go-u3vterm/pkg/uvcp"
	"github.com/kevmo314/go-u3vterm/pkg/uvcp/uvcptest"
)

type harness struct {
	fw     *terminaltest.Firmware
	dev    *uvcptest.Device
	clock  *poll.ManualClock
	s      *terminal.Session
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T, fw *terminaltest.Firmware, opts ...terminal.Option) *harness {
	t.Helper()
	if fw == nil {
		fw = terminaltest.New()
	}
	h := &harness{fw: fw, dev: fw.Device(), clock: poll.NewManualClock()}
	client := uvcp.NewClient(h.dev, uvcp.WithClock(h.clock))
	opts = append([]terminal.Option{
		terminal.WithClock(h.clock),
		terminal.WithOutput(&h.stdout, &h.stderr),
	}, opts...)
	h.s = terminal.NewSession(uvcp.NewRegisters(client), opts...)
	h.s.SetPassword(fw.Password)
	return h
}

// ready brings the session up and forgets the setup traffic.
func (h *harness) ready(t *testing.T) {
	t.Helper()
	if err := h.s.EnsureSession(); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	h.dev.Reset()
	h.fw.Controls = nil
	h.fw.FileCmds = nil
}
