package terminal_test

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kevmo314/go-u3vterm/pkg/terminal"
	"github.com/kevmo314/go-u3vterm/pkg/terminal/terminaltest"
)

func TestSendCommandChunksByHint(t *testing.T) {
	fw := terminaltest.New()
	fw.ChunkHint = 4
	h := newHarness(t, fw)
	h.ready(t)

	if err := h.s.SendCommand("hello"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if string(fw.Input) != "hello\n" {
		t.Errorf("shell input = %q, want %q", fw.Input, "hello\n")
	}
	var sizes []int
	for _, w := range h.dev.Writes() {
		if w.Address == terminal.DataAddr {
			sizes = append(sizes, w.Length)
		}
	}
	if len(sizes) != 2 || sizes[0] != 4 || sizes[1] != 2 {
		t.Errorf("write sizes = %v, want [4 2]", sizes)
	}
}

func TestSendCommandKeepsTrailingNewline(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.s.SendCommand("ls\n"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if string(h.fw.Input) != "ls\n" {
		t.Errorf("shell input = %q, want %q", h.fw.Input, "ls\n")
	}
}

func TestDrainOutputQuiet(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	start := h.clock.Now()
	out, err := h.s.DrainOutput(200*time.Millisecond, 5*time.Second)
	if err != nil {
		t.Fatalf("DrainOutput failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("DrainOutput = %q, want empty", out)
	}
	if elapsed := h.clock.Now().Sub(start); elapsed <= 200*time.Millisecond || elapsed > time.Second {
		t.Errorf("drain took %v, want just over the idle timeout", elapsed)
	}
}

func TestDrainOutputConcatenatesBursts(t *testing.T) {
	fw := terminaltest.New()
	fw.ChunkHint = 4
	h := newHarness(t, fw)
	h.ready(t)
	fw.Emit("total 0\n", "drwxr-xr-x ", "root\n")

	out, err := h.s.DrainOutput(terminal.DefaultDrainIdle, terminal.DefaultDrainMaxWait)
	if err != nil {
		t.Fatalf("DrainOutput failed: %v", err)
	}
	if string(out) != "total 0\ndrwxr-xr-x root\n" {
		t.Errorf("DrainOutput = %q", out)
	}
	for _, r := range h.dev.Requests {
		if r.Address == terminal.DataAddr && r.Length > 4 {
			t.Errorf("read of %d bytes exceeds chunk hint 4", r.Length)
		}
	}
}

func TestDrainOutputMaxWait(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	h.fw.Emit("1", "2", "3", "4", "5")
	out, err := h.s.DrainOutput(time.Second, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("DrainOutput failed: %v", err)
	}
	if string(out) != "1" {
		t.Errorf("DrainOutput = %q, want %q", out, "1")
	}
}

func TestDrainOutputWarnsOnceOnOverflow(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fw := terminaltest.New()
	h := newHarness(t, fw, terminal.WithLogger(zap.New(core)))
	h.ready(t)
	fw.Overflow = true
	fw.Emit("a", "b", "c")

	if _, err := h.s.DrainOutput(terminal.DefaultDrainIdle, terminal.DefaultDrainMaxWait); err != nil {
		t.Fatalf("DrainOutput failed: %v", err)
	}
	if n := logs.FilterMessage("terminal output overflowed, some bytes dropped").Len(); n != 1 {
		t.Errorf("overflow warnings = %d, want 1", n)
	}
}

func TestDrainOutputWarnsOnErrorBit(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fw := terminaltest.New()
	h := newHarness(t, fw, terminal.WithLogger(zap.New(core)))
	h.ready(t)
	fw.ErrorBit = true
	fw.Emit("x")

	out, err := h.s.DrainOutput(terminal.DefaultDrainIdle, terminal.DefaultDrainMaxWait)
	if err != nil {
		t.Fatalf("DrainOutput failed: %v", err)
	}
	if string(out) != "x" {
		t.Errorf("DrainOutput = %q, want %q", out, "x")
	}
	warnings := logs.FilterMessage("terminal reported error bit").All()
	if len(warnings) == 0 {
		t.Fatal("no error bit warning logged")
	}
	if warnings[0].Level != zap.WarnLevel {
		t.Errorf("error bit logged at %v, want warn", warnings[0].Level)
	}
}

func TestLargeChunkHintDrainsAndSends(t *testing.T) {
	fw := terminaltest.New()
	fw.ChunkHint = 0x20000
	h := newHarness(t, fw)
	h.ready(t)

	burst := strings.Repeat("o", 70000)
	fw.Emit(burst)
	out, err := h.s.DrainOutput(terminal.DefaultDrainIdle, terminal.DefaultDrainMaxWait)
	if err != nil {
		t.Fatalf("DrainOutput failed: %v", err)
	}
	if len(out) != len(burst) {
		t.Errorf("DrainOutput returned %d bytes, want %d", len(out), len(burst))
	}

	long := strings.Repeat("a", 70000)
	if err := h.s.SendCommand(long); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if lines := fw.Lines(); len(lines) != 1 || lines[0] != long {
		t.Errorf("shell received %d lines, want the long command once", len(lines))
	}
}

func TestRunOnce(t *testing.T) {
	fw := terminaltest.New()
	fw.OnLine = func(line string) string {
		if line == "echo hi" {
			return "hi\n"
		}
		return ""
	}
	h := newHarness(t, fw)
	if err := h.s.RunOnce("echo hi"); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if h.stdout.String() != "hi\n" {
		t.Errorf("stdout = %q, want %q", h.stdout.String(), "hi\n")
	}
}

func TestRunOnceUsage(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.s.RunOnce("u3vget onlyone"); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if !strings.Contains(h.stderr.String(), "Usage: u3vget <remote-path> <local-path>") {
		t.Errorf("stderr = %q, want usage", h.stderr.String())
	}
	if len(h.dev.Requests) != 0 {
		t.Errorf("usage error issued %d requests, want 0", len(h.dev.Requests))
	}
}
