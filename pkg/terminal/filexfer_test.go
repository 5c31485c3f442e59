package terminal_test

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/kevmo314/go-u3vterm/pkg/terminal"
	"github.com/kevmo314/go-u3vterm/pkg/terminal/terminaltest"
)

func testData(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

func TestIsFileCommand(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"u3vget a b", true},
		{"  u3vput a b", true},
		{"u3vget", true},
		{"u3vgetx a b", false},
		{"ls u3vget", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := terminal.IsFileCommand(tt.line); got != tt.want {
			t.Errorf("IsFileCommand(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestHandleFileCommandUsage(t *testing.T) {
	h := newHarness(t, nil)
	for _, line := range []string{"u3vget a", "u3vput a b c", "u3vput"} {
		handled, err := h.s.HandleFileCommand(line)
		if !handled {
			t.Errorf("HandleFileCommand(%q) not handled", line)
		}
		var usage *terminal.UsageError
		if !errors.As(err, &usage) || !errors.Is(err, terminal.ErrUsage) {
			t.Errorf("HandleFileCommand(%q) err = %v, want usage error", line, err)
		}
	}
	if handled, err := h.s.HandleFileCommand("ls -l"); handled || err != nil {
		t.Errorf("HandleFileCommand(ls) = %v, %v, want false, nil", handled, err)
	}
	if len(h.dev.Requests) != 0 {
		t.Errorf("usage errors issued %d requests, want 0", len(h.dev.Requests))
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	w := terminal.FileDataWindow
	for _, n := range []int{0, 1, w - 1, w, w + 1, 2 << 20} {
		h := newHarness(t, nil, terminal.WithProgress(func(terminal.Progress) {}))
		data := testData(n)

		sent, err := h.s.UploadFrom(bytes.NewReader(data), int64(n), "/root/blob")
		if err != nil {
			t.Fatalf("UploadFrom(%d) failed: %v", n, err)
		}
		if sent != int64(n) {
			t.Errorf("UploadFrom(%d) sent %d bytes", n, sent)
		}
		if !bytes.Equal(h.fw.Files["/root/blob"], data) {
			t.Fatalf("device file differs after uploading %d bytes", n)
		}

		var buf bytes.Buffer
		got, err := h.s.DownloadTo("/root/blob", &buf)
		if err != nil {
			t.Fatalf("DownloadTo(%d) failed: %v", n, err)
		}
		if got != int64(n) || !bytes.Equal(buf.Bytes(), data) {
			t.Errorf("round trip of %d bytes returned %d different bytes", n, got)
		}
	}
}

func TestDownloadToLocalFile(t *testing.T) {
	h := newHarness(t, nil)
	h.fw.Files["/etc/hostname"] = []byte("camera0\n")
	local := filepath.Join(t.TempDir(), "hostname")

	if err := h.s.Download("/etc/hostname", local); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "camera0\n" {
		t.Errorf("local file = %q", got)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "\rDownloading: 8/8 (100.0%)\n") {
		t.Errorf("stdout = %q, missing progress", out)
	}
	if !strings.HasSuffix(out, "Downloaded '/etc/hostname' -> '"+local+"' (8 bytes)\n") {
		t.Errorf("stdout = %q, missing summary", out)
	}
	cmds := h.fw.FileCmds
	if len(cmds) == 0 || cmds[0] != terminal.FileCmdReset || cmds[len(cmds)-1] != terminal.FileCmdClose {
		t.Errorf("file commands = %v, want reset first and close last", cmds)
	}
}

func TestDownloadUnknownSize(t *testing.T) {
	fw := terminaltest.New()
	fw.HideSize = true
	fw.Files["/var/log/messages"] = testData(130)
	h := newHarness(t, fw)
	local := filepath.Join(t.TempDir(), "messages")

	if err := h.s.Download("/var/log/messages", local); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "\rDownloading: 130 bytes\n") {
		t.Errorf("stdout = %q, missing byte counter", out)
	}
	if !strings.HasSuffix(out, "Downloaded '/var/log/messages' -> '"+local+"'\n") {
		t.Errorf("stdout = %q, missing summary", out)
	}
}

func TestDownloadWaitsForData(t *testing.T) {
	fw := terminaltest.New()
	fw.StallPolls = 3
	fw.Files["/a"] = []byte("abc")
	h := newHarness(t, fw)
	h.ready(t)

	var buf bytes.Buffer
	if _, err := h.s.DownloadTo("/a", &buf); err != nil {
		t.Fatalf("DownloadTo failed: %v", err)
	}
	if buf.String() != "abc" {
		t.Errorf("downloaded %q, want abc", buf.String())
	}
	if _, sleeps := h.clock.Slept(); sleeps < 3 {
		t.Errorf("slept %d times, want at least 3 idle retries", sleeps)
	}
}

func TestDownloadMissingFile(t *testing.T) {
	h := newHarness(t, nil)
	local := filepath.Join(t.TempDir(), "missing")

	err := h.s.Download("/no/such/file", local)
	var ferr *terminal.FileError
	if !errors.As(err, &ferr) {
		t.Fatalf("Download err = %v, want *FileError", err)
	}
	if ferr.Op != "open file" || ferr.Errno != 2 {
		t.Errorf("FileError = %+v, want open file errno 2", ferr)
	}
	if !errors.Is(err, terminal.ErrFileTransfer) {
		t.Errorf("err does not match ErrFileTransfer")
	}
	if !strings.Contains(err.Error(), "errno=2 (no such file or directory)") {
		t.Errorf("err = %q, missing errno text", err.Error())
	}
	if _, statErr := os.Stat(local); !os.IsNotExist(statErr) {
		t.Errorf("local file created for failed download")
	}
	cmds := h.fw.FileCmds
	if cmds[len(cmds)-1] != terminal.FileCmdClose {
		t.Errorf("file commands = %v, want close last", cmds)
	}
}

func TestUploadDeviceError(t *testing.T) {
	fw := terminaltest.New()
	fw.WriteLimit = 100
	h := newHarness(t, fw)

	_, err := h.s.UploadFrom(bytes.NewReader(testData(200)), 200, "/root/big")
	var ferr *terminal.FileError
	if !errors.As(err, &ferr) || ferr.Op != "u3vput" || ferr.Errno != 28 {
		t.Fatalf("UploadFrom err = %v, want u3vput errno 28", err)
	}
	if _, ok := fw.Files["/root/big"]; ok {
		t.Errorf("failed upload was stored on the device")
	}
	if cmds := fw.FileCmds; cmds[len(cmds)-1] != terminal.FileCmdClose {
		t.Errorf("file commands = %v, want close last", cmds)
	}
}

func TestCloseFailureOverridesCompletedTransfer(t *testing.T) {
	data := testData(150)

	fw := terminaltest.New()
	fw.Files["/root/log"] = data
	fw.CloseErrno = syscall.EIO
	h := newHarness(t, fw)
	var buf bytes.Buffer
	n, err := h.s.DownloadTo("/root/log", &buf)
	var ferr *terminal.FileError
	if !errors.As(err, &ferr) || ferr.Op != "file transfer" || ferr.Errno != int(syscall.EIO) {
		t.Fatalf("DownloadTo err = %v, want file transfer errno 5", err)
	}
	if n != int64(len(data)) || !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("DownloadTo copied %d bytes, want all %d before the close", n, len(data))
	}
	if !strings.Contains(err.Error(), "input/output error") {
		t.Errorf("error = %q, want the errno text", err)
	}

	fw = terminaltest.New()
	fw.CloseErrno = syscall.EIO
	h = newHarness(t, fw)
	if _, err := h.s.UploadFrom(bytes.NewReader(data), int64(len(data)), "/root/log"); !errors.As(err, &ferr) || ferr.Errno != int(syscall.EIO) {
		t.Fatalf("UploadFrom err = %v, want errno 5", err)
	}
	if _, ok := fw.Files["/root/log"]; ok {
		t.Errorf("upload that failed to close was stored on the device")
	}
}

func TestUploadLocalFile(t *testing.T) {
	h := newHarness(t, nil)
	local := filepath.Join(t.TempDir(), "fw.bin")
	data := testData(130)
	if err := os.WriteFile(local, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := h.s.Upload(local, "/root/fw.bin"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !bytes.Equal(h.fw.Files["/root/fw.bin"], data) {
		t.Errorf("device file differs")
	}
	out := h.stdout.String()
	if !strings.Contains(out, "\rUploading:   130/130 (100.0%)\n") {
		t.Errorf("stdout = %q, missing progress", out)
	}
	if !strings.HasSuffix(out, "Uploaded '"+local+"' -> '/root/fw.bin' (130 bytes)\n") {
		t.Errorf("stdout = %q, missing summary", out)
	}
}

func TestUploadMissingLocalFile(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.s.Upload(filepath.Join(t.TempDir(), "nope"), "/root/x"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Upload err = %v, want os.ErrNotExist", err)
	}
	if len(h.dev.Requests) != 0 {
		t.Errorf("Upload issued %d requests, want 0", len(h.dev.Requests))
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	var updates []terminal.Progress
	h := newHarness(t, nil, terminal.WithProgress(func(p terminal.Progress) {
		updates = append(updates, p)
	}))
	data := testData(1000)
	h.fw.Files["/data"] = data

	n, err := h.s.DownloadTo("/data", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("DownloadTo failed: %v", err)
	}
	if len(updates) == 0 {
		t.Fatalf("no progress updates")
	}
	var last int64
	for _, p := range updates {
		if p.Done < last {
			t.Fatalf("progress went backwards: %d after %d", p.Done, last)
		}
		if p.Total != 1000 || p.Op != "Downloading" {
			t.Errorf("progress = %+v, want Downloading of 1000", p)
		}
		last = p.Done
	}
	if last != n || n != 1000 {
		t.Errorf("final progress %d, transferred %d, want 1000", last, n)
	}
}

func TestFilePathLimits(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.s.DownloadTo("", &bytes.Buffer{}); !errors.Is(err, terminal.ErrEmptyPath) {
		t.Errorf("empty path err = %v, want ErrEmptyPath", err)
	}
	if len(h.dev.Requests) != 0 {
		t.Errorf("empty path issued %d requests, want 0", len(h.dev.Requests))
	}

	h.ready(t)
	long := "/" + strings.Repeat("a", terminal.FilePathCapacity-1)
	if _, err := h.s.UploadFrom(bytes.NewReader(nil), 0, long); !errors.Is(err, terminal.ErrPathTooLong) {
		t.Errorf("long path err = %v, want ErrPathTooLong", err)
	}
	if len(h.fw.FileCmds) != 1 || h.fw.FileCmds[0] != terminal.FileCmdReset {
		t.Errorf("file commands = %v, want only reset", h.fw.FileCmds)
	}

	longest := "/" + strings.Repeat("b", terminal.FilePathCapacity-2)
	if _, err := h.s.UploadFrom(bytes.NewReader([]byte("x")), 1, longest); err != nil {
		t.Errorf("path of %d bytes failed: %v", len(longest), err)
	}
	if string(h.fw.Files[longest]) != "x" {
		t.Errorf("device file for longest path missing")
	}
}
