package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kevmo314/go-u3vterm/pkg/poll"
)

const (
	VerbGet = "u3vget"
	VerbPut = "u3vput"

	getUsage = "u3vget <remote-path> <local-path>"
	putUsage = "u3vput <local-path> <remote-path>"
)

const (
	fileOpenTimeout  = 500 * time.Millisecond
	fileOpenInterval = 10 * time.Millisecond
	fileIdleRetry    = 10 * time.Millisecond
	fileCloseSettle  = 5 * time.Millisecond
	fileStallTimeout = 10 * time.Second
)

// Progress is one transfer progress update. Total is 0 when the size is
// unknown.
type Progress struct {
	Op    string
	Done  int64
	Total int64
}

type ProgressFunc func(Progress)

// IsFileCommand reports whether the first word of line is a file transfer
// verb.
func IsFileCommand(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && (fields[0] == VerbGet || fields[0] == VerbPut)
}

// HandleFileCommand runs line if it is a file transfer verb. handled is false
// for any other line. A verb with the wrong number of arguments returns a
// *UsageError without touching the device.
func (s *Session) HandleFileCommand(line string) (handled bool, err error) {
	fields := strings.Fields(line)
	if !IsFileCommand(line) {
		return false, nil
	}
	switch fields[0] {
	case VerbGet:
		if len(fields) != 3 {
			return true, &UsageError{Usage: getUsage}
		}
		return true, s.Download(fields[1], fields[2])
	default:
		if len(fields) != 3 {
			return true, &UsageError{Usage: putUsage}
		}
		return true, s.Upload(fields[1], fields[2])
	}
}

func (s *Session) reportUsage(err error) error {
	var usage *UsageError
	if errors.As(err, &usage) {
		fmt.Fprintln(s.stderr, usage.Error())
		return nil
	}
	return err
}

// Download copies the remote file to a local path. The local file is only
// created once the device has opened the remote file.
func (s *Session) Download(remote, local string) error {
	var f *os.File
	_, err := s.download(remote, local, func() (io.Writer, error) {
		var err error
		if f, err = os.Create(local); err != nil {
			return nil, fmt.Errorf("unable to open local file '%s' for writing: %w", local, err)
		}
		return f, nil
	})
	if f != nil {
		err = multierr.Append(err, f.Close())
	}
	return err
}

// DownloadTo copies the remote file to w and returns the number of bytes
// written.
func (s *Session) DownloadTo(remote string, w io.Writer) (int64, error) {
	return s.download(remote, "", func() (io.Writer, error) { return w, nil })
}

func (s *Session) download(remote, local string, open func() (io.Writer, error)) (n int64, err error) {
	if remote == "" {
		return 0, ErrEmptyPath
	}
	if err := s.EnsureSession(); err != nil {
		return 0, err
	}
	if err := s.openFile(remote, FileCmdOpenRead, FileStatusReading); err != nil {
		return 0, err
	}
	status := newProgressLine(s, "Downloading")
	defer func() {
		err = multierr.Append(err, s.closeFile())
		status.finish()
		if err == nil {
			s.printDone("Downloaded", remote, local, status.total)
		}
	}()

	status.total = s.fileSize()
	w, err := open()
	if err != nil {
		return 0, err
	}

	stall := poll.NewIdle(s.clock, fileStallTimeout)
	for {
		avail, err := s.readRegister(FileDataAvailAddr)
		if err != nil {
			return n, fmt.Errorf("read file data available: %w", err)
		}
		if avail == 0 {
			fs, err := s.readRegister(FileStatusAddr)
			if err != nil {
				return n, fmt.Errorf("read file status: %w", err)
			}
			if fs&FileStatusError != 0 {
				return n, s.checkFileError(VerbGet)
			}
			if fs&FileStatusEOF != 0 {
				return n, nil
			}
			if stall.Quiet() {
				return n, ErrFileStalled
			}
			s.clock.Sleep(fileIdleRetry)
			continue
		}

		buf, err := s.bus.ReadMemory(FileDataAddr, int(avail))
		if err != nil {
			return n, fmt.Errorf("read file data: %w", err)
		}
		if _, err := w.Write(buf); err != nil {
			return n, fmt.Errorf("failed writing to local file '%s': %w", local, err)
		}
		n += int64(len(buf))
		stall.Progress()
		status.update(n)
	}
}

// Upload copies a local file to the remote path.
func (s *Session) Upload(local, remote string) (err error) {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("unable to open local file '%s': %w", local, err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	var total int64
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	_, err = s.upload(f, total, local, remote)
	return err
}

// UploadFrom copies r to the remote path. total is only used for progress
// and may be 0.
func (s *Session) UploadFrom(r io.Reader, total int64, remote string) (int64, error) {
	return s.upload(r, total, "", remote)
}

func (s *Session) upload(r io.Reader, total int64, local, remote string) (n int64, err error) {
	if remote == "" {
		return 0, ErrEmptyPath
	}
	if err := s.EnsureSession(); err != nil {
		return 0, err
	}
	if err := s.openFile(remote, FileCmdOpenWrite, FileStatusWriting); err != nil {
		return 0, err
	}
	status := newProgressLine(s, "Uploading")
	status.total = total
	defer func() {
		err = multierr.Append(err, s.closeFile())
		status.finish()
		if err == nil {
			s.printDone("Uploaded", local, remote, total)
		}
	}()

	buf := make([]byte, FileDataWindow)
	for {
		got, rerr := io.ReadFull(r, buf)
		if got > 0 {
			if err := s.bus.WriteMemory(FileDataAddr, buf[:got]); err != nil {
				return n, fmt.Errorf("write file data: %w", err)
			}
			fs, err := s.readRegister(FileStatusAddr)
			if err != nil {
				return n, fmt.Errorf("read file status: %w", err)
			}
			if fs&FileStatusError != 0 {
				return n, s.checkFileError(VerbPut)
			}
			n += int64(got)
			status.update(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return n, nil
		}
		if rerr != nil {
			return n, fmt.Errorf("read local file: %w", rerr)
		}
	}
}

// prepareFilePath resets the file channel and loads the remote path into
// the NUL padded path buffer.
func (s *Session) prepareFilePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if err := s.fileCommand(FileCmdReset); err != nil {
		return err
	}
	if len(path) >= FilePathCapacity {
		return ErrPathTooLong
	}
	buf := make([]byte, FilePathCapacity)
	copy(buf, path)
	if err := s.bus.WriteMemory(FilePathAddr, buf); err != nil {
		return fmt.Errorf("write file path: %w", err)
	}
	return nil
}

func (s *Session) fileCommand(cmd FileCommand) error {
	if err := s.writeRegister(FileCmdAddr, uint32(cmd)); err != nil {
		return fmt.Errorf("write file command %s: %w", cmd, err)
	}
	return nil
}

// openFile issues an open command and waits for the matching mode bit. The
// channel is closed again if it never opens.
func (s *Session) openFile(path string, cmd FileCommand, modeBit uint32) error {
	if err := s.prepareFilePath(path); err != nil {
		return err
	}
	if err := s.fileCommand(cmd); err != nil {
		return err
	}
	err := poll.Poller{Clock: s.clock, Timeout: fileOpenTimeout, Interval: fileOpenInterval}.Until(func() (bool, error) {
		fs, err := s.readRegister(FileStatusAddr)
		if err != nil {
			return false, fmt.Errorf("read file status: %w", err)
		}
		if fs&modeBit != 0 {
			return true, nil
		}
		if fs&FileStatusError != 0 {
			return false, s.checkFileError("open file")
		}
		return false, nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		err = ErrFileOpenTimeout
	}
	if err != nil {
		return multierr.Append(err, s.closeFile())
	}
	s.log.Debug("file channel open", zap.String("path", path), zap.Stringer("mode", cmd))
	return nil
}

func (s *Session) closeFile() error {
	if err := s.fileCommand(FileCmdClose); err != nil {
		return err
	}
	s.clock.Sleep(fileCloseSettle)
	return s.checkFileError("file transfer")
}

// checkFileError returns a *FileError when the file status error bit is set.
func (s *Session) checkFileError(op string) error {
	fs, err := s.readRegister(FileStatusAddr)
	if err != nil {
		return fmt.Errorf("read file status: %w", err)
	}
	if fs&FileStatusError == 0 {
		return nil
	}
	result, err := s.readRegister(FileResultAddr)
	if err != nil {
		return fmt.Errorf("read file result: %w", err)
	}
	return &FileError{Op: op, Errno: int(int32(result))}
}

// fileSize returns the remote file size, or 0 when it is unknown or cannot
// be read.
func (s *Session) fileSize() int64 {
	regs, err := s.bus.ReadRegisters(FileSizeLowAddr, 2)
	if err != nil {
		return 0
	}
	return int64(uint64(regs[1])<<32 | uint64(regs[0]))
}

func (s *Session) printDone(verb, from, to string, size int64) {
	if from == "" || to == "" {
		return
	}
	if size != 0 {
		fmt.Fprintf(s.stdout, "%s '%s' -> '%s' (%d bytes)\n", verb, from, to, size)
		return
	}
	fmt.Fprintf(s.stdout, "%s '%s' -> '%s'\n", verb, from, to)
}

type progressLine struct {
	s       *Session
	op      string
	total   int64
	printed bool
}

func newProgressLine(s *Session, op string) *progressLine {
	return &progressLine{s: s, op: op}
}

func (p *progressLine) update(done int64) {
	if p.s.progress != nil {
		p.s.progress(Progress{Op: p.op, Done: done, Total: p.total})
		return
	}
	p.printed = true
	label := p.op + ":"
	if p.total > 0 {
		pct := 100 * float64(done) / float64(p.total)
		fmt.Fprintf(p.s.stdout, "\r%-12s %d/%d (%.1f%%)", label, done, p.total, pct)
		return
	}
	fmt.Fprintf(p.s.stdout, "\r%-12s %d bytes", label, done)
}

func (p *progressLine) finish() {
	if p.printed {
		fmt.Fprintln(p.s.stdout)
	}
}
