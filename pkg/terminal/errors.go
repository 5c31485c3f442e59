package terminal

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	ErrBadTerminalMagic = errors.New("unexpected terminal magic")
	ErrAuthRequired     = errors.New("terminal locked: password required")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrSessionTimeout   = errors.New("timed out waiting for terminal session")
	ErrEmptyPath        = errors.New("remote path must not be empty")
	ErrPathTooLong      = fmt.Errorf("remote path exceeds %d bytes limit", FilePathCapacity-1)
	ErrFileOpenTimeout  = errors.New("timed out waiting for file channel")
	ErrFileStalled      = errors.New("file channel stalled")
	ErrUsage            = errors.New("usage")

	// ErrFileTransfer is matched by every *FileError.
	ErrFileTransfer = errors.New("file transfer failed")
)

// FileError is a device reported file channel failure, carrying the errno
// from the file result register.
type FileError struct {
	Op    string
	Errno int
}

func (e *FileError) Error() string {
	if e.Errno == 0 {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s failed: errno=%d (%s)", e.Op, e.Errno, syscall.Errno(e.Errno).Error())
}

func (e *FileError) Is(target error) bool { return target == ErrFileTransfer }

// UsageError reports a malformed file transfer verb.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return "Usage: " + e.Usage }

func (e *UsageError) Is(target error) bool { return target == ErrUsage }
