package uvcp

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol is wrapped by every protocol fault. Protocol faults mean the
	// host and device are out of sync and are never retried.
	ErrProtocol = errors.New("uvcp protocol error")

	ErrBadMagic          = fmt.Errorf("%w: bad magic", ErrProtocol)
	ErrIDMismatch        = fmt.Errorf("%w: request id mismatch", ErrProtocol)
	ErrUnexpectedCommand = fmt.Errorf("%w: unexpected command", ErrProtocol)
	ErrSizeMismatch      = fmt.Errorf("%w: size mismatch", ErrProtocol)
	ErrShortFrame        = fmt.Errorf("%w: short frame", ErrProtocol)
	ErrTooManyPending    = fmt.Errorf("%w: too many PENDING_ACK responses, device never became ready", ErrProtocol)

	// ErrTransport is wrapped by failures of the underlying bulk transfers.
	ErrTransport = errors.New("uvcp transport error")

	ErrLengthOutOfRange = errors.New("uvcp length out of range")
)

// ProtocolError carries the request context of a protocol fault.
type ProtocolError struct {
	Op      string
	Address uint64
	ID      uint16
	Want    uint64
	Got     uint64
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s 0x%x (id %d): %v: got %d, want %d", e.Op, e.Address, e.ID, e.Err, e.Got, e.Want)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
