package uvcp

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kevmo314/go-u3vterm/pkg/poll"
)

// Transport is a bulk OUT/IN endpoint pair. Each call is bounded by the
// transport's own timeout.
type Transport interface {
	Send(buf []byte) error
	// Receive reads one response frame into buf.
	Receive(buf []byte) (int, error)
}

// Client issues UVCP memory requests over a Transport. Only one request is
// in flight at a time.
type Client struct {
	mu        sync.Mutex
	transport Transport
	clock     poll.Clock
	log       *zap.Logger
	requestID uint16
	rx        []byte
}

type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithClock sets the clock used to honour PENDING_ACK delays.
func WithClock(clock poll.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		clock:     poll.SystemClock,
		log:       zap.NewNop(),
		rx:        make([]byte, HeaderSize+MaxPayloadSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) nextRequestID() uint16 {
	c.requestID++
	return c.requestID
}

// ReadMemory reads length bytes starting at address.
func (c *Client) ReadMemory(address uint64, length int) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if length < 0 || length > MaxPayloadSize {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", length, address, ErrLengthOutOfRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := &ReadMemoryCmd{
		Header:  newRequestHeader(CommandReadMemoryCmd, readMemoryCmdPayloadSize, c.nextRequestID()),
		Address: address,
		Length:  uint16(length),
	}
	buf, err := cmd.MarshalBinary()
	if err != nil {
		return nil, err
	}
	frame, err := c.exchange("read", address, cmd.ID, buf, CommandReadMemoryAck)
	if err != nil {
		return nil, err
	}

	ack := &ReadMemoryAck{}
	if err := ack.UnmarshalBinary(frame); err != nil {
		return nil, &ProtocolError{Op: "read", Address: address, ID: cmd.ID, Want: uint64(HeaderSize + int(ack.Size)), Got: uint64(len(frame)), Err: ErrShortFrame}
	}
	if len(ack.Data) != length {
		return nil, &ProtocolError{Op: "read", Address: address, ID: cmd.ID, Want: uint64(length), Got: uint64(len(ack.Data)), Err: ErrSizeMismatch}
	}
	return ack.Data, nil
}

// WriteMemory writes data starting at address. The device must acknowledge
// every byte.
func (c *Client) WriteMemory(address uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) > MaxPayloadSize-8 {
		return fmt.Errorf("write %d bytes at 0x%x: %w", len(data), address, ErrLengthOutOfRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := &WriteMemoryCmd{
		Header:  newRequestHeader(CommandWriteMemoryCmd, 8+len(data), c.nextRequestID()),
		Address: address,
		Data:    data,
	}
	buf, err := cmd.MarshalBinary()
	if err != nil {
		return err
	}
	frame, err := c.exchange("write", address, cmd.ID, buf, CommandWriteMemoryAck)
	if err != nil {
		return err
	}

	ack := &WriteMemoryAck{}
	if err := ack.UnmarshalBinary(frame); err != nil {
		return &ProtocolError{Op: "write", Address: address, ID: cmd.ID, Want: HeaderSize + 4, Got: uint64(len(frame)), Err: ErrShortFrame}
	}
	if int(ack.BytesWritten) != len(data) {
		return &ProtocolError{Op: "write", Address: address, ID: cmd.ID, Want: uint64(len(data)), Got: uint64(ack.BytesWritten), Err: ErrSizeMismatch}
	}
	return nil
}

// exchange sends one request and waits for its terminal response, honouring
// PENDING_ACK up to MaxPendingAcks times. The returned frame aliases the
// receive buffer and is only valid until the next exchange.
func (c *Client) exchange(op string, address uint64, id uint16, req []byte, want Command) ([]byte, error) {
	c.log.Debug("uvcp request", zap.String("op", op), zap.Uint64("address", address), zap.Uint16("id", id), zap.Int("size", len(req)))
	if err := c.transport.Send(req); err != nil {
		return nil, fmt.Errorf("%w: %s 0x%x send: %w", ErrTransport, op, address, err)
	}

	pending := &poll.Retry{Max: MaxPendingAcks}
	for {
		n, err := c.transport.Receive(c.rx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s 0x%x receive: %w", ErrTransport, op, address, err)
		}
		frame := c.rx[:n]

		hdr := &Header{}
		if err := hdr.UnmarshalBinary(frame); err != nil {
			return nil, &ProtocolError{Op: op, Address: address, ID: id, Want: HeaderSize, Got: uint64(n), Err: ErrShortFrame}
		}
		if hdr.Magic != Magic {
			return nil, &ProtocolError{Op: op, Address: address, ID: id, Want: uint64(Magic), Got: uint64(hdr.Magic), Err: ErrBadMagic}
		}
		if hdr.ID != id {
			return nil, &ProtocolError{Op: op, Address: address, ID: id, Want: uint64(id), Got: uint64(hdr.ID), Err: ErrIDMismatch}
		}
		c.log.Debug("uvcp response", zap.Stringer("command", hdr.Command), zap.Uint16("id", hdr.ID), zap.Uint16("size", hdr.Size))

		if hdr.Command == CommandPendingAck {
			p := &PendingAck{}
			if err := p.UnmarshalBinary(frame); err != nil {
				return nil, &ProtocolError{Op: op, Address: address, ID: id, Want: HeaderSize + 4, Got: uint64(n), Err: ErrShortFrame}
			}
			if !pending.Next() {
				return nil, &ProtocolError{Op: op, Address: address, ID: id, Want: MaxPendingAcks, Got: uint64(pending.Attempts()), Err: ErrTooManyPending}
			}
			c.clock.Sleep(p.Wait())
			continue
		}
		if hdr.Command != want {
			return nil, &ProtocolError{Op: op, Address: address, ID: id, Want: uint64(want), Got: uint64(hdr.Command), Err: ErrUnexpectedCommand}
		}
		return frame, nil
	}
}
