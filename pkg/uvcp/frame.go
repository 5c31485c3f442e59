// This file implements the UVCP wire frames. All fields are little-endian and
// every decoder checks the declared payload size against the received bytes
// before touching the payload.
package uvcp

import (
	"encoding/binary"
	"io"
	"time"
)

// Header is the 12 byte prefix of every UVCP frame.
type Header struct {
	Magic   uint32
	Flags   uint16
	Command Command
	Size    uint16
	ID      uint16
}

func (h *Header) MarshalInto(buf []byte) error {
	if len(buf) < HeaderSize {
		return io.ErrShortBuffer
	}
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Flags)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Command))
	binary.LittleEndian.PutUint16(buf[8:10], h.Size)
	binary.LittleEndian.PutUint16(buf[10:12], h.ID)
	return nil
}

func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return io.ErrShortBuffer
	}
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Flags = binary.LittleEndian.Uint16(buf[4:6])
	h.Command = Command(binary.LittleEndian.Uint16(buf[6:8]))
	h.Size = binary.LittleEndian.Uint16(buf[8:10])
	h.ID = binary.LittleEndian.Uint16(buf[10:12])
	return nil
}

// payload returns the bytes covered by the header's size field.
func (h *Header) payload(buf []byte) ([]byte, error) {
	end := HeaderSize + int(h.Size)
	if len(buf) < end {
		return nil, io.ErrShortBuffer
	}
	return buf[HeaderSize:end], nil
}

func newRequestHeader(cmd Command, size int, id uint16) Header {
	return Header{Magic: Magic, Flags: FlagRequestAck, Command: cmd, Size: uint16(size), ID: id}
}

const readMemoryCmdPayloadSize = 12

type ReadMemoryCmd struct {
	Header
	Address  uint64
	Reserved uint16
	Length   uint16
}

func (c *ReadMemoryCmd) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+readMemoryCmdPayloadSize)
	c.Header.Size = readMemoryCmdPayloadSize
	if err := c.Header.MarshalInto(buf); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(buf[12:20], c.Address)
	binary.LittleEndian.PutUint16(buf[20:22], c.Reserved)
	binary.LittleEndian.PutUint16(buf[22:24], c.Length)
	return buf, nil
}

func (c *ReadMemoryCmd) UnmarshalBinary(buf []byte) error {
	if err := c.Header.UnmarshalBinary(buf); err != nil {
		return err
	}
	p, err := c.Header.payload(buf)
	if err != nil {
		return err
	}
	if len(p) < readMemoryCmdPayloadSize {
		return io.ErrShortBuffer
	}
	c.Address = binary.LittleEndian.Uint64(p[0:8])
	c.Reserved = binary.LittleEndian.Uint16(p[8:10])
	c.Length = binary.LittleEndian.Uint16(p[10:12])
	return nil
}

type ReadMemoryAck struct {
	Header
	Data []byte
}

func (a *ReadMemoryAck) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+len(a.Data))
	a.Header.Size = uint16(len(a.Data))
	if err := a.Header.MarshalInto(buf); err != nil {
		return nil, err
	}
	copy(buf[HeaderSize:], a.Data)
	return buf, nil
}

func (a *ReadMemoryAck) UnmarshalBinary(buf []byte) error {
	if err := a.Header.UnmarshalBinary(buf); err != nil {
		return err
	}
	p, err := a.Header.payload(buf)
	if err != nil {
		return err
	}
	a.Data = append([]byte(nil), p...)
	return nil
}

type WriteMemoryCmd struct {
	Header
	Address uint64
	Data    []byte
}

func (c *WriteMemoryCmd) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+8+len(c.Data))
	c.Header.Size = uint16(8 + len(c.Data))
	if err := c.Header.MarshalInto(buf); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(buf[12:20], c.Address)
	copy(buf[20:], c.Data)
	return buf, nil
}

func (c *WriteMemoryCmd) UnmarshalBinary(buf []byte) error {
	if err := c.Header.UnmarshalBinary(buf); err != nil {
		return err
	}
	p, err := c.Header.payload(buf)
	if err != nil {
		return err
	}
	if len(p) < 8 {
		return io.ErrShortBuffer
	}
	c.Address = binary.LittleEndian.Uint64(p[0:8])
	c.Data = append([]byte(nil), p[8:]...)
	return nil
}

type WriteMemoryAck struct {
	Header
	Reserved     uint16
	BytesWritten uint16
}

func (a *WriteMemoryAck) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+4)
	a.Header.Size = 4
	if err := a.Header.MarshalInto(buf); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[12:14], a.Reserved)
	binary.LittleEndian.PutUint16(buf[14:16], a.BytesWritten)
	return buf, nil
}

func (a *WriteMemoryAck) UnmarshalBinary(buf []byte) error {
	if err := a.Header.UnmarshalBinary(buf); err != nil {
		return err
	}
	p, err := a.Header.payload(buf)
	if err != nil {
		return err
	}
	if len(p) < 4 {
		return io.ErrShortBuffer
	}
	a.Reserved = binary.LittleEndian.Uint16(p[0:2])
	a.BytesWritten = binary.LittleEndian.Uint16(p[2:4])
	return nil
}

// PendingAck asks the host to keep waiting for the real response.
type PendingAck struct {
	Header
	Reserved  uint16
	TimeoutMs uint16
}

func (a *PendingAck) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+4)
	a.Header.Size = 4
	if err := a.Header.MarshalInto(buf); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[12:14], a.Reserved)
	binary.LittleEndian.PutUint16(buf[14:16], a.TimeoutMs)
	return buf, nil
}

func (a *PendingAck) UnmarshalBinary(buf []byte) error {
	if err := a.Header.UnmarshalBinary(buf); err != nil {
		return err
	}
	p, err := a.Header.payload(buf)
	if err != nil {
		return err
	}
	if len(p) < 4 {
		return io.ErrShortBuffer
	}
	a.Reserved = binary.LittleEndian.Uint16(p[0:2])
	a.TimeoutMs = binary.LittleEndian.Uint16(p[2:4])
	return nil
}

// Wait is the suggested delay before the next receive, at least 1ms.
func (a *PendingAck) Wait() time.Duration {
	if a.TimeoutMs == 0 {
		return time.Millisecond
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}
