// Package uvcptest provides a simulated UVCP device that implements
// uvcp.Transport, for exercising the protocol stack without hardware.
package uvcptest

import (
	"errors"
	"sync"

	"github.com/kevmo314/go-u3vterm/pkg/uvcp"
)

// ErrNoResponse is returned by Receive when nothing is queued, the
// simulated equivalent of a bulk IN timeout.
var ErrNoResponse = errors.New("uvcptest: no response queued")

// Handler serves memory requests on behalf of the simulated device.
type Handler interface {
	ReadMemory(address uint64, length int) ([]byte, error)
	WriteMemory(address uint64, data []byte) (int, error)
}

// Request is a decoded request frame as seen by the device.
type Request struct {
	Command uvcp.Command
	ID      uint16
	Flags   uint16
	Address uint64
	Length  int
	Data    []byte
}

// Device decodes request frames, dispatches them to its Handler and queues
// the response frames for Receive. The fault knobs apply to every response
// unless noted otherwise.
type Device struct {
	mu      sync.Mutex
	handler Handler
	queue   [][]byte

	// Pending is the number of PENDING_ACK frames queued ahead of the next
	// response. It is consumed by that request.
	Pending          int
	PendingTimeoutMs uint16

	// WriteShortfall is subtracted from bytes_written in write acks.
	WriteShortfall int
	// ReadShortfall drops this many bytes from read ack payloads.
	ReadShortfall int
	CorruptMagic  bool
	IDOffset      uint16
	// ReplyCommand replaces the ack opcode when non-zero.
	ReplyCommand uvcp.Command

	SendErr error

	Requests []Request
}

func NewDevice(h Handler) *Device {
	if h == nil {
		h = NewRAM()
	}
	return &Device{handler: h}
}

func (d *Device) Send(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SendErr != nil {
		return d.SendErr
	}

	hdr := &uvcp.Header{}
	if err := hdr.UnmarshalBinary(buf); err != nil {
		return err
	}
	req := Request{Command: hdr.Command, ID: hdr.ID, Flags: hdr.Flags}

	var ack []byte
	var err error
	switch hdr.Command {
	case uvcp.CommandReadMemoryCmd:
		cmd := &uvcp.ReadMemoryCmd{}
		if err := cmd.UnmarshalBinary(buf); err != nil {
			return err
		}
		req.Address, req.Length = cmd.Address, int(cmd.Length)
		data, rerr := d.handler.ReadMemory(cmd.Address, int(cmd.Length))
		d.Requests = append(d.Requests, req)
		if rerr != nil {
			return nil
		}
		if d.ReadShortfall > 0 && d.ReadShortfall <= len(data) {
			data = data[:len(data)-d.ReadShortfall]
		}
		resp := &uvcp.ReadMemoryAck{Header: d.responseHeader(hdr.ID, uvcp.CommandReadMemoryAck), Data: data}
		ack, err = resp.MarshalBinary()
	case uvcp.CommandWriteMemoryCmd:
		cmd := &uvcp.WriteMemoryCmd{}
		if err := cmd.UnmarshalBinary(buf); err != nil {
			return err
		}
		req.Address, req.Length, req.Data = cmd.Address, len(cmd.Data), cmd.Data
		n, werr := d.handler.WriteMemory(cmd.Address, cmd.Data)
		d.Requests = append(d.Requests, req)
		if werr != nil {
			return nil
		}
		resp := &uvcp.WriteMemoryAck{Header: d.responseHeader(hdr.ID, uvcp.CommandWriteMemoryAck), BytesWritten: uint16(n - d.WriteShortfall)}
		ack, err = resp.MarshalBinary()
	default:
		d.Requests = append(d.Requests, req)
		return nil
	}
	if err != nil {
		return err
	}

	for ; d.Pending > 0; d.Pending-- {
		p := &uvcp.PendingAck{Header: d.responseHeader(hdr.ID, uvcp.CommandPendingAck), TimeoutMs: d.PendingTimeoutMs}
		frame, err := p.MarshalBinary()
		if err != nil {
			return err
		}
		d.queue = append(d.queue, frame)
	}
	d.queue = append(d.queue, ack)
	return nil
}

func (d *Device) responseHeader(id uint16, cmd uvcp.Command) uvcp.Header {
	h := uvcp.Header{Magic: uvcp.Magic, Command: cmd, ID: id + d.IDOffset}
	if d.CorruptMagic {
		h.Magic ^= 0xFFFFFFFF
	}
	if d.ReplyCommand != 0 && cmd != uvcp.CommandPendingAck {
		h.Command = d.ReplyCommand
	}
	return h
}

// Queue appends a raw frame to be returned by a later Receive.
func (d *Device) Queue(frame []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, frame)
}

func (d *Device) Receive(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return 0, ErrNoResponse
	}
	frame := d.queue[0]
	d.queue = d.queue[1:]
	return copy(buf, frame), nil
}

// Writes returns the write requests received so far.
func (d *Device) Writes() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Request
	for _, r := range d.Requests {
		if r.Command == uvcp.CommandWriteMemoryCmd {
			out = append(out, r)
		}
	}
	return out
}

// Reset forgets recorded requests and queued responses.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Requests = nil
	d.queue = nil
}

// RAM is a sparse byte memory Handler.
type RAM struct {
	mu    sync.Mutex
	bytes map[uint64]byte
}

func NewRAM() *RAM {
	return &RAM{bytes: make(map[uint64]byte)}
}

func (m *RAM) ReadMemory(address uint64, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, length)
	for i := range out {
		out[i] = m.bytes[address+uint64(i)]
	}
	return out, nil
}

func (m *RAM) WriteMemory(address uint64, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		m.bytes[address+uint64(i)] = b
	}
	return len(data), nil
}
