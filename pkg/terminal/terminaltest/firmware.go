// Package terminaltest simulates the camera side of the remote terminal so
// the terminal package can be exercised end to end over a simulated UVCP
// link.
package terminaltest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"syscall"

	"github.com/kevmo314/go-u3vterm/pkg/terminal"
	"github.com/kevmo314/go-u3vterm/pkg/uvcp/uvcptest"
)

// ErrFault is returned for addresses listed in Firmware.FailAddrs. The
// simulated device drops the response, which the host sees as a transport
// timeout.
var ErrFault = errors.New("terminaltest: injected fault")

// Firmware implements uvcptest.Handler on top of the terminal register map.
type Firmware struct {
	mu sync.Mutex

	Magic     uint32
	Version   uint32
	ChunkHint uint32
	Password  string

	Authenticated bool
	Ready         bool
	// NeverReady keeps the ready bit clear after a start request.
	NeverReady bool
	Overflow   bool
	ErrorBit   bool
	Echo       bool

	// OnLine is called for every complete line written to the shell and
	// its return value is queued as output.
	OnLine func(line string) string

	// Files backs the file channel.
	Files map[string][]byte
	// HideSize reports a zero file size on downloads.
	HideSize bool
	// StallPolls makes the first data available polls of a download
	// report nothing.
	StallPolls int
	// WriteLimit fails uploads with ENOSPC past this many bytes when
	// non-zero.
	WriteLimit int
	// CloseErrno makes the next close report this error instead of
	// completing the transfer.
	CloseErrno syscall.Errno

	FailAddrs map[uint64]bool

	// Input is every byte written to the shell input window.
	Input    []byte
	Controls []uint32
	FileCmds []terminal.FileCommand
	Locks    int

	authBuf []byte
	line    []byte
	current []byte
	bursts  [][]byte

	fileStatus uint32
	fileResult uint32
	pathBuf    []byte
	path       string
	readBuf    []byte
	writeBuf   []byte
}

func New() *Firmware {
	return &Firmware{
		Magic:     terminal.Magic,
		Version:   terminal.MinV2Version,
		ChunkHint: 512,
		Password:  "secret",
		Echo:      true,
		Files:     make(map[string][]byte),
		FailAddrs: make(map[uint64]bool),
		pathBuf:   make([]byte, terminal.FilePathCapacity),
	}
}

// Device wraps the firmware in a simulated UVCP device.
func (f *Firmware) Device() *uvcptest.Device {
	return uvcptest.NewDevice(f)
}

// Emit queues output bursts. Each burst becomes visible on its own poll of
// the available register.
func (f *Firmware) Emit(bursts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range bursts {
		f.bursts = append(f.bursts, []byte(b))
	}
}

// Lines returns the input written to the shell, split into lines with
// backspaces applied.
func (f *Firmware) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []string
	var cur []byte
	for _, ch := range f.Input {
		switch ch {
		case '\n', '\r':
			lines = append(lines, string(cur))
			cur = cur[:0]
		case '\b', 0x7f:
			if len(cur) > 0 {
				cur = cur[:len(cur)-1]
			}
		default:
			cur = append(cur, ch)
		}
	}
	return lines
}

func (f *Firmware) ReadMemory(address uint64, length int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAddrs[address] {
		return nil, ErrFault
	}
	switch address {
	case terminal.DataAddr:
		return f.readOutput(length), nil
	case terminal.FileDataAddr:
		return f.readFileData(length), nil
	}
	out := make([]byte, length)
	for i := 0; i+4 <= length; i += 4 {
		binary.LittleEndian.PutUint32(out[i:], f.register(address+uint64(i)))
	}
	return out, nil
}

func (f *Firmware) WriteMemory(address uint64, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAddrs[address] {
		return 0, ErrFault
	}
	switch address {
	case terminal.DataAddr:
		f.shellInput(data)
		return len(data), nil
	case terminal.AuthBufAddr:
		f.authBuf = append([]byte(nil), data...)
		return len(data), nil
	case terminal.FilePathAddr:
		f.pathBuf = append([]byte(nil), data...)
		return len(data), nil
	case terminal.FileDataAddr:
		f.writeFileData(data)
		return len(data), nil
	}
	for i := 0; i+4 <= len(data); i += 4 {
		f.setRegister(address+uint64(i), binary.LittleEndian.Uint32(data[i:]))
	}
	return len(data), nil
}

func (f *Firmware) register(address uint64) uint32 {
	switch address {
	case terminal.BaseAddr:
		return f.Magic
	case terminal.VersionAddr:
		return f.Version
	case terminal.StatusAddr:
		return f.status()
	case terminal.AvailAddr:
		if len(f.current) == 0 && len(f.bursts) > 0 {
			// a zero reading separates bursts
			f.current, f.bursts = f.bursts[0], f.bursts[1:]
			return 0
		}
		return uint32(len(f.current))
	case terminal.ChunkHintAddr:
		return f.ChunkHint
	case terminal.AuthStatusAddr:
		if f.Authenticated {
			return 1
		}
		return 0
	case terminal.FileStatusAddr:
		return f.fileStatus
	case terminal.FileResultAddr:
		return f.fileResult
	case terminal.FileSizeLowAddr:
		if f.HideSize || f.fileStatus&terminal.FileStatusReading == 0 {
			return 0
		}
		return uint32(uint64(len(f.Files[f.path])))
	case terminal.FileSizeHighAddr:
		if f.HideSize || f.fileStatus&terminal.FileStatusReading == 0 {
			return 0
		}
		return uint32(uint64(len(f.Files[f.path])) >> 32)
	case terminal.FileDataAvailAddr:
		return f.fileAvail()
	}
	return 0
}

func (f *Firmware) setRegister(address uint64, value uint32) {
	switch address {
	case terminal.StatusAddr:
		f.control(value)
	case terminal.AuthCmdAddr:
		switch value {
		case terminal.AuthCmdAuthenticate:
			f.Authenticated = f.Password != "" && string(f.authBuf) == f.Password
		case terminal.AuthCmdLock:
			f.Authenticated = false
			f.Locks++
		}
	case terminal.FileCmdAddr:
		f.fileCommand(terminal.FileCommand(value))
	}
}

func (f *Firmware) status() uint32 {
	var s uint32
	if f.Ready {
		s |= terminal.StatusReady | terminal.StatusChildAlive
	}
	if len(f.current) > 0 || len(f.bursts) > 0 {
		s |= terminal.StatusOutputPending
	}
	if f.Overflow {
		s |= terminal.StatusOverflow
	}
	if f.ErrorBit {
		s |= terminal.StatusError
	}
	return s
}

func (f *Firmware) control(value uint32) {
	f.Controls = append(f.Controls, value)
	if value&terminal.CtrlClearFlags != 0 {
		f.Overflow = false
		f.ErrorBit = false
	}
	if value&terminal.CtrlEchoEnable != 0 {
		f.Echo = true
	}
	if value&terminal.CtrlEchoDisable != 0 {
		f.Echo = false
	}
	if value&terminal.CtrlReset != 0 {
		f.Ready = false
		f.current, f.bursts, f.line = nil, nil, nil
	}
	if value&terminal.CtrlStart != 0 && f.Authenticated && !f.NeverReady {
		f.Ready = true
	}
}

func (f *Firmware) readOutput(length int) []byte {
	out := make([]byte, length)
	n := copy(out, f.current)
	f.current = f.current[n:]
	return out
}

func (f *Firmware) shellInput(data []byte) {
	f.Input = append(f.Input, data...)
	for _, ch := range data {
		switch ch {
		case '\n', '\r':
			line := string(f.line)
			f.line = f.line[:0]
			if f.OnLine != nil {
				if resp := f.OnLine(line); resp != "" {
					f.bursts = append(f.bursts, []byte(resp))
				}
			}
		case '\b', 0x7f:
			if len(f.line) > 0 {
				f.line = f.line[:len(f.line)-1]
			}
		default:
			f.line = append(f.line, ch)
		}
	}
}

func (f *Firmware) fileCommand(cmd terminal.FileCommand) {
	f.FileCmds = append(f.FileCmds, cmd)
	switch cmd {
	case terminal.FileCmdReset:
		f.fileStatus, f.fileResult = 0, 0
		f.readBuf, f.writeBuf = nil, nil
		f.path = ""
	case terminal.FileCmdOpenRead:
		f.path = string(bytes.TrimRight(f.pathBuf, "\x00"))
		data, ok := f.Files[f.path]
		if !ok {
			f.fail(syscall.ENOENT)
			return
		}
		f.readBuf = append([]byte(nil), data...)
		f.fileStatus = terminal.FileStatusOpen | terminal.FileStatusReading
	case terminal.FileCmdOpenWrite:
		f.path = string(bytes.TrimRight(f.pathBuf, "\x00"))
		f.writeBuf = []byte{}
		f.fileStatus = terminal.FileStatusOpen | terminal.FileStatusWriting
	case terminal.FileCmdClose:
		if f.CloseErrno != 0 {
			f.fail(f.CloseErrno)
			f.CloseErrno = 0
			f.readBuf, f.writeBuf = nil, nil
			return
		}
		if f.fileStatus&terminal.FileStatusWriting != 0 && f.fileStatus&terminal.FileStatusError == 0 {
			f.Files[f.path] = f.writeBuf
		}
		f.fileStatus, f.fileResult = 0, 0
		f.readBuf, f.writeBuf = nil, nil
	}
}

func (f *Firmware) fail(errno syscall.Errno) {
	f.fileStatus = terminal.FileStatusError
	f.fileResult = uint32(errno)
}

func (f *Firmware) fileAvail() uint32 {
	if f.fileStatus&terminal.FileStatusReading == 0 {
		return 0
	}
	if f.StallPolls > 0 {
		f.StallPolls--
		return 0
	}
	if len(f.readBuf) == 0 {
		f.fileStatus |= terminal.FileStatusEOF
		return 0
	}
	return uint32(min(len(f.readBuf), terminal.FileDataWindow))
}

func (f *Firmware) readFileData(length int) []byte {
	out := make([]byte, length)
	n := copy(out, f.readBuf)
	f.readBuf = f.readBuf[n:]
	return out
}

func (f *Firmware) writeFileData(data []byte) {
	if f.fileStatus&terminal.FileStatusWriting == 0 {
		return
	}
	if f.WriteLimit > 0 && len(f.writeBuf)+len(data) > f.WriteLimit {
		f.fail(syscall.ENOSPC)
		return
	}
	f.writeBuf = append(f.writeBuf, data...)
}
