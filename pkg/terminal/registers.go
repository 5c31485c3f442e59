package terminal

import (
	"fmt"

	"github.com/kevmo314/go-u3vterm/pkg/uvcp"
)

// Terminal register block.
const (
	Magic uint32 = 0x5445524D // "TERM"

	BaseAddr       uint64 = 0x30000
	VersionAddr           = BaseAddr + 0x4
	StatusAddr            = BaseAddr + 0x8
	AvailAddr             = BaseAddr + 0xC
	ChunkHintAddr         = BaseAddr + 0x10
	AuthStatusAddr        = BaseAddr + 0x14
	AuthCmdAddr           = BaseAddr + 0x18
	AuthBufAddr           = BaseAddr + 0x1C
	DataAddr              = BaseAddr + 0x100
)

// File channel register block.
const (
	FileCmdAddr        = BaseAddr + 0x40
	FileStatusAddr     = BaseAddr + 0x44
	FileResultAddr     = BaseAddr + 0x48
	FileSizeLowAddr    = BaseAddr + 0x4C
	FileSizeHighAddr   = BaseAddr + 0x50
	FileCursorLowAddr  = BaseAddr + 0x54
	FileCursorHighAddr = BaseAddr + 0x58
	FileDataAvailAddr  = BaseAddr + 0x5C
	FilePathAddr       = BaseAddr + 0x60
	FileDataAddr       = BaseAddr + 0xC0

	FilePathCapacity = 0x60
	FileDataWindow   = 0x40
)

// Status register bits, read side.
const (
	StatusReady         uint32 = 1 << 0
	StatusChildAlive    uint32 = 1 << 1
	StatusOutputPending uint32 = 1 << 2
	StatusOverflow      uint32 = 1 << 3
	StatusError         uint32 = 1 << 4
)

// Status register bits, write side.
const (
	CtrlStart       uint32 = 1 << 0
	CtrlReset       uint32 = 1 << 1
	CtrlSigInt      uint32 = 1 << 2
	CtrlSigTerm     uint32 = 1 << 3
	CtrlClearFlags  uint32 = 1 << 4
	CtrlEchoEnable  uint32 = 1 << 5
	CtrlEchoDisable uint32 = 1 << 6
)

// Auth command register values.
const (
	AuthCmdLock         uint32 = 0
	AuthCmdAuthenticate uint32 = 1
)

type FileCommand uint32

const (
	FileCmdNone      FileCommand = 0
	FileCmdOpenRead  FileCommand = 1
	FileCmdOpenWrite FileCommand = 2
	FileCmdClose     FileCommand = 3
	FileCmdReset     FileCommand = 4
)

func (c FileCommand) String() string {
	switch c {
	case FileCmdNone:
		return "none"
	case FileCmdOpenRead:
		return "open-read"
	case FileCmdOpenWrite:
		return "open-write"
	case FileCmdClose:
		return "close"
	case FileCmdReset:
		return "reset"
	}
	return fmt.Sprintf("FileCommand(%d)", uint32(c))
}

// File status register bits.
const (
	FileStatusBusy      uint32 = 1 << 0
	FileStatusError     uint32 = 1 << 1
	FileStatusEOF       uint32 = 1 << 2
	FileStatusReading   uint32 = 1 << 3
	FileStatusWriting   uint32 = 1 << 4
	FileStatusOpen      uint32 = 1 << 5
	FileStatusPathReady uint32 = 1 << 6
)

// MinV2Version is the lowest firmware version that supports the raw byte
// stream interactive mode.
const MinV2Version uint32 = 0x00010002

const (
	defaultChunkHint  = 4096
	fallbackChunkHint = 512
	// maxChunkHint is the largest chunk a single write frame can carry
	// after its address field.
	maxChunkHint = uvcp.MaxPayloadSize - 8
)
