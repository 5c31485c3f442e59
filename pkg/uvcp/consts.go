package uvcp

import "fmt"

const (
	// Magic is "U3VC" read as a little-endian uint32.
	Magic uint32 = 0x43563355

	// FlagRequestAck is set on every outbound request.
	FlagRequestAck uint16 = 1 << 14

	HeaderSize = 12

	// MaxPayloadSize is the largest payload the 16-bit size field can carry.
	MaxPayloadSize = 0xFFFF

	// MaxPendingAcks is how many PENDING_ACK responses a single request may
	// receive before it is abandoned.
	MaxPendingAcks = 5
)

type Command uint16

const (
	CommandReadMemoryCmd  Command = 0x0800
	CommandReadMemoryAck  Command = 0x0801
	CommandWriteMemoryCmd Command = 0x0802
	CommandWriteMemoryAck Command = 0x0803
	CommandPendingAck     Command = 0x0805
	CommandEventCmd       Command = 0x0c00
	CommandEventAck       Command = 0x0c01
)

func (c Command) String() string {
	switch c {
	case CommandReadMemoryCmd:
		return "READ_MEMORY_CMD"
	case CommandReadMemoryAck:
		return "READ_MEMORY_ACK"
	case CommandWriteMemoryCmd:
		return "WRITE_MEMORY_CMD"
	case CommandWriteMemoryAck:
		return "WRITE_MEMORY_ACK"
	case CommandPendingAck:
		return "PENDING_ACK"
	case CommandEventCmd:
		return "EVENT_CMD"
	case CommandEventAck:
		return "EVENT_ACK"
	}
	return fmt.Sprintf("Command(0x%04x)", uint16(c))
}
