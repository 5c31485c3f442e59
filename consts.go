package u3v

import "time"

// Default camera identifiers.
const (
	DefaultVendorID  uint16 = 0x04b4
	DefaultProductID uint16 = 0x1003
)

// USB3 Vision control interface class triple.
const (
	InterfaceClassMiscellaneous uint8 = 0xEF
	InterfaceSubClassU3V        uint8 = 0x05
	InterfaceProtocolControl    uint8 = 0x00
)

type TransferType uint8

const (
	TransferTypeControl     TransferType = 0x00
	TransferTypeIsochronous TransferType = 0x01
	TransferTypeBulk        TransferType = 0x02
	TransferTypeInterrupt   TransferType = 0x03
)

const (
	EndpointDirectionIn  uint8 = 0x80
	endpointTransferMask uint8 = 0x03
)

// DefaultTransferTimeout bounds every bulk transfer.
const DefaultTransferTimeout = 10 * time.Second
