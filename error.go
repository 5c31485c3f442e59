package u3v

import "errors"

var (
	ErrDeviceNotFound     = errors.New("usb3 vision device not found")
	ErrNoControlInterface = errors.New("usb3 vision control interface not found")
	ErrNoSelection        = errors.New("no device selected")
	ErrShortWrite         = errors.New("short bulk write")
	ErrEmptyRead          = errors.New("empty bulk read")
	ErrClosed             = errors.New("device closed")
	ErrFDUnsupported      = errors.New("opening a usbfs file descriptor is not supported on this platform")
)
