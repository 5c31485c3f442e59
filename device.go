// Package u3v is the USB side of the USB3 Vision terminal client: finding
// the camera, claiming its control interface and moving UVCP frames over
// the bulk endpoints.
package u3v

import (
	"fmt"
	"sync/atomic"
	"time"

	usb "github.com/kevmo314/go-usb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Device is a claimed USB3 Vision control interface. It implements
// uvcp.Transport.
type Device struct {
	handle  *usb.DeviceHandle
	control ControlInterface
	timeout time.Duration
	log     *zap.Logger
	closed  *atomic.Bool

	VendorID  uint16
	ProductID uint16
	Serial    string
}

type Option func(*Device)

func WithTimeout(d time.Duration) Option {
	return func(dev *Device) { dev.timeout = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(dev *Device) { dev.log = log }
}

// Open claims the control interface of a candidate returned by
// FindCandidates. The candidate handle is owned by the Device afterwards,
// even on error.
func Open(c *Candidate, opts ...Option) (*Device, error) {
	handle := c.handle
	c.handle = nil
	if handle == nil {
		return nil, ErrClosed
	}
	dev, err := claim(handle, opts...)
	if err != nil {
		return nil, err
	}
	dev.VendorID, dev.ProductID, dev.Serial = c.VendorID, c.ProductID, c.Serial
	return dev, nil
}

func claim(handle *usb.DeviceHandle, opts ...Option) (*Device, error) {
	dev := &Device{
		handle:  handle,
		timeout: DefaultTransferTimeout,
		log:     zap.NewNop(),
		closed:  &atomic.Bool{},
	}
	for _, opt := range opts {
		opt(dev)
	}

	config, err := handle.GetActiveConfigDescriptor()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to get config descriptor: %w", err), handle.Close())
	}
	ci, err := FindControlInterface(interfacesOf(config))
	if err != nil {
		return nil, multierr.Append(err, handle.Close())
	}
	if active, err := handle.KernelDriverActive(ci.Number); err == nil && active {
		if err := handle.DetachKernelDriver(ci.Number); err != nil {
			return nil, multierr.Append(fmt.Errorf("failed to detach kernel driver from interface %d: %w", ci.Number, err), handle.Close())
		}
	}
	if err := handle.ClaimInterface(ci.Number); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to claim interface %d: %w", ci.Number, err), handle.Close())
	}
	dev.control = ci
	dev.log.Debug("claimed control interface",
		zap.Uint8("interface", ci.Number),
		zap.String("bulk_out", fmt.Sprintf("0x%02x", ci.BulkOut)),
		zap.String("bulk_in", fmt.Sprintf("0x%02x", ci.BulkIn)))
	return dev, nil
}

func (d *Device) Control() ControlInterface { return d.control }

// Send writes one frame to the bulk OUT endpoint. A short write is an error.
func (d *Device) Send(buf []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	n, err := d.handle.BulkTransfer(d.control.BulkOut, buf, d.timeout)
	if err != nil {
		return fmt.Errorf("bulk send: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(buf))
	}
	return nil
}

// Receive reads one frame from the bulk IN endpoint.
func (d *Device) Receive(buf []byte) (int, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}
	n, err := d.handle.BulkTransfer(d.control.BulkIn, buf, d.timeout)
	if err != nil {
		return 0, fmt.Errorf("bulk receive: %w", err)
	}
	if n <= 0 {
		return 0, ErrEmptyRead
	}
	return n, nil
}

// Close releases the control interface and the device handle.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return multierr.Append(d.handle.ReleaseInterface(d.control.Number), d.handle.Close())
}
