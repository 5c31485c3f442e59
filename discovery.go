package u3v

import (
	"fmt"

	usb "github.com/kevmo314/go-usb"
)

// InterfaceInfo is the part of an interface alt setting needed to locate
// the control channel.
type InterfaceInfo struct {
	Number    uint8
	Class     uint8
	SubClass  uint8
	Protocol  uint8
	Endpoints []EndpointInfo
}

type EndpointInfo struct {
	Address    uint8
	Attributes uint8
}

func (e EndpointInfo) TransferType() TransferType {
	return TransferType(e.Attributes & endpointTransferMask)
}

func (e EndpointInfo) In() bool { return e.Address&EndpointDirectionIn != 0 }

// ControlInterface is the claimed USB3 Vision control channel.
type ControlInterface struct {
	Number  uint8
	BulkIn  uint8
	BulkOut uint8
}

// FindControlInterface returns the first interface with the USB3 Vision
// control class triple that has both a bulk IN and a bulk OUT endpoint.
func FindControlInterface(ifaces []InterfaceInfo) (ControlInterface, error) {
	for _, iface := range ifaces {
		if iface.Class != InterfaceClassMiscellaneous || iface.SubClass != InterfaceSubClassU3V || iface.Protocol != InterfaceProtocolControl {
			continue
		}
		var ci ControlInterface
		var haveIn, haveOut bool
		for _, ep := range iface.Endpoints {
			if ep.TransferType() != TransferTypeBulk {
				continue
			}
			if ep.In() && !haveIn {
				ci.BulkIn, haveIn = ep.Address, true
			} else if !ep.In() && !haveOut {
				ci.BulkOut, haveOut = ep.Address, true
			}
		}
		if haveIn && haveOut {
			ci.Number = iface.Number
			return ci, nil
		}
	}
	return ControlInterface{}, ErrNoControlInterface
}

func interfacesOf(config *usb.ConfigDescriptor) []InterfaceInfo {
	var out []InterfaceInfo
	for _, iface := range config.Interfaces {
		for _, alt := range iface.AltSettings {
			info := InterfaceInfo{
				Number:   alt.InterfaceNumber,
				Class:    alt.InterfaceClass,
				SubClass: alt.InterfaceSubClass,
				Protocol: alt.InterfaceProtocol,
			}
			for _, ep := range alt.Endpoints {
				info.Endpoints = append(info.Endpoints, EndpointInfo{Address: ep.EndpointAddr, Attributes: ep.Attributes})
			}
			out = append(out, info)
		}
	}
	return out
}

// Candidate is an opened device matching the requested ids that has not been
// claimed yet.
type Candidate struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Serial    string

	handle *usb.DeviceHandle
}

func (c *Candidate) String() string {
	serial := c.Serial
	if serial == "" {
		serial = "<no-serial>"
	}
	return fmt.Sprintf("%s, serial: %s", c.Path, serial)
}

// Close releases a candidate that was not chosen.
func (c *Candidate) Close() error {
	if c.handle == nil {
		return nil
	}
	h := c.handle
	c.handle = nil
	return h.Close()
}

// FindCandidates opens every attached device with the given ids. A non-empty
// serial selects exactly the device with that serial number. Devices that
// cannot be opened are skipped.
func FindCandidates(vendorID, productID uint16, serial string) ([]*Candidate, error) {
	devices, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	var out []*Candidate
	for _, dev := range devices {
		if dev.Descriptor.VendorID != vendorID || dev.Descriptor.ProductID != productID {
			continue
		}
		var devSerial string
		if dev.SysfsStrings != nil {
			devSerial = dev.SysfsStrings.Serial
		}
		if serial != "" && devSerial != serial {
			continue
		}
		handle, err := dev.Open()
		if err != nil {
			continue
		}
		out = append(out, &Candidate{
			Path:      dev.Path,
			VendorID:  vendorID,
			ProductID: productID,
			Serial:    devSerial,
			handle:    handle,
		})
		if serial != "" {
			break
		}
	}
	if len(out) == 0 {
		if serial != "" {
			return nil, fmt.Errorf("%w: %04x:%04x with serial '%s'", ErrDeviceNotFound, vendorID, productID, serial)
		}
		return nil, fmt.Errorf("%w: %04x:%04x", ErrDeviceNotFound, vendorID, productID)
	}
	return out, nil
}

// DeviceSummary describes one attached USB device.
type DeviceSummary struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string

	// Control is set when the device exposes a USB3 Vision control
	// interface.
	Control *ControlInterface
	// OpenErr is why the configuration could not be inspected.
	OpenErr error
}

// ListDevices inspects every attached device for a USB3 Vision control
// interface.
func ListDevices() ([]DeviceSummary, error) {
	devices, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	out := make([]DeviceSummary, 0, len(devices))
	for _, dev := range devices {
		s := DeviceSummary{
			Path:      dev.Path,
			VendorID:  dev.Descriptor.VendorID,
			ProductID: dev.Descriptor.ProductID,
		}
		if dev.SysfsStrings != nil {
			s.Manufacturer = dev.SysfsStrings.Manufacturer
			s.Product = dev.SysfsStrings.Product
			s.Serial = dev.SysfsStrings.Serial
		}
		handle, err := dev.Open()
		if err != nil {
			s.OpenErr = err
			out = append(out, s)
			continue
		}
		if config, err := handle.GetActiveConfigDescriptor(); err != nil {
			s.OpenErr = err
		} else if ci, err := FindControlInterface(interfacesOf(config)); err == nil {
			s.Control = &ci
		}
		handle.Close()
		out = append(out, s)
	}
	return out, nil
}
