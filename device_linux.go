package u3v

import usb "github.com/kevmo314/go-usb"

// OpenFD wraps an already opened usbfs file descriptor, as handed out by the
// Android USB host API.
func OpenFD(fd uintptr, opts ...Option) (*Device, error) {
	handle, err := usb.WrapSysDevice(int(fd))
	if err != nil {
		return nil, err
	}
	dev, err := claim(handle, opts...)
	if err != nil {
		return nil, err
	}
	if desc, err := handle.GetDeviceDescriptor(); err == nil {
		dev.VendorID, dev.ProductID = desc.VendorID, desc.ProductID
	}
	return dev, nil
}
