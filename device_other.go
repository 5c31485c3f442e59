//go:build !linux

package u3v

// OpenFD is only available where usbfs descriptors exist.
func OpenFD(fd uintptr, opts ...Option) (*Device, error) {
	return nil, ErrFDUnsupported
}
