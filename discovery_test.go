package u3v

import (
	"errors"
	"testing"

	usb "github.com/kevmo314/go-usb"
)

// grow appends a zero element to s and returns a pointer to it.
func grow[S ~[]E, E any](s *S) *E {
	*s = append(*s, *new(E))
	return &(*s)[len(*s)-1]
}

func TestInterfacesOfConfigDescriptor(t *testing.T) {
	var config usb.ConfigDescriptor
	alt := grow(&grow(&config.Interfaces).AltSettings)
	alt.InterfaceNumber = 3
	alt.InterfaceClass = 0xEF
	alt.InterfaceSubClass = 0x05
	alt.InterfaceProtocol = 0x00
	out := grow(&alt.Endpoints)
	out.EndpointAddr, out.Attributes = 0x02, 0x02
	in := grow(&alt.Endpoints)
	in.EndpointAddr, in.Attributes = 0x81, 0x02

	ci, err := FindControlInterface(interfacesOf(&config))
	if err != nil {
		t.Fatalf("FindControlInterface failed: %v", err)
	}
	if ci.Number != 3 || ci.BulkOut != 0x02 || ci.BulkIn != 0x81 {
		t.Errorf("FindControlInterface = %+v, want interface 3 out 0x02 in 0x81", ci)
	}
}

func TestFindControlInterface(t *testing.T) {
	ifaces := []InterfaceInfo{
		// video streaming on a composite camera
		{Number: 0, Class: 0x0E, SubClass: 0x02, Endpoints: []EndpointInfo{{Address: 0x81, Attributes: 0x02}}},
		// event interface shares the class but carries one interrupt endpoint
		{Number: 1, Class: 0xEF, SubClass: 0x05, Protocol: 0x01, Endpoints: []EndpointInfo{{Address: 0x82, Attributes: 0x03}}},
		{Number: 2, Class: 0xEF, SubClass: 0x05, Protocol: 0x00, Endpoints: []EndpointInfo{
			{Address: 0x83, Attributes: 0x03},
			{Address: 0x04, Attributes: 0x02},
			{Address: 0x84, Attributes: 0x02},
		}},
	}
	ci, err := FindControlInterface(ifaces)
	if err != nil {
		t.Fatalf("FindControlInterface failed: %v", err)
	}
	if ci.Number != 2 || ci.BulkOut != 0x04 || ci.BulkIn != 0x84 {
		t.Errorf("FindControlInterface = %+v, want interface 2 out 0x04 in 0x84", ci)
	}
}

func TestFindControlInterfaceNeedsBothDirections(t *testing.T) {
	ifaces := []InterfaceInfo{
		{Number: 0, Class: 0xEF, SubClass: 0x05, Endpoints: []EndpointInfo{{Address: 0x81, Attributes: 0x02}}},
		{Number: 1, Class: 0xEF, SubClass: 0x05, Endpoints: []EndpointInfo{{Address: 0x02, Attributes: 0x02}}},
	}
	if _, err := FindControlInterface(ifaces); !errors.Is(err, ErrNoControlInterface) {
		t.Errorf("FindControlInterface err = %v, want ErrNoControlInterface", err)
	}
	if _, err := FindControlInterface(nil); !errors.Is(err, ErrNoControlInterface) {
		t.Errorf("FindControlInterface(nil) err = %v, want ErrNoControlInterface", err)
	}
}

func TestEndpointInfo(t *testing.T) {
	ep := EndpointInfo{Address: 0x81, Attributes: 0x02}
	if !ep.In() || ep.TransferType() != TransferTypeBulk {
		t.Errorf("endpoint 0x81 bulk: In=%v type=%d", ep.In(), ep.TransferType())
	}
	ep = EndpointInfo{Address: 0x01, Attributes: 0x01}
	if ep.In() || ep.TransferType() != TransferTypeIsochronous {
		t.Errorf("endpoint 0x01 iso: In=%v type=%d", ep.In(), ep.TransferType())
	}
}

func TestCandidateString(t *testing.T) {
	c := &Candidate{Path: "/dev/bus/usb/002/004"}
	if c.String() != "/dev/bus/usb/002/004, serial: <no-serial>" {
		t.Errorf("String() = %q", c.String())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close of an unopened candidate failed: %v", err)
	}
}
