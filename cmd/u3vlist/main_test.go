package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kevmo314/go-u3vterm"
)

func TestPrintDevices(t *testing.T) {
	devices := []u3v.DeviceSummary{
		{Path: "/dev/bus/usb/001/002", VendorID: 0x046d, ProductID: 0x0825},
		{
			Path: "/dev/bus/usb/002/004", VendorID: 0x04b4, ProductID: 0x1003,
			Product: "Camera", Serial: "CAM7",
			Control: &u3v.ControlInterface{Number: 0, BulkOut: 0x01, BulkIn: 0x81},
		},
	}
	var buf bytes.Buffer
	printDevices(&buf, devices, false)
	want := "Device 1:\n" +
		"  Path: /dev/bus/usb/002/004\n" +
		"  VID:PID: 04b4:1003\n" +
		"  Product: Camera\n" +
		"  Serial: CAM7\n" +
		"  Control interface 0: bulk out 0x01, bulk in 0x81\n" +
		"\n" +
		"Found 1 device(s)\n"
	if buf.String() != want {
		t.Errorf("printDevices =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestPrintDevicesAll(t *testing.T) {
	devices := []u3v.DeviceSummary{
		{Path: "/dev/bus/usb/001/002", VendorID: 0x046d, ProductID: 0x0825, OpenErr: errors.New("permission denied")},
	}
	var buf bytes.Buffer
	printDevices(&buf, devices, false)
	if buf.String() != "No USB3 Vision devices found\n" {
		t.Errorf("printDevices = %q", buf.String())
	}
	buf.Reset()
	printDevices(&buf, devices, true)
	if !bytes.Contains(buf.Bytes(), []byte("(Could not open: permission denied)")) {
		t.Errorf("printDevices = %q, want the open error", buf.String())
	}
}
