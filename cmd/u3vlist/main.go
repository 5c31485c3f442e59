package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kevmo314/go-u3vterm"
)

func main() {
	all := flag.Bool("all", false, "also list devices without a USB3 Vision control interface")
	flag.Parse()

	devices, err := u3v.ListDevices()
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}
	printDevices(os.Stdout, devices, *all)
}

func printDevices(w io.Writer, devices []u3v.DeviceSummary, all bool) {
	var shown int
	for _, dev := range devices {
		if dev.Control == nil && !all {
			continue
		}
		shown++
		fmt.Fprintf(w, "Device %d:\n", shown)
		fmt.Fprintf(w, "  Path: %s\n", dev.Path)
		fmt.Fprintf(w, "  VID:PID: %04x:%04x\n", dev.VendorID, dev.ProductID)
		if dev.Manufacturer != "" {
			fmt.Fprintf(w, "  Manufacturer: %s\n", dev.Manufacturer)
		}
		if dev.Product != "" {
			fmt.Fprintf(w, "  Product: %s\n", dev.Product)
		}
		if dev.Serial != "" {
			fmt.Fprintf(w, "  Serial: %s\n", dev.Serial)
		}
		switch {
		case dev.OpenErr != nil:
			fmt.Fprintf(w, "  (Could not open: %v)\n", dev.OpenErr)
		case dev.Control != nil:
			fmt.Fprintf(w, "  Control interface %d: bulk out 0x%02x, bulk in 0x%02x\n",
				dev.Control.Number, dev.Control.BulkOut, dev.Control.BulkIn)
		}
		fmt.Fprintln(w)
	}
	if shown == 0 {
		fmt.Fprintln(w, "No USB3 Vision devices found")
		return
	}
	fmt.Fprintf(w, "Found %d device(s)\n", shown)
}
