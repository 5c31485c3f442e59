//go:build integration

package u3v

import (
	"testing"

	"github.com/kevmo314/go-u3vterm/pkg/terminal"
	"github.com/kevmo314/go-u3vterm/pkg/uvcp"
)

func TestReadTerminalMagic(t *testing.T) {
	candidates, err := FindCandidates(DefaultVendorID, DefaultProductID, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range candidates[1:] {
		c.Close()
	}
	dev, err := Open(candidates[0])
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	regs := uvcp.NewRegisters(uvcp.NewClient(dev))
	magic, err := regs.ReadRegister(terminal.BaseAddr)
	if err != nil {
		t.Fatal(err)
	}
	if magic != terminal.Magic {
		t.Fatalf("terminal magic = %x, want %x", magic, terminal.Magic)
	}
}
