//go:build !linux

package u3v

import (
	"errors"
	"testing"
)

func TestOpenFDUnsupported(t *testing.T) {
	if _, err := OpenFD(3); !errors.Is(err, ErrFDUnsupported) {
		t.Errorf("OpenFD err = %v, want ErrFDUnsupported", err)
	}
}
