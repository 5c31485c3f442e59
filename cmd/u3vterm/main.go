package main

import (
	"fmt"
	"os"

	"github.com/kevmo314/go-u3vterm/pkg/console"
	"github.com/kevmo314/go-u3vterm/pkg/poll"
)

func main() {
	a := &app{
		open:      openUSB(pickDevice),
		console:   console.NewStdio(),
		clock:     poll.SystemClock,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logOutput: os.Stderr,
	}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
