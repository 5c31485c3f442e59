package console

import "golang.org/x/sys/unix"

// makeRaw disables canonical input, echo, signal keys, flow control and CR
// translation. Unlike term.MakeRaw it keeps output post-processing so remote
// newlines still render as line breaks.
func makeRaw(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ISIG
	t.Iflag &^= unix.IXON | unix.ICRNL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}
