package console

import "golang.org/x/sys/unix"

// HostedDevice writes console output through a raw unix.Write syscall to
// a file descriptor, bypassing buffered stdio. It implements Device_i so
// host-side tooling can drive the same Console_t the real VGA/serial
// drivers do, without any real hardware behind it.
type HostedDevice struct {
	Fd int
}

func (h HostedDevice) WriteByte(c byte) {
	unix.Write(h.Fd, []byte{c})
}

// SetColor is a no-op: a plain file descriptor carries no color state.
func (h HostedDevice) SetColor(cp ColorPair) {}
