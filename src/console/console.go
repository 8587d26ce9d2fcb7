// Package console is the duplicated VGA-text/serial output layer plus the
// leveled logger and panic banner built on top of it. It is deliberately
// thin: Device_i is the only hardware-facing seam, so the real VGA buffer
// and serial UART drivers (cmd/kernel) and a host-side fake can both drive
// the same Console_t.
package console

import "fmt"

// Color is one of the VGA text-mode palette's 16 entries.
type Color int

const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

// ColorPair is a foreground/background pair, matching the original
// kernel's color_pair.
type ColorPair struct {
	Fg, Bg Color
}

// Device_i is one backing output for console text. Console_t duplicates
// every write across every device registered with it.
type Device_i interface {
	WriteByte(c byte)
	SetColor(cp ColorPair)
}

// Console_t fans writes out to every registered Device_i, the same
// duplication the original kernel's tty driver performs across the VGA
// buffer and the serial line.
type Console_t struct {
	devices []Device_i
}

// NewConsole creates a console writing through devices, in order.
func NewConsole(devices ...Device_i) *Console_t {
	return &Console_t{devices: devices}
}

func (c *Console_t) WriteByte(b byte) {
	for _, d := range c.devices {
		d.WriteByte(b)
	}
}

func (c *Console_t) SetColor(cp ColorPair) {
	for _, d := range c.devices {
		d.SetColor(cp)
	}
}

func (c *Console_t) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		c.WriteByte(s[i])
	}
}

// Printf writes a formatted message at the console's current color.
func (c *Console_t) Printf(format string, args ...any) {
	c.WriteString(fmt.Sprintf(format, args...))
}
