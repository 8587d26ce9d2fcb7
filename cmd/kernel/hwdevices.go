package main

import (
	"runtime"
	"unsafe"

	"github.com/farberbrodsky/tinylittleos/src/console"
)

// vgaDevice writes directly to the VGA text-mode buffer mapped at the
// kernel's fixed virtual address, duplicating the original kernel's
// tty driver: 80x25 cells, each a (character, attribute) uint16 pair.
type vgaDevice struct{}

const (
	vgaWidth  = 80
	vgaHeight = 25
	vgaBase   = uintptr(0xC00B8000)
)

var (
	vgaX, vgaY int
	vgaColor   uint8 = 0x0F // white on black, matching the original's default
)

func vgaEntry(c byte, color uint8) uint16 {
	return uint16(c) | uint16(color)<<8
}

func vgaCell(x, y int) *uint16 {
	return (*uint16)(unsafe.Pointer(vgaBase + uintptr(2*(y*vgaWidth+x))))
}

func (vgaDevice) WriteByte(c byte) {
	if c == '\n' {
		vgaX = 0
		vgaY++
	} else {
		*vgaCell(vgaX, vgaY) = vgaEntry(c, vgaColor)
		vgaX++
		if vgaX == vgaWidth {
			vgaX = 0
			vgaY++
		}
	}
	if vgaY == vgaHeight {
		// A full scroll-back ring belongs to a real tty layer; this entry
		// point just wraps to the top rather than losing every write past
		// the last row.
		vgaY = 0
	}
}

func (vgaDevice) SetColor(cp console.ColorPair) {
	vgaColor = uint8(cp.Fg) | uint8(cp.Bg)<<4
}

// serialDevice drives COM1 the same way the original kernel's serial
// driver does: poll the line status register's transmit-empty bit, then
// write the byte to the data port. Color changes have no serial
// equivalent, so SetColor is a no-op.
type serialDevice struct{}

const (
	serialCom1           = 0x3F8
	serialData           = serialCom1
	serialFifoCommand    = serialCom1 + 2
	serialLineCommand    = serialCom1 + 3
	serialLineStatus     = serialCom1 + 5
	serialLineEnableDLAB = 0x80
)

func initSerial() {
	runtime.Outb(serialLineCommand, serialLineEnableDLAB)
	runtime.Outb(serialCom1+1, 0)  // divisor high byte: 115200 baud, divisor 1
	runtime.Outb(serialData, 1)    // divisor low byte
	runtime.Outb(serialLineCommand, 0x03) // 8 bits, no parity, one stop bit
	_ = serialFifoCommand
}

func (serialDevice) WriteByte(c byte) {
	for runtime.Inb(serialLineStatus)&0x20 == 0 {
	}
	runtime.Outb(serialData, c)
}

func (serialDevice) SetColor(console.ColorPair) {}
