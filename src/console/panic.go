package console

import (
	"runtime"
	"unsafe"
)

import "github.com/farberbrodsky/tinylittleos/src/lock"

// Arch is what Panicf needs from the hosting hardware: interrupts must
// be off before the banner prints, since a panicking kernel never
// resumes, and Halt parks the CPU once the trace has been written.
type Arch interface {
	lock.Arch
	Halt()
}

var bannerColor = ColorPair{Fg: Red, Bg: White}
var messageColor = ColorPair{Fg: Black, Bg: White}

// Panicf prints a red-on-white "KERNEL PANIC" banner, the formatted
// message in black-on-white, a call stack standing in for the original
// kernel's hand-walked EBP chain, and halts. It never returns.
func (c *Console_t) Panicf(arch Arch, format string, args ...any) {
	arch.DisableInts()
	c.SetColor(bannerColor)
	c.WriteString("\nKERNEL PANIC: ")
	c.SetColor(messageColor)
	c.Printf(format, args...)
	c.WriteByte('\n')
	dumpTrace(c)
	arch.Halt()
}

// dumpTrace walks the call stack via runtime.Callers/CallersFrames, the
// same mechanism the scheduler-adjacent caller-tracking helper elsewhere
// in this codebase's lineage uses to print an ancestor chain, in place of
// the raw EIP-by-EIP EBP walk a hosted Go program has no equivalent of.
// Each frame's return address is also disassembled with DecodeInsn, the
// nearest a hosted build gets to printing the faulting instruction
// alongside the raw EIP a real x86 panic banner shows.
func dumpTrace(c *Console_t) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		c.Printf("TRACE %s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		c.Printf("  insn: %s\n", DecodeInsn(codeAt(fr.PC)))
		if !more {
			break
		}
	}
}

// codeAt reads the raw bytes at pc for DecodeInsn to disassemble. A real
// x86 instruction is at most 15 bytes; insnWindow leaves room for
// DecodeInsn to fail past the real instruction's end rather than read
// short.
const insnWindow = 16

func codeAt(pc uintptr) []byte {
	if pc == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(pc)), insnWindow)
}
