package console

import (
	"strings"
	"testing"
)

type fakeDevice struct {
	out    strings.Builder
	colors []ColorPair
}

func (f *fakeDevice) WriteByte(c byte) { f.out.WriteByte(c) }
func (f *fakeDevice) SetColor(cp ColorPair) {
	f.colors = append(f.colors, cp)
}

func TestConsoleDuplicatesWrites(t *testing.T) {
	a, b := &fakeDevice{}, &fakeDevice{}
	c := NewConsole(a, b)
	c.Printf("pid=%d", 7)

	if a.out.String() != "pid=7" || b.out.String() != "pid=7" {
		t.Fatalf("expected both devices to receive the same text, got %q and %q", a.out.String(), b.out.String())
	}
}

func TestConsoleSetColorDuplicates(t *testing.T) {
	a, b := &fakeDevice{}, &fakeDevice{}
	c := NewConsole(a, b)
	c.SetColor(ColorPair{Fg: Red, Bg: White})

	if len(a.colors) != 1 || a.colors[0] != (ColorPair{Fg: Red, Bg: White}) {
		t.Fatalf("device a did not receive the color change")
	}
	if len(b.colors) != 1 || b.colors[0] != (ColorPair{Fg: Red, Bg: White}) {
		t.Fatalf("device b did not receive the color change")
	}
}

func TestLogIncludesCallerLocation(t *testing.T) {
	d := &fakeDevice{}
	c := NewConsole(d)
	c.Log(LevelWarn, "disk retry %d", 3)

	out := d.out.String()
	if !strings.HasPrefix(out, "[WARN] disk retry 3 in file ") {
		t.Fatalf("unexpected log line: %q", out)
	}
	if !strings.Contains(out, "console_test.go:") {
		t.Fatalf("expected caller location to name this test file, got %q", out)
	}
}

type fakeArch struct {
	intsOff bool
	halted  bool
}

func (f *fakeArch) IntsEnabled() bool { return !f.intsOff }
func (f *fakeArch) EnableInts()       { f.intsOff = false }
func (f *fakeArch) DisableInts()      { f.intsOff = true }
func (f *fakeArch) Halt()             { f.halted = true }

func TestPanicfBannerAndHalt(t *testing.T) {
	d := &fakeDevice{}
	c := NewConsole(d)
	arch := &fakeArch{}

	c.Panicf(arch, "buddy double free at %#x", 0x1000)

	if !arch.intsOff {
		t.Fatalf("expected Panicf to disable interrupts")
	}
	if !arch.halted {
		t.Fatalf("expected Panicf to halt")
	}
	out := d.out.String()
	if !strings.Contains(out, "KERNEL PANIC:") {
		t.Fatalf("expected a panic banner, got %q", out)
	}
	if !strings.Contains(out, "buddy double free at 0x1000") {
		t.Fatalf("expected the formatted message, got %q", out)
	}
	if !strings.Contains(out, "TRACE ") {
		t.Fatalf("expected at least one stack trace line, got %q", out)
	}
	if !strings.Contains(out, "insn: ") {
		t.Fatalf("expected each trace line to carry a decoded instruction, got %q", out)
	}
	// banner then message color, in that order
	if len(d.colors) < 2 || d.colors[0] != bannerColor || d.colors[1] != messageColor {
		t.Fatalf("expected banner color then message color, got %v", d.colors)
	}
}

func TestDecodeInsnNop(t *testing.T) {
	if got := DecodeInsn([]byte{0x90}); got != "NOP" {
		t.Fatalf("expected NOP, got %q", got)
	}
}

func TestDecodeInsnInvalid(t *testing.T) {
	if got := DecodeInsn(nil); got != "<undecodable>" {
		t.Fatalf("expected the undecodable fallback, got %q", got)
	}
}
