package console

import "golang.org/x/arch/x86/x86asm"

// DecodeInsn disassembles one 32-bit x86 instruction starting at code,
// for an extra diagnostic line a panic banner can print alongside a raw
// EIP: the actual faulting instruction is often enough to place a bug
// without a matching source build on hand.
func DecodeInsn(code []byte) string {
	insn, err := x86asm.Decode(code, 32)
	if err != nil {
		return "<undecodable>"
	}
	return insn.String()
}
