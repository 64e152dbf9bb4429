// Package ops implements the instruction handlers (C6): one function per
// opcode, each matching the isa.Handler signature
// func(h isa.Hart, insn uint32, pc uint64) (uint64, error).
//
// Every handler follows the same shape: gate on the required extension,
// read operands (propagating register tags where the instruction
// preserves them), perform the tag-checked memory access if any, write
// back a value and a tag, and return the next PC.
package ops

// Base opcode field values (insn & 0x7f).
const (
	opLoad    = 0x03
	opMiscMem = 0x0f
	opOpImm   = 0x13
	opAuipc   = 0x17
	opOpImm32 = 0x1b
	opStore   = 0x23
	opAmo     = 0x2f
	opOp      = 0x33
	opLui     = 0x37
	opOp32    = 0x3b
	opOpFP    = 0x53
	opBranch  = 0x63
	opJalr    = 0x67
	opJal     = 0x6f
	opSys     = 0x73

	opLoadFP  = 0x07
	opStoreFP = 0x27
	opCustom0 = 0x0b // LDCT
	opCustom1 = 0x2b // SDCT
)
