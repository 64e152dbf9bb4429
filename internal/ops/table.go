package ops

import "github.com/tagcore/tagcore/internal/isa"

// FENCE/FENCE.I (MISC-MEM, opcode 0x0f): this simulator executes every
// hart in strict program order against a single shared memory image, so
// both forms are no-ops beyond advancing the PC.
func opFence(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return pc + 4, nil
}

// dispatchOpImm, dispatchOpBase, dispatchOpImm32, and dispatchOp32Base
// route within their opcode's base (non-M-extension) instructions, which
// alu.go implements as one function per funct3 rather than a single
// switch.

func dispatchOpImm(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch isa.Funct3(insn) {
	case 0b000:
		return opAddI(h, insn, pc)
	case 0b010:
		return opSLTI(h, insn, pc)
	case 0b011:
		return opSLTIU(h, insn, pc)
	case 0b100:
		return opXorI(h, insn, pc)
	case 0b110:
		return opOrI(h, insn, pc)
	case 0b111:
		return opAndI(h, insn, pc)
	case 0b001:
		return opSLLI(h, insn, pc)
	default: // 0b101: SRLI/SRAI, distinguished internally on funct7 bit5
		return opSRLI(h, insn, pc)
	}
}

func dispatchOpBase(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch isa.Funct3(insn) {
	case 0b000: // ADD/SUB, distinguished internally
		return opAdd(h, insn, pc)
	case 0b001:
		return opSLL(h, insn, pc)
	case 0b010:
		return opSLT(h, insn, pc)
	case 0b011:
		return opSLTU(h, insn, pc)
	case 0b100:
		return opXor(h, insn, pc)
	case 0b101: // SRL/SRA, distinguished internally
		return opSR(h, insn, pc)
	case 0b110:
		return opOr(h, insn, pc)
	default:
		return opAnd(h, insn, pc)
	}
}

func dispatchOpImm32(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch isa.Funct3(insn) {
	case 0b000:
		return opAddIW(h, insn, pc)
	case 0b001:
		return opSLLIW(h, insn, pc)
	default: // 0b101: SRLIW/SRAIW
		return opSRLIW(h, insn, pc)
	}
}

func dispatchOp32Base(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch isa.Funct3(insn) {
	case 0b000: // ADDW/SUBW
		return opAddW(h, insn, pc)
	case 0b001:
		return opSLLW(h, insn, pc)
	default: // 0b101: SRLW/SRAW
		return opSRW(h, insn, pc)
	}
}

func dispatchSystem(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch isa.Funct3(insn) {
	case 0b000:
		return opSystem(h, insn, pc)
	case 0b001:
		return execCSRRW(h, insn, pc)
	case 0b010:
		return execCSRRS(h, insn, pc)
	case 0b011:
		return execCSRRC(h, insn, pc)
	case 0b101:
		return execCSRRWI(h, insn, pc)
	case 0b110:
		return execCSRRSI(h, insn, pc)
	default: // 0b111
		return execCSRRCI(h, insn, pc)
	}
}

const bit25 = uint32(1) << 25

// All returns every instruction descriptor this simulator implements,
// tagged with the extension that must be enabled for it to be wired into
// a hart's decode table. internal/hart filters this list against the
// hart's parsed ISA string before calling decode.Build.
func All() []isa.Descriptor {
	return []isa.Descriptor{
		{Name: "fence", Mask: 0x7f, Match: 0x0f, RV32: opFence, RV64: opFence, Ext: isa.ExtI},
		{Name: "load", Mask: 0x7f, Match: 0x03, RV32: execLoad, RV64: execLoad, Ext: isa.ExtI},
		{Name: "store", Mask: 0x7f, Match: 0x23, RV32: execStore, RV64: execStore, Ext: isa.ExtI},
		{Name: "op-imm", Mask: 0x7f, Match: 0x13, RV32: dispatchOpImm, RV64: dispatchOpImm, Ext: isa.ExtI},
		{Name: "auipc", Mask: 0x7f, Match: 0x17, RV32: execAUIPC, RV64: execAUIPC, Ext: isa.ExtI},
		{Name: "op-imm-32", Mask: 0x7f, Match: 0x1b, RV64: dispatchOpImm32, Ext: isa.ExtI},
		{Name: "op", Mask: 0x7f | bit25, Match: 0x33, RV32: dispatchOpBase, RV64: dispatchOpBase, Ext: isa.ExtI},
		{Name: "op-muldiv", Mask: 0x7f | bit25, Match: 0x33 | bit25, RV32: opMul, RV64: opMul, Ext: isa.ExtM},
		{Name: "lui", Mask: 0x7f, Match: 0x37, RV32: execLUI, RV64: execLUI, Ext: isa.ExtI},
		{Name: "op-32", Mask: 0x7f | bit25, Match: 0x3b, RV64: dispatchOp32Base, Ext: isa.ExtI},
		{Name: "op-32-muldiv", Mask: 0x7f | bit25, Match: 0x3b | bit25, RV64: opMulW, Ext: isa.ExtM},
		{Name: "load-fp", Mask: 0x7f, Match: 0x07, RV32: execLoadFP, RV64: execLoadFP, Ext: isa.ExtF},
		{Name: "store-fp", Mask: 0x7f, Match: 0x27, RV32: execStoreFP, RV64: execStoreFP, Ext: isa.ExtF},
		{Name: "op-fp", Mask: 0x7f, Match: 0x53, RV32: opFP, RV64: opFP, Ext: isa.ExtF},
		{Name: "amo", Mask: 0x7f, Match: 0x2f, RV32: opAMO, RV64: opAMO, Ext: isa.ExtA},
		{Name: "branch", Mask: 0x7f, Match: 0x63, RV32: execBranch, RV64: execBranch, Ext: isa.ExtI},
		{Name: "jalr", Mask: 0x707f, Match: 0x67, RV32: execJALR, RV64: execJALR, Ext: isa.ExtI},
		{Name: "jal", Mask: 0x7f, Match: 0x6f, RV32: execJAL, RV64: execJAL, Ext: isa.ExtI},
		{Name: "system", Mask: 0x7f, Match: 0x73, RV32: dispatchSystem, RV64: dispatchSystem, Ext: isa.ExtI},
		{Name: "ldct", Mask: 0x7f, Match: 0x0b, RV32: opLDCT, RV64: opLDCT, Ext: isa.ExtI},
		{Name: "sdct", Mask: 0x7f, Match: 0x2b, RV32: opSDCT, RV64: opSDCT, Ext: isa.ExtI},
		{Name: "c0", Mask: 0x3, Match: 0x0, RV32: opC0, RV64: opC0, Ext: isa.ExtC},
		{Name: "c1", Mask: 0x3, Match: 0x1, RV32: opC1, RV64: opC1, Ext: isa.ExtC},
		{Name: "c2", Mask: 0x3, Match: 0x2, RV32: opC2, RV64: opC2, Ext: isa.ExtC},
	}
}
