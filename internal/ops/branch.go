package ops

import "github.com/tagcore/tagcore/internal/isa"

// Control transfer instructions: conditional branches, JAL, JALR. Return
// address registers (rd of JAL/JALR) receive tag 0.

func execBranch(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	a := rval(h, isa.RS1(insn))
	b := rval(h, isa.RS2(insn))

	var taken bool

	switch isa.Funct3(insn) {
	case 0b000: // BEQ
		taken = a == b
	case 0b001: // BNE
		taken = a != b
	case 0b100: // BLT
		taken = a < b
	case 0b101: // BGE
		taken = a >= b
	case 0b110: // BLTU
		taken = uint64(a) < uint64(b)
	default: // BGEU
		taken = uint64(a) >= uint64(b)
	}

	if taken {
		return uint64(int64(pc) + isa.ImmB(insn)), nil
	}

	return pc + 4, nil
}

func execJAL(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	h.SetGPR(isa.RD(insn), pc+4, 0)
	return uint64(int64(pc) + isa.ImmJ(insn)), nil
}

func execJALR(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	base, _ := h.GPR(isa.RS1(insn))
	target := uint64(int64(base)+isa.ImmI(insn)) &^ 1

	h.SetGPR(isa.RD(insn), pc+4, 0)

	return target, nil
}
