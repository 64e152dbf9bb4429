package ops

import "github.com/tagcore/tagcore/internal/isa"

// CSR instructions (SYSTEM major opcode, funct3 != 0). The CSR number is
// the I-type immediate field (insn[31:20]).
//
// | csr[11:0] | rs1/zimm | funct3 |  rd  | SYSTEM(0x73) |

func csrNum(insn uint32) uint16 { return uint16(insn >> 20) }

func execCSRRW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	rd := isa.RD(insn)

	var old uint64

	var err error

	if rd != 0 {
		old, err = h.CSR(csrNum(insn))
		if err != nil {
			return 0, err
		}
	}

	newVal, _ := h.GPR(isa.RS1(insn))
	if err := h.SetCSR(csrNum(insn), newVal); err != nil {
		return 0, err
	}

	h.SetGPR(rd, old, 0)

	if h.Serializing() {
		return isa.PCSerialize, nil
	}

	return pc + 4, nil
}

func execCSRRS(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return csrSetClear(h, insn, pc, func(old, mask uint64) uint64 { return old | mask }, isa.RS1(insn) != 0)
}

func execCSRRC(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return csrSetClear(h, insn, pc, func(old, mask uint64) uint64 { return old &^ mask }, isa.RS1(insn) != 0)
}

func csrSetClear(h isa.Hart, insn uint32, pc uint64, combine func(old, mask uint64) uint64, write bool) (uint64, error) {
	old, err := h.CSR(csrNum(insn))
	if err != nil {
		return 0, err
	}

	serializing := false

	if write {
		mask, _ := h.GPR(isa.RS1(insn))
		if err := h.SetCSR(csrNum(insn), combine(old, mask)); err != nil {
			return 0, err
		}

		serializing = h.Serializing()
	}

	h.SetGPR(isa.RD(insn), old, 0)

	if serializing {
		return isa.PCSerialize, nil
	}

	return pc + 4, nil
}

func zimm(insn uint32) uint64 { return uint64(isa.RS1(insn)) }

func execCSRRWI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	rd := isa.RD(insn)

	var old uint64

	var err error

	if rd != 0 {
		old, err = h.CSR(csrNum(insn))
		if err != nil {
			return 0, err
		}
	}

	if err := h.SetCSR(csrNum(insn), zimm(insn)); err != nil {
		return 0, err
	}

	h.SetGPR(rd, old, 0)

	if h.Serializing() {
		return isa.PCSerialize, nil
	}

	return pc + 4, nil
}

func execCSRRSI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return csrImmSetClear(h, insn, pc, func(old, mask uint64) uint64 { return old | mask })
}

func execCSRRCI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return csrImmSetClear(h, insn, pc, func(old, mask uint64) uint64 { return old &^ mask })
}

func csrImmSetClear(h isa.Hart, insn uint32, pc uint64, combine func(old, mask uint64) uint64) (uint64, error) {
	old, err := h.CSR(csrNum(insn))
	if err != nil {
		return 0, err
	}

	serializing := false

	if zimm(insn) != 0 {
		if err := h.SetCSR(csrNum(insn), combine(old, zimm(insn))); err != nil {
			return 0, err
		}

		serializing = h.Serializing()
	}

	h.SetGPR(isa.RD(insn), old, 0)

	if serializing {
		return isa.PCSerialize, nil
	}

	return pc + 4, nil
}
