package ops

import (
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/mmu"
	"github.com/tagcore/tagcore/internal/xlat"
)

// Loads and stores (LOAD/STORE major opcodes) and the custom tagged
// load/store instructions LDCT/SDCT.
//
// I-type (LOAD):
// | imm[11:0] | rs1 | funct3 |  rd  | LOAD(0x03) |
// S-type (STORE):
// | imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | STORE(0x23) |

func effAddr(h isa.Hart, insn uint32, imm int64) uint64 {
	base, _ := h.GPR(isa.RS1(insn))
	return uint64(int64(base) + imm)
}

func execLoad(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	addr := effAddr(h, insn, isa.ImmI(insn))
	m := h.MMU()

	switch isa.Funct3(insn) {
	case 0b000: // LB
		v, err := mmu.LoadSigned[int8](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetGPR(isa.RD(insn), uint64(v), 0)
	case 0b001: // LH
		v, err := mmu.LoadSigned[int16](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetGPR(isa.RD(insn), uint64(v), 0)
	case 0b010: // LW
		v, err := mmu.LoadSigned[int32](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetGPR(isa.RD(insn), uint64(v), 0)
	case 0b011: // LD
		v, err := mmu.Load[uint64](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetGPR(isa.RD(insn), v, 0)
	case 0b100: // LBU
		v, err := mmu.Load[uint8](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetGPR(isa.RD(insn), uint64(v), 0)
	case 0b101: // LHU
		v, err := mmu.Load[uint16](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetGPR(isa.RD(insn), uint64(v), 0)
	default: // LWU
		v, err := mmu.Load[uint32](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetGPR(isa.RD(insn), uint64(v), 0)
	}

	return pc + 4, nil
}

func execStore(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	addr := effAddr(h, insn, isa.ImmS(insn))
	src, _ := h.GPR(isa.RS2(insn))
	m := h.MMU()

	var err error

	switch isa.Funct3(insn) {
	case 0b000: // SB
		err = mmu.Store(m, addr, uint8(src))
	case 0b001: // SH
		err = mmu.Store(m, addr, uint16(src))
	case 0b010: // SW
		err = mmu.Store(m, addr, uint32(src))
	default: // SD
		err = mmu.Store(m, addr, src)
	}

	if err != nil {
		return 0, err
	}

	return pc + 4, nil
}

// LDCT rd, imm(rs1): tagged 64-bit load. The destination register's tag
// becomes the memory word's tag, rather than being cleared.
//
// Encoding: I-type under the custom-0 opcode, funct3 distinguishes it from
// any sibling custom-0 instruction this simulator might grow.
func opLDCT(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	addr := effAddr(h, insn, isa.ImmI(insn))
	m := h.MMU()

	paddr, err := m.Translate(addr, 8, xlat.AccessLoad)
	if err != nil {
		return 0, err
	}

	memTag, err := m.TagRead(paddr)
	if err != nil {
		return 0, err
	}

	if err := m.LoadTagCheck(memTag, addr); err != nil {
		return 0, err
	}

	val, err := mmu.LoadUint[uint64](m.RAM, paddr)
	if err != nil {
		return 0, err
	}

	h.SetGPR(isa.RD(insn), val, memTag)

	return pc + 4, nil
}

// SDCT rs2, imm(rs1): tagged 64-bit store. Writes the source register's
// tag into memory, rather than clearing it.
func opSDCT(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	addr := effAddr(h, insn, isa.ImmS(insn))
	m := h.MMU()

	srcVal, srcTag := h.GPR(isa.RS2(insn))

	paddr, err := m.Translate(addr, 8, xlat.AccessStore)
	if err != nil {
		return 0, err
	}

	memTag, err := m.TagRead(paddr)
	if err != nil {
		return 0, err
	}

	if err := m.StoreTagCheck(memTag, addr); err != nil {
		return 0, err
	}

	if err := mmu.StoreUint(m.RAM, paddr, srcVal); err != nil {
		return 0, err
	}

	if err := m.TagWrite(paddr, srcTag); err != nil {
		return 0, err
	}

	return pc + 4, nil
}
