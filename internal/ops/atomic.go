package ops

import (
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/mmu"
	"github.com/tagcore/tagcore/internal/xlat"
)

// Atomic memory operations and load-reserved/store-conditional (A
// extension). Encoding: AMO major opcode 0x2f, funct3 selects width
// (0b010 = *.W, 0b011 = *.D), funct7[6:2] selects the operation.
//
// | funct5 | aq | rl | rs2 | rs1 | funct3 |  rd  | AMO(0x2f) |
// |31    27|26  |25  |24 20|19 15|14    12|11   7|6         0|

const (
	amoLR      = 0b00010
	amoSC      = 0b00011
	amoSwap    = 0b00001
	amoAdd     = 0b00000
	amoXor     = 0b00100
	amoOr      = 0b01000
	amoAnd     = 0b01100
	amoMin     = 0b10000
	amoMax     = 0b10100
	amoMinU    = 0b11000
	amoMaxU    = 0b11100
)

func funct5(insn uint32) uint32 { return insn >> 27 & 0x1f }

// opAMO dispatches every AMO*.W/AMO*.D and LR/SC instruction. Non-tagged
// atomics clear the tag of the enclosing aligned word they touch (the
// canonical rule this simulator follows; see DESIGN.md Open Question 1).
func opAMO(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	rs1, _ := h.GPR(isa.RS1(insn))
	addr := rs1

	width := 4
	if isa.Funct3(insn) == 0b011 {
		width = 8
	}

	m := h.MMU()
	op := funct5(insn)

	switch op {
	case amoLR:
		return execLR(h, insn, pc, addr, width, m)
	case amoSC:
		return execSC(h, insn, pc, addr, width, m)
	default:
		return execAMORMW(h, insn, pc, addr, width, op, m)
	}
}

func execLR(h isa.Hart, insn uint32, pc uint64, addr uint64, width int, m *mmu.DataMMU) (uint64, error) {
	paddr, err := m.Translate(addr, width, xlat.AccessLoad)
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

	var val uint64

	if width == 8 {
		val, err = mmu.LoadUint[uint64](m.RAM, paddr)
	} else {
		var v32 uint32
		v32, err = mmu.LoadUint[uint32](m.RAM, paddr)
		val = uint64(int64(int32(v32)))
	}

	if err != nil {
		return 0, err
	}

	h.SetLoadReservation(addr)
	h.SetGPR(isa.RD(insn), val, 0)

	return pc + 4, nil
}

func execSC(h isa.Hart, insn uint32, pc uint64, addr uint64, width int, m *mmu.DataMMU) (uint64, error) {
	reserved, ok := h.LoadReservation()
	if !ok || reserved != addr {
		h.SetGPR(isa.RD(insn), 1, 0)
		return pc + 4, nil
	}

	src, _ := h.GPR(isa.RS2(insn))

	paddr, err := m.Translate(addr, width, xlat.AccessStore)
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

	if width == 8 {
		err = mmu.StoreUint(m.RAM, paddr, src)
	} else {
		err = mmu.StoreUint(m.RAM, paddr, uint32(src))
	}

	if err != nil {
		return 0, err
	}

	// The enclosing aligned doubleword's tag is cleared on success, even
	// for the word-width SC, matching the reference's "address & ~7"
	// rule for sub-doubleword atomics.
	if err := m.TagWrite(paddr, 0); err != nil {
		return 0, err
	}

	h.SetGPR(isa.RD(insn), 0, 0)

	return pc + 4, nil
}

func execAMORMW(h isa.Hart, insn uint32, pc uint64, addr uint64, width int, op uint32, m *mmu.DataMMU) (uint64, error) {
	kind := xlat.AccessLoad // translation permission is really read+write; checked once, reused below

	paddr, err := m.Translate(addr, width, kind)
	if err != nil {
		return 0, err
	}

	memTag, err := m.TagRead(paddr)
	if err != nil {
		return 0, err
	}

	if err := m.LoadStoreTagCheck(memTag, addr); err != nil {
		return 0, err
	}

	src, _ := h.GPR(isa.RS2(insn))

	var loaded int64

	if width == 8 {
		v, err := mmu.LoadUint[uint64](m.RAM, paddr)
		if err != nil {
			return 0, err
		}

		loaded = int64(v)
	} else {
		v, err := mmu.LoadUint[uint32](m.RAM, paddr)
		if err != nil {
			return 0, err
		}

		loaded = int64(int32(v))
	}

	result := amoCompute(op, loaded, int64(src), width)

	if width == 8 {
		err = mmu.StoreUint(m.RAM, paddr, uint64(result))
	} else {
		err = mmu.StoreUint(m.RAM, paddr, uint32(result))
	}

	if err != nil {
		return 0, err
	}

	if err := m.TagWrite(paddr, 0); err != nil {
		return 0, err
	}

	var retVal uint64
	if width == 8 {
		retVal = uint64(loaded)
	} else {
		retVal = sext32(uint32(loaded))
	}

	h.SetGPR(isa.RD(insn), retVal, 0)

	return pc + 4, nil
}

func amoCompute(op uint32, a, b int64, width int) int64 {
	switch op {
	case amoSwap:
		return b
	case amoAdd:
		return a + b
	case amoXor:
		return a ^ b
	case amoOr:
		return a | b
	case amoAnd:
		return a & b
	case amoMin:
		if a < b {
			return a
		}

		return b
	case amoMax:
		if a > b {
			return a
		}

		return b
	case amoMinU:
		ua, ub := unsignedOf(a, width), unsignedOf(b, width)
		if ua < ub {
			return a
		}

		return b
	default: // amoMaxU
		ua, ub := unsignedOf(a, width), unsignedOf(b, width)
		if ua > ub {
			return a
		}

		return b
	}
}

func unsignedOf(v int64, width int) uint64 {
	if width == 4 {
		return uint64(uint32(v))
	}

	return uint64(v)
}
