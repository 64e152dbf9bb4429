package ops

import (
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/mmu"
	"github.com/tagcore/tagcore/internal/trap"
)

// C-extension (compressed) instructions. Each 16-bit encoding arrives as
// the low half of insn with the upper half zeroed by the instruction
// cache; every handler here returns pc+2, not pc+4. Quadrant is insn[1:0];
// opC0/opC1/opC2 are registered against it and internally dispatch on
// funct3 and the narrower format-specific fields.
//
// The three-bit compressed register fields (rs1', rs2', rd') name x8-x15;
// cRegP below applies the +8 offset.

func cRegP(field uint32) uint8 { return uint8(field&0x7) + 8 }

func cRdRs1p(insn uint32) uint8 { return cRegP(insn >> 7) }
func cRs2p(insn uint32) uint8   { return cRegP(insn >> 2) }
func cRdRs1(insn uint32) uint8  { return uint8(insn>>7) & 0x1f }
func cRs2(insn uint32) uint8    { return uint8(insn>>2) & 0x1f }

func signExtendC(val uint64, bit int) uint64 {
	shift := 64 - bit
	return uint64(int64(val<<shift) >> shift)
}

// opC0 dispatches quadrant 0: C.ADDI4SPN, C.LW, C.LD, C.SW, C.SD.
func opC0(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch (insn >> 13) & 0x7 {
	case 0b000: // C.ADDI4SPN
		imm := ((insn>>11)&0x3)<<4 | ((insn>>7)&0xf)<<6 | ((insn>>6)&0x1)<<2 | ((insn>>5)&0x1)<<3
		if imm == 0 {
			return 0, trap.IllegalInstruction(insn)
		}

		base, _ := h.GPR(2)
		h.SetGPR(cRs2p(insn), base+uint64(imm), 0)

		return pc + 2, nil
	case 0b010: // C.LW
		return cLoad(h, insn, pc, cImmLW(insn), 4, true)
	case 0b011: // C.LD
		return cLoad(h, insn, pc, cImmLD(insn), 8, false)
	case 0b110: // C.SW
		return cStore(h, insn, pc, cImmLW(insn), 4)
	case 0b111: // C.SD
		return cStore(h, insn, pc, cImmLD(insn), 8)
	default:
		return 0, trap.IllegalInstruction(insn)
	}
}

func cImmLW(insn uint32) uint64 {
	return uint64((insn>>10)&0x7)<<3 | uint64((insn>>6)&0x1)<<2 | uint64((insn>>5)&0x1)<<6
}

func cImmLD(insn uint32) uint64 {
	return uint64((insn>>10)&0x7)<<3 | uint64((insn>>5)&0x3)<<6
}

func cLoad(h isa.Hart, insn uint32, pc uint64, imm uint64, width int, signedWord bool) (uint64, error) {
	base, _ := h.GPR(cRdRs1p(insn))
	addr := base + imm
	m := h.MMU()

	var val uint64

	var err error

	if width == 8 {
		val, err = mmu.Load[uint64](m, addr)
	} else {
		var v32 int32
		v32, err = mmu.LoadSigned[int32](m, addr)
		val = uint64(int64(v32))
	}

	if err != nil {
		return 0, err
	}

	h.SetGPR(cRs2p(insn), val, 0)

	return pc + 2, nil
}

func cStore(h isa.Hart, insn uint32, pc uint64, imm uint64, width int) (uint64, error) {
	base, _ := h.GPR(cRdRs1p(insn))
	addr := base + imm
	src, _ := h.GPR(cRs2p(insn))
	m := h.MMU()

	var err error

	if width == 8 {
		err = mmu.Store(m, addr, src)
	} else {
		err = mmu.Store(m, addr, uint32(src))
	}

	if err != nil {
		return 0, err
	}

	return pc + 2, nil
}

// opC1 dispatches quadrant 1: C.ADDI/C.NOP, C.ADDIW, C.LI, C.ADDI16SP/
// C.LUI, C.SRLI/C.SRAI/C.ANDI/C.SUB/C.XOR/C.OR/C.AND/C.SUBW/C.ADDW,
// C.J, C.BEQZ, C.BNEZ.
func opC1(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch (insn >> 13) & 0x7 {
	case 0b000: // C.ADDI (rd==0 is C.NOP)
		rd := cRdRs1(insn)
		imm := signExtendC(uint64((insn>>12)&0x1)<<5|uint64((insn>>2)&0x1f), 6)
		val, _ := h.GPR(rd)
		h.SetGPR(rd, val+imm, 0)

		return pc + 2, nil
	case 0b001: // C.ADDIW (RV64) / C.JAL (RV32)
		if h.XLen() == 32 {
			return cJump(h, insn, pc, true)
		}

		rd := cRdRs1(insn)
		if rd == 0 {
			return 0, trap.IllegalInstruction(insn)
		}

		imm := signExtendC(uint64((insn>>12)&0x1)<<5|uint64((insn>>2)&0x1f), 6)
		val, _ := h.GPR(rd)
		h.SetGPR(rd, sext32(uint32(val+imm)), 0)

		return pc + 2, nil
	case 0b010: // C.LI
		rd := cRdRs1(insn)
		imm := signExtendC(uint64((insn>>12)&0x1)<<5|uint64((insn>>2)&0x1f), 6)
		h.SetGPR(rd, imm, 0)

		return pc + 2, nil
	case 0b011:
		rd := cRdRs1(insn)

		switch rd {
		case 0:
			return 0, trap.IllegalInstruction(insn)
		case 2: // C.ADDI16SP
			imm := signExtendC(
				uint64((insn>>12)&0x1)<<9|
					uint64((insn>>3)&0x3)<<7|
					uint64((insn>>5)&0x1)<<6|
					uint64((insn>>2)&0x1)<<5|
					uint64((insn>>6)&0x1)<<4,
				10,
			)
			if imm == 0 {
				return 0, trap.IllegalInstruction(insn)
			}

			val, _ := h.GPR(2)
			h.SetGPR(2, val+imm, 0)

			return pc + 2, nil
		default: // C.LUI
			imm := signExtendC(uint64((insn>>12)&0x1)<<17|uint64((insn>>2)&0x1f)<<12, 18)
			if imm == 0 {
				return 0, trap.IllegalInstruction(insn)
			}

			h.SetGPR(rd, imm, 0)

			return pc + 2, nil
		}
	case 0b100:
		return cArith(h, insn, pc)
	case 0b101: // C.J
		return cJump(h, insn, pc, false)
	case 0b110: // C.BEQZ
		return cBranchZ(h, insn, pc, true)
	default: // C.BNEZ
		return cBranchZ(h, insn, pc, false)
	}
}

func cArith(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch (insn >> 10) & 0x3 {
	case 0b00: // C.SRLI
		rd := cRdRs1p(insn)
		shamt := uint((insn>>12)&0x1)<<5 | uint((insn>>2)&0x1f)
		val, _ := h.GPR(rd)
		h.SetGPR(rd, val>>shamt, 0)

		return pc + 2, nil
	case 0b01: // C.SRAI
		rd := cRdRs1p(insn)
		shamt := uint((insn>>12)&0x1)<<5 | uint((insn>>2)&0x1f)
		val, _ := h.GPR(rd)
		h.SetGPR(rd, uint64(int64(val)>>shamt), 0)

		return pc + 2, nil
	case 0b10: // C.ANDI
		rd := cRdRs1p(insn)
		imm := signExtendC(uint64((insn>>12)&0x1)<<5|uint64((insn>>2)&0x1f), 6)
		val, _ := h.GPR(rd)
		h.SetGPR(rd, val&imm, 0)

		return pc + 2, nil
	default:
		rd := cRdRs1p(insn)
		rs2 := cRs2p(insn)
		a, _ := h.GPR(rd)
		b, _ := h.GPR(rs2)

		wide := (insn>>12)&0x1 != 0

		var result uint64

		switch (insn >> 5) & 0x3 {
		case 0b00:
			if wide {
				result = sext32(uint32(a) - uint32(b)) // C.SUBW
			} else {
				result = a - b // C.SUB
			}
		case 0b01:
			if wide {
				result = sext32(uint32(a) + uint32(b)) // C.ADDW
			} else {
				result = a ^ b // C.XOR
			}
		case 0b10:
			if wide {
				return 0, trap.IllegalInstruction(insn)
			}

			result = a | b // C.OR
		default:
			if wide {
				return 0, trap.IllegalInstruction(insn)
			}

			result = a & b // C.AND
		}

		h.SetGPR(rd, result, 0)

		return pc + 2, nil
	}
}

func cJump(h isa.Hart, insn uint32, pc uint64, link bool) (uint64, error) {
	imm := signExtendC(
		uint64((insn>>12)&0x1)<<11|
			uint64((insn>>8)&0x1)<<10|
			uint64((insn>>9)&0x3)<<8|
			uint64((insn>>6)&0x1)<<7|
			uint64((insn>>7)&0x1)<<6|
			uint64((insn>>2)&0x1)<<5|
			uint64((insn>>11)&0x1)<<4|
			uint64((insn>>3)&0x7)<<1,
		12,
	)

	if link {
		h.SetGPR(1, pc+2, 0)
	}

	return uint64(int64(pc) + int64(imm)), nil
}

func cBranchZ(h isa.Hart, insn uint32, pc uint64, eqZero bool) (uint64, error) {
	imm := signExtendC(
		uint64((insn>>12)&0x1)<<8|
			uint64((insn>>5)&0x3)<<6|
			uint64((insn>>2)&0x1)<<5|
			uint64((insn>>10)&0x3)<<3|
			uint64((insn>>3)&0x3)<<1,
		9,
	)

	val, _ := h.GPR(cRdRs1p(insn))

	taken := val == 0
	if !eqZero {
		taken = val != 0
	}

	if taken {
		return uint64(int64(pc) + int64(imm)), nil
	}

	return pc + 2, nil
}

// opC2 dispatches quadrant 2: C.SLLI, C.MV, C.ADD, C.JR, C.JALR, C.EBREAK.
func opC2(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch (insn >> 13) & 0x7 {
	case 0b000: // C.SLLI
		rd := cRdRs1(insn)
		shamt := uint((insn>>12)&0x1)<<5 | uint((insn>>2)&0x1f)
		val, _ := h.GPR(rd)
		h.SetGPR(rd, val<<shamt, 0)

		return pc + 2, nil
	case 0b100:
		rd := cRdRs1(insn)
		rs2 := cRs2(insn)
		wide := (insn>>12)&0x1 != 0

		switch {
		case !wide && rs2 == 0: // C.JR
			if rd == 0 {
				return 0, trap.IllegalInstruction(insn)
			}

			target, _ := h.GPR(rd)

			return target &^ 1, nil
		case wide && rs2 == 0 && rd == 0: // C.EBREAK
			return 0, trap.Breakpoint()
		case wide && rs2 == 0: // C.JALR
			target, _ := h.GPR(rd)
			h.SetGPR(1, pc+2, 0)

			return target &^ 1, nil
		case !wide: // C.MV
			val, _ := h.GPR(rs2)
			h.SetGPR(rd, val, 0)

			return pc + 2, nil
		default: // C.ADD
			a, _ := h.GPR(rd)
			b, _ := h.GPR(rs2)
			h.SetGPR(rd, a+b, 0)

			return pc + 2, nil
		}
	default:
		return 0, trap.IllegalInstruction(insn)
	}
}
