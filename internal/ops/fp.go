package ops

import (
	"math"

	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/mmu"
	"github.com/tagcore/tagcore/internal/trap"
)

// Floating point (F/D extensions). Single-precision values are stored
// NaN-boxed in the 64-bit FPR file, per the standard RISC-V convention:
// the upper 32 bits of a single-precision result are all ones.

const nanBox32 = uint64(0xffffffff00000000)

func f32(h isa.Hart, reg uint8) float32 {
	return math.Float32frombits(uint32(h.FPR(reg)))
}

func setF32(h isa.Hart, reg uint8, v float32) {
	h.SetFPR(reg, nanBox32|uint64(math.Float32bits(v)))
	h.MarkFPDirty()
}

func f64(h isa.Hart, reg uint8) float64 {
	return math.Float64frombits(h.FPR(reg))
}

func setF64(h isa.Hart, reg uint8, v float64) {
	h.SetFPR(reg, math.Float64bits(v))
	h.MarkFPDirty()
}

func execLoadFP(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	addr := effAddr(h, insn, isa.ImmI(insn))
	m := h.MMU()
	rd := isa.RD(insn)

	switch isa.Funct3(insn) {
	case 0b010: // FLW
		v, err := mmu.Load[uint32](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetFPR(rd, nanBox32|uint64(v))
	default: // FLD
		v, err := mmu.Load[uint64](m, addr)
		if err != nil {
			return 0, err
		}

		h.SetFPR(rd, v)
	}

	h.MarkFPDirty()

	return pc + 4, nil
}

func execStoreFP(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	addr := effAddr(h, insn, isa.ImmS(insn))
	m := h.MMU()
	src := h.FPR(isa.RS2(insn))

	var err error

	if isa.Funct3(insn) == 0b010 {
		err = mmu.Store(m, addr, uint32(src)) // FSW
	} else {
		err = mmu.Store(m, addr, src) // FSD
	}

	if err != nil {
		return 0, err
	}

	return pc + 4, nil
}

// opFP dispatches the OP-FP major opcode on funct7 (insn[31:25]), which
// selects the operation and, for FADD/SUB/MUL/DIV/FEQ/FLT/FLE/FCVT, the
// precision (bit 0 of funct7: 0 = single, 1 = double).
func opFP(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	funct7 := insn >> 25
	rd, rs1, rs2 := isa.RD(insn), isa.RS1(insn), isa.RS2(insn)

	switch funct7 {
	case 0b0000000, 0b0000001: // FADD
		return fpArith(h, insn, pc, funct7&1 == 1, func(a, b float64) float64 { return a + b })
	case 0b0000100, 0b0000101: // FSUB
		return fpArith(h, insn, pc, funct7&1 == 1, func(a, b float64) float64 { return a - b })
	case 0b0001000, 0b0001001: // FMUL
		return fpArith(h, insn, pc, funct7&1 == 1, func(a, b float64) float64 { return a * b })
	case 0b0001100, 0b0001101: // FDIV
		return fpArith(h, insn, pc, funct7&1 == 1, func(a, b float64) float64 { return a / b })
	case 0b1010000: // FEQ.S/FLT.S/FLE.S
		return fpCompare(h, insn, pc, false)
	case 0b1010001: // FEQ.D/FLT.D/FLE.D
		return fpCompare(h, insn, pc, true)
	case 0b1100000: // FCVT.W.S/FCVT.WU.S/FCVT.L.S/FCVT.LU.S
		return fpToInt(h, insn, pc, false)
	case 0b1100001: // FCVT.W.D/...
		return fpToInt(h, insn, pc, true)
	case 0b1101000: // FCVT.S.W/...
		return fpFromInt(h, insn, pc, false)
	case 0b1101001: // FCVT.D.W/...
		return fpFromInt(h, insn, pc, true)
	case 0b1110000: // FMV.X.W (rs2==0,funct3==0) / FCLASS.S (funct3==1)
		if isa.Funct3(insn) == 0 {
			bits := uint32(h.FPR(rs1))
			h.SetGPR(rd, sext32(bits), 0)
		} else {
			h.SetGPR(rd, 0, 0) // FCLASS.S: classification not modeled
		}

		return pc + 4, nil
	case 0b1111000: // FMV.W.X
		val, _ := h.GPR(rs1)
		h.SetFPR(rd, nanBox32|uint64(uint32(val)))
		h.MarkFPDirty()

		return pc + 4, nil
	case 0b1110001: // FMV.X.D / FCLASS.D
		if isa.Funct3(insn) == 0 {
			h.SetGPR(rd, h.FPR(rs1), 0)
		} else {
			h.SetGPR(rd, 0, 0)
		}

		return pc + 4, nil
	case 0b1111001: // FMV.D.X
		val, _ := h.GPR(rs1)
		h.SetFPR(rd, val)
		h.MarkFPDirty()

		return pc + 4, nil
	default:
		_ = rs2
		return 0, trap.IllegalInstruction(insn)
	}
}

func fpArith(h isa.Hart, insn uint32, pc uint64, double bool, op func(a, b float64) float64) (uint64, error) {
	rd, rs1, rs2 := isa.RD(insn), isa.RS1(insn), isa.RS2(insn)

	if double {
		setF64(h, rd, op(f64(h, rs1), f64(h, rs2)))
	} else {
		setF32(h, rd, float32(op(float64(f32(h, rs1)), float64(f32(h, rs2)))))
	}

	return pc + 4, nil
}

func fpCompare(h isa.Hart, insn uint32, pc uint64, double bool) (uint64, error) {
	rd, rs1, rs2 := isa.RD(insn), isa.RS1(insn), isa.RS2(insn)

	var a, b float64

	if double {
		a, b = f64(h, rs1), f64(h, rs2)
	} else {
		a, b = float64(f32(h, rs1)), float64(f32(h, rs2))
	}

	var result bool

	switch isa.Funct3(insn) {
	case 0b010: // FEQ
		result = a == b
	case 0b001: // FLT
		result = a < b
	default: // FLE
		result = a <= b
	}

	var bit uint64
	if result {
		bit = 1
	}

	h.SetGPR(rd, bit, 0)

	return pc + 4, nil
}

func fpToInt(h isa.Hart, insn uint32, pc uint64, double bool) (uint64, error) {
	rd, rs1, rs2 := isa.RD(insn), isa.RS1(insn), isa.RS2(insn)

	var v float64
	if double {
		v = f64(h, rs1)
	} else {
		v = float64(f32(h, rs1))
	}

	var result uint64

	switch rs2 {
	case 0: // W
		result = sext32(uint32(int32(v)))
	case 1: // WU
		result = sext32(uint32(v))
	case 2: // L
		result = uint64(int64(v))
	default: // LU
		result = uint64(v)
	}

	h.SetGPR(rd, result, 0)

	return pc + 4, nil
}

func fpFromInt(h isa.Hart, insn uint32, pc uint64, double bool) (uint64, error) {
	rd, rs1, rs2 := isa.RD(insn), isa.RS1(insn), isa.RS2(insn)
	ival, _ := h.GPR(rs1)

	var v float64

	switch rs2 {
	case 0: // W
		v = float64(int32(ival))
	case 1: // WU
		v = float64(uint32(ival))
	case 2: // L
		v = float64(int64(ival))
	default: // LU
		v = float64(ival)
	}

	if double {
		setF64(h, rd, v)
	} else {
		setF32(h, rd, float32(v))
	}

	return pc + 4, nil
}
