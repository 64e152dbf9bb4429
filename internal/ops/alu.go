package ops

import (
	"github.com/tagcore/tagcore/internal/isa"
)

// Integer register-register and register-immediate ALU instructions.
// All of them clear the destination register's tag (WRITE_RD semantics);
// none of them read or propagate tags.

func rval(h isa.Hart, reg uint8) int64 {
	v, _ := h.GPR(reg)
	return int64(v)
}

func uval(h isa.Hart, reg uint8) uint64 {
	v, _ := h.GPR(reg)
	return v
}

// writeRD writes val to insn's destination register (clearing its tag)
// and returns the fallthrough next PC, pc+4 (the length of every
// non-compressed instruction this package decodes).
func writeRD(h isa.Hart, pc uint64, insn uint32, val uint64) (uint64, error) {
	h.SetGPR(isa.RD(insn), val, 0)
	return pc + 4, nil
}

// R-type: funct7/funct3 select the operation within the OP major opcode.
//
// | funct7  | rs2 | rs1 | funct3 |  rd  | OP(0x33) |
// |31     25|24 20|19 15|14    12|11   7|6        0|

func opAdd(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch {
	case isSub(insn):
		return writeRD(h, pc, insn, uint64(rval(h, isa.RS1(insn))-rval(h, isa.RS2(insn))))
	default:
		return writeRD(h, pc, insn, uint64(rval(h, isa.RS1(insn))+rval(h, isa.RS2(insn))))
	}
}

func isSub(insn uint32) bool { return isa.Funct7(insn)&0x20 != 0 }

func opSLL(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	shamt := uval(h, isa.RS2(insn)) & 0x3f
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))<<shamt)
}

func opSLT(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	v := int64(0)
	if rval(h, isa.RS1(insn)) < rval(h, isa.RS2(insn)) {
		v = 1
	}

	return writeRD(h, pc, insn, uint64(v))
}

func opSLTU(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	v := uint64(0)
	if uval(h, isa.RS1(insn)) < uval(h, isa.RS2(insn)) {
		v = 1
	}

	return writeRD(h, pc, insn, v)
}

func opXor(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))^uval(h, isa.RS2(insn)))
}

func opSR(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	shamt := uval(h, isa.RS2(insn)) & 0x3f
	if isa.Funct7(insn)&0x20 != 0 {
		return writeRD(h, pc, insn, uint64(rval(h, isa.RS1(insn))>>shamt))
	}

	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))>>shamt)
}

func opOr(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))|uval(h, isa.RS2(insn)))
}

func opAnd(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))&uval(h, isa.RS2(insn)))
}

// Immediate forms (OP-IMM, opcode 0x13).

func opAddI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uint64(rval(h, isa.RS1(insn))+isa.ImmI(insn)))
}

func opSLTI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	v := int64(0)
	if rval(h, isa.RS1(insn)) < isa.ImmI(insn) {
		v = 1
	}

	return writeRD(h, pc, insn, uint64(v))
}

func opSLTIU(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	v := uint64(0)
	if uval(h, isa.RS1(insn)) < uint64(isa.ImmI(insn)) {
		v = 1
	}

	return writeRD(h, pc, insn, v)
}

func opXorI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))^uint64(isa.ImmI(insn)))
}

func opOrI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))|uint64(isa.ImmI(insn)))
}

func opAndI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))&uint64(isa.ImmI(insn)))
}

func opSLLI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))<<isa.Shamt(insn))
}

func opSRLI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	if isa.Funct7(insn)&0x20 != 0 {
		return writeRD(h, pc, insn, uint64(rval(h, isa.RS1(insn))>>isa.Shamt(insn)))
	}

	return writeRD(h, pc, insn, uval(h, isa.RS1(insn))>>isa.Shamt(insn))
}

// 32-bit *W forms (OP-32/OP-IMM-32), RV64 only: operate on the low 32
// bits and sign-extend the result to 64.

func sext32(v uint32) uint64 { return uint64(int64(int32(v))) }

func opAddW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	var v uint32
	if isSub(insn) {
		v = uint32(uval(h, isa.RS1(insn))) - uint32(uval(h, isa.RS2(insn)))
	} else {
		v = uint32(uval(h, isa.RS1(insn))) + uint32(uval(h, isa.RS2(insn)))
	}

	return writeRD(h, pc, insn, sext32(v))
}

func opSLLW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	shamt := uval(h, isa.RS2(insn)) & 0x1f
	return writeRD(h, pc, insn, sext32(uint32(uval(h, isa.RS1(insn)))<<shamt))
}

func opSRW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	shamt := uval(h, isa.RS2(insn)) & 0x1f
	v := uint32(uval(h, isa.RS1(insn)))

	if isa.Funct7(insn)&0x20 != 0 {
		return writeRD(h, pc, insn, sext32(uint32(int32(v)>>shamt)))
	}

	return writeRD(h, pc, insn, sext32(v>>shamt))
}

func opAddIW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	v := uint32(uval(h, isa.RS1(insn))) + uint32(isa.ImmI(insn))
	return writeRD(h, pc, insn, sext32(v))
}

func opSLLIW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, sext32(uint32(uval(h, isa.RS1(insn)))<<(isa.Shamt(insn)&0x1f)))
}

func opSRLIW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	shamt := isa.Shamt(insn) & 0x1f
	v := uint32(uval(h, isa.RS1(insn)))

	if isa.Funct7(insn)&0x20 != 0 {
		return writeRD(h, pc, insn, sext32(uint32(int32(v)>>shamt)))
	}

	return writeRD(h, pc, insn, sext32(v>>shamt))
}

// LUI/AUIPC (U-type).

func execLUI(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, uint64(isa.ImmU(insn)))
}

func execAUIPC(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return writeRD(h, pc, insn, pc+uint64(isa.ImmU(insn)))
}

// Multiply/divide (M extension).

func opMul(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	switch isa.Funct3(insn) {
	case 0b000: // MUL
		return writeRD(h, pc, insn, uint64(rval(h, isa.RS1(insn))*rval(h, isa.RS2(insn))))
	case 0b001: // MULH
		return writeRD(h, pc, insn, uint64(mulhSigned(rval(h, isa.RS1(insn)), rval(h, isa.RS2(insn)))))
	case 0b010: // MULHSU
		return writeRD(h, pc, insn, uint64(mulhSignedUnsigned(rval(h, isa.RS1(insn)), uval(h, isa.RS2(insn)))))
	case 0b011: // MULHU
		return writeRD(h, pc, insn, mulhUnsigned(uval(h, isa.RS1(insn)), uval(h, isa.RS2(insn))))
	case 0b100: // DIV
		return writeRD(h, pc, insn, uint64(divSigned(rval(h, isa.RS1(insn)), rval(h, isa.RS2(insn)))))
	case 0b101: // DIVU
		return writeRD(h, pc, insn, divUnsigned(uval(h, isa.RS1(insn)), uval(h, isa.RS2(insn))))
	case 0b110: // REM
		return writeRD(h, pc, insn, uint64(remSigned(rval(h, isa.RS1(insn)), rval(h, isa.RS2(insn)))))
	default: // REMU
		return writeRD(h, pc, insn, remUnsigned(uval(h, isa.RS1(insn)), uval(h, isa.RS2(insn))))
	}
}

func opMulW(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	a := int32(uval(h, isa.RS1(insn)))
	b := int32(uval(h, isa.RS2(insn)))

	switch isa.Funct3(insn) {
	case 0b100: // DIVW
		if b == 0 {
			return writeRD(h, pc, insn, ^uint64(0))
		}

		if a == -1<<31 && b == -1 {
			return writeRD(h, pc, insn, sext32(uint32(a)))
		}

		return writeRD(h, pc, insn, sext32(uint32(a/b)))
	case 0b101: // DIVUW
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			return writeRD(h, pc, insn, ^uint64(0))
		}

		return writeRD(h, pc, insn, sext32(ua/ub))
	case 0b110: // REMW
		if b == 0 {
			return writeRD(h, pc, insn, sext32(uint32(a)))
		}

		if a == -1<<31 && b == -1 {
			return writeRD(h, pc, insn, 0)
		}

		return writeRD(h, pc, insn, sext32(uint32(a%b)))
	case 0b111: // REMUW
		ua, ub := uint32(a), uint32(b)
		if ub == 0 {
			return writeRD(h, pc, insn, sext32(ua))
		}

		return writeRD(h, pc, insn, sext32(ua%ub))
	default: // MULW
		return writeRD(h, pc, insn, sext32(uint32(a*b)))
	}
}

func mulhUnsigned(a, b uint64) uint64 {
	hi, _ := bits64Mul(a, b)
	return hi
}

func mulhSigned(a, b int64) int64 {
	neg := false
	ua, ub := uint64(a), uint64(b)

	if a < 0 {
		ua = uint64(-a)
		neg = !neg
	}

	if b < 0 {
		ub = uint64(-b)
		neg = !neg
	}

	hi, lo := bits64Mul(ua, ub)

	if neg {
		hi, lo = ^hi, ^lo+1
		if lo == 0 {
			hi++
		}
	}

	return int64(hi)
}

func mulhSignedUnsigned(a int64, b uint64) int64 {
	neg := a < 0
	ua := uint64(a)

	if neg {
		ua = uint64(-a)
	}

	hi, lo := bits64Mul(ua, b)

	if neg {
		hi, lo = ^hi, ^lo+1
		if lo == 0 {
			hi++
		}
	}

	return int64(hi)
}

// bits64Mul returns the 128-bit product of a and b as (hi, lo).
func bits64Mul(a, b uint64) (hi, lo uint64) {
	const mask32 = 0xffffffff

	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	lo = t<<32 | w0
	hi = aHi*bHi + w2 + k

	return hi, lo
}

func divSigned(a, b int64) int64 {
	if b == 0 {
		return -1
	}

	if a == -1<<63 && b == -1 {
		return a
	}

	return a / b
}

func divUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}

	return a / b
}

func remSigned(a, b int64) int64 {
	if b == 0 {
		return a
	}

	if a == -1<<63 && b == -1 {
		return 0
	}

	return a % b
}

func remUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return a
	}

	return a % b
}
