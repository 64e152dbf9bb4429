package ops

import (
	"errors"
	"testing"

	"github.com/tagcore/tagcore/internal/mmu"
	"github.com/tagcore/tagcore/internal/trap"
)

func TestOpC0_ADDI4SPNAddsScaledImm(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(2, 100, 0) // sp

	insn := uint32(1 << 6) // funct3=000, rd'=0 (x8), imm=4
	pc, err := opC0(h, insn, 0x1000)
	if err != nil {
		t.Fatalf("C.ADDI4SPN: %v", err)
	}

	if pc != 0x1002 {
		t.Errorf("pc = %#x, want 0x1002", pc)
	}

	val, _ := h.GPR(8)
	if val != 104 {
		t.Errorf("x8 = %d, want 104", val)
	}
}

func TestOpC0_ADDI4SPNZeroImmIsIllegal(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})

	var fault *trap.Fault

	_, err := opC0(h, 0, 0)
	if !errors.As(err, &fault) || fault.Cause() != trap.CauseIllegalInstr {
		t.Errorf("err = %v, want illegal instruction", err)
	}
}

func TestOpC0_LWRoundTripClearsDestTag(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(8, 0x2000, 0) // rs1' = x8

	if err := mmu.StoreUint[uint32](h.mmu.RAM, 0x2000, 0xdeadbeef); err != nil {
		t.Fatalf("seed: %v", err)
	}

	insn := uint32(0b010<<13) | uint32(1<<2) // C.LW, rd'=1 (x9), imm=0
	if _, err := opC0(h, insn, 0); err != nil {
		t.Fatalf("C.LW: %v", err)
	}

	val, tag := h.GPR(9)
	if uint32(val) != 0xdeadbeef {
		t.Errorf("x9 = %#x, want 0xdeadbeef", val)
	}

	if tag != 0 {
		t.Errorf("x9 tag = %d, want 0", tag)
	}
}

func TestOpC0_SDRoundTrip(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(8, 0x2000, 0) // rs1' = x8
	h.SetGPR(9, 0x1234, 0) // rs2' = x9

	insn := uint32(0b111<<13) | uint32(1<<2) // C.SD, rs2'=1 (x9), imm=0
	if _, err := opC0(h, insn, 0); err != nil {
		t.Fatalf("C.SD: %v", err)
	}

	val, err := mmu.Load[uint64](h.mmu, 0x2000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if val != 0x1234 {
		t.Errorf("mem[0x2000] = %#x, want 0x1234", val)
	}
}

func TestOpC1_ADDINop(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})

	pc, err := opC1(h, 0, 0x1000) // rd=0, imm=0: C.NOP
	if err != nil {
		t.Fatalf("C.NOP: %v", err)
	}

	if pc != 0x1002 {
		t.Errorf("pc = %#x, want 0x1002", pc)
	}
}

func TestOpC1_ADDI16SPClearsTag(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(2, 1000, 7) // sp, nonzero tag

	insn := uint32(0b011<<13) | uint32(2<<7) | uint32(1<<6) // C.ADDI16SP, imm=16
	pc, err := opC1(h, insn, 0)
	if err != nil {
		t.Fatalf("C.ADDI16SP: %v", err)
	}

	if pc != 2 {
		t.Errorf("pc = %d, want 2", pc)
	}

	val, tag := h.GPR(2)
	if val != 1016 {
		t.Errorf("sp = %d, want 1016", val)
	}

	if tag != 0 {
		t.Errorf("sp tag = %d, want 0", tag)
	}
}

func TestOpC1_LUILoadsUpperImm(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})

	insn := uint32(0b011<<13) | uint32(5<<7) | uint32(1<<2) // rd=5, imm=0x1000
	if _, err := opC1(h, insn, 0); err != nil {
		t.Fatalf("C.LUI: %v", err)
	}

	val, tag := h.GPR(5)
	if val != 0x1000 {
		t.Errorf("x5 = %#x, want 0x1000", val)
	}

	if tag != 0 {
		t.Errorf("x5 tag = %d, want 0", tag)
	}
}

func TestOpC1_CJJumpsUnconditionally(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})

	insn := uint32(0b101<<13) | uint32(1<<5) // C.J, imm=8
	pc, err := opC1(h, insn, 0x1000)
	if err != nil {
		t.Fatalf("C.J: %v", err)
	}

	if pc != 0x1008 {
		t.Errorf("pc = %#x, want 0x1008", pc)
	}
}

func TestOpC1_BEQZTakenAndNotTaken(t *testing.T) {
	t.Parallel()

	const insn = uint32(0b110 << 13) // C.BEQZ x8, +0

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(8, 0, 0)

	pc, err := opC1(h, insn, 0x1000)
	if err != nil {
		t.Fatalf("C.BEQZ (taken): %v", err)
	}

	if pc != 0x1000 {
		t.Errorf("taken branch pc = %#x, want 0x1000", pc)
	}

	h.SetGPR(8, 5, 0)

	pc, err = opC1(h, insn, 0x1000)
	if err != nil {
		t.Fatalf("C.BEQZ (not taken): %v", err)
	}

	if pc != 0x1002 {
		t.Errorf("not-taken branch pc = %#x, want 0x1002", pc)
	}
}

func TestOpC1_SUBWSignExtends(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(8, 1, 0)
	h.SetGPR(9, 2, 0)

	// quadrant 1, funct3=100 (cArith), bits[11:10]=11, wide (bit12)=1,
	// funct2 (bits[6:5])=00, rs2'=1 (x9) -> C.SUBW: x8 = sext32(x8 - x9) = -1
	insn := uint32(0b100<<13) | uint32(1<<12) | uint32(0b11<<10) | uint32(1<<2)
	pc, err := opC1(h, insn, 0)
	if err != nil {
		t.Fatalf("C.SUBW: %v", err)
	}

	if pc != 2 {
		t.Errorf("pc = %d, want 2", pc)
	}

	val, _ := h.GPR(8)
	if int64(val) != -1 {
		t.Errorf("x8 = %d, want -1", int64(val))
	}
}

func TestOpC2_SLLIShiftsLeft(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(3, 1, 7)

	insn := uint32(3<<7) | uint32(1<<2) | uint32(2) // rd=3, shamt=1, quadrant=10
	if _, err := opC2(h, insn, 0); err != nil {
		t.Fatalf("C.SLLI: %v", err)
	}

	val, tag := h.GPR(3)
	if val != 2 {
		t.Errorf("x3 = %d, want 2", val)
	}

	if tag != 0 {
		t.Errorf("x3 tag = %d, want 0", tag)
	}
}

func TestOpC2_JRClearsLowBit(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(5, 0x3001, 0)

	insn := uint32(0b100<<13) | uint32(5<<7) | uint32(2) // C.JR x5
	pc, err := opC2(h, insn, 0)
	if err != nil {
		t.Fatalf("C.JR: %v", err)
	}

	if pc != 0x3000 {
		t.Errorf("pc = %#x, want 0x3000", pc)
	}
}

func TestOpC2_JALRLinksAndClearsDestTag(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(6, 0x4001, 0)
	h.SetGPR(1, 0, 9) // ra, nonzero tag beforehand

	insn := uint32(0b100<<13) | uint32(1<<12) | uint32(6<<7) | uint32(2) // C.JALR x6
	pc, err := opC2(h, insn, 0x2000)
	if err != nil {
		t.Fatalf("C.JALR: %v", err)
	}

	if pc != 0x4000 {
		t.Errorf("pc = %#x, want 0x4000", pc)
	}

	ra, raTag := h.GPR(1)
	if ra != 0x2002 {
		t.Errorf("ra = %#x, want 0x2002", ra)
	}

	if raTag != 0 {
		t.Errorf("ra tag = %d, want 0", raTag)
	}
}

func TestOpC2_EBreakTraps(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})

	insn := uint32(0b100<<13) | uint32(1<<12) | uint32(2) // rd=0, rs2=0, wide
	_, err := opC2(h, insn, 0)

	var fault *trap.Fault
	if !errors.As(err, &fault) || fault.Cause() != trap.CauseBreakpoint {
		t.Errorf("err = %v, want breakpoint fault", err)
	}
}

func TestOpC2_MVAndADD(t *testing.T) {
	t.Parallel()

	h := newFakeHart(fixedPolicy{})
	h.SetGPR(9, 42, 3)

	mv := uint32(0b100<<13) | uint32(7<<7) | uint32(9<<2) | uint32(2) // C.MV x7, x9
	if _, err := opC2(h, mv, 0); err != nil {
		t.Fatalf("C.MV: %v", err)
	}

	val, tag := h.GPR(7)
	if val != 42 || tag != 0 {
		t.Errorf("x7 = (%d, tag %d), want (42, 0)", val, tag)
	}

	h.SetGPR(7, 10, 0)

	add := uint32(0b100<<13) | uint32(1<<12) | uint32(7<<7) | uint32(9<<2) | uint32(2) // C.ADD x7, x9
	if _, err := opC2(h, add, 0); err != nil {
		t.Fatalf("C.ADD: %v", err)
	}

	val, _ = h.GPR(7)
	if val != 52 {
		t.Errorf("x7 after C.ADD = %d, want 52", val)
	}
}
