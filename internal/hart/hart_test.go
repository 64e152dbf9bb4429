package hart

import (
	"encoding/binary"
	"testing"

	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/mmu"
)

const memSize = 1 << 16

func encodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1f)<<7 | opcode
}

func newHart(t *testing.T, program []uint32, opts ...Option) *Hart {
	t.Helper()

	mem := make([]byte, memSize)
	tags := make([]byte, memSize/8)

	for i, insn := range program {
		binary.LittleEndian.PutUint32(mem[i*4:], insn)
	}

	h, err := New(mem, tags, "RV64I", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return h
}

func TestHart_AddImmediateAndAdd(t *testing.T) {
	t.Parallel()

	const (
		opcodeOpImm = 0x13
		opcodeOp    = 0x33
	)

	program := []uint32{
		encodeI(opcodeOpImm, 0, 1, 0, 5), // addi x1, x0, 5
		encodeI(opcodeOpImm, 0, 2, 0, 3), // addi x2, x0, 3
		encodeR(opcodeOp, 0, 0, 3, 1, 2), // add x3, x1, x2
	}

	h := newHart(t, program)

	retired := h.Step(len(program))
	if retired != len(program) {
		t.Fatalf("retired %d, want %d", retired, len(program))
	}

	val, tag := h.GPR(3)
	if val != 8 {
		t.Errorf("x3 = %d, want 8", val)
	}

	if tag != 0 {
		t.Errorf("x3 tag = %d, want 0 (plain ALU result)", tag)
	}

	if h.PC() != uint64(len(program)*4) {
		t.Errorf("PC = %#x, want %#x", h.PC(), len(program)*4)
	}
}

func TestHart_X0IsAlwaysZero(t *testing.T) {
	t.Parallel()

	h := newHart(t, nil)

	h.SetGPR(0, 0xffffffffffffffff, 9)

	val, tag := h.GPR(0)
	if val != 0 || tag != 0 {
		t.Errorf("x0 = (%d, %d), want (0, 0)", val, tag)
	}
}

func TestHart_LDCTSDCTPropagatesTag(t *testing.T) {
	t.Parallel()

	const (
		opcodeOpImm = 0x13
		opcodeLDCT  = 0x0b
		opcodeSDCT  = 0x2b

		srcWord = 0x200
		dstWord = 0x300
		srcTag  = 7
	)

	program := []uint32{
		encodeI(opcodeOpImm, 0, 6, 0, dstWord), // addi x6, x0, dstWord
		encodeI(opcodeLDCT, 0, 4, 0, srcWord),  // ldct x4, srcWord(x0)
		encodeS(opcodeSDCT, 0, 6, 4, 0),        // sdct x4, 0(x6)
		encodeI(opcodeLDCT, 0, 7, 6, 0),        // ldct x7, 0(x6)
	}

	h := newHart(t, program)

	if err := mmu.StoreUint[uint64](h.ram, srcWord, 0xfeedface00000001); err != nil {
		t.Fatalf("seeding source word: %v", err)
	}

	// Pre-tag the source word directly; no ordinary instruction sets a
	// register's tag other than a prior LDCT.
	if err := h.tag.Write(srcWord, srcTag); err != nil {
		t.Fatalf("pre-tagging source word: %v", err)
	}

	// The default CSR_SD_TAG policy traps a store over a tag-0 word; give
	// dstWord a throwaway nonzero tag so SDCT's own store doesn't fault
	// before it gets to overwrite the tag with the propagated value.
	if err := h.tag.Write(dstWord, 1); err != nil {
		t.Fatalf("pre-tagging dest word: %v", err)
	}

	retired := h.Step(len(program))
	if retired != len(program) {
		t.Fatalf("retired %d, want %d", retired, len(program))
	}

	_, loadedTag := h.GPR(4)
	if loadedTag != srcTag {
		t.Fatalf("x4 tag after LDCT = %d, want %d", loadedTag, srcTag)
	}

	destTag, err := h.tag.Read(dstWord)
	if err != nil {
		t.Fatalf("reading dest tag: %v", err)
	}

	if destTag != srcTag {
		t.Errorf("dest word tag after SDCT = %d, want %d", destTag, srcTag)
	}

	_, finalTag := h.GPR(7)
	if finalTag != srcTag {
		t.Errorf("x7 tag after round-tripping LDCT = %d, want %d", finalTag, srcTag)
	}
}

func TestHart_IllegalInstructionTraps(t *testing.T) {
	t.Parallel()

	// All-ones is not a valid encoding under any descriptor in this ISA.
	// Step keeps running after it delivers the trap, so the M-mode vector
	// holds a NOP for it to retire.
	vector := isa.DefaultMtvec + 0x40*uint64(isa.PrivMachine)
	program := make([]uint32, vector/4+1)
	program[0] = 0xffffffff
	program[vector/4] = 0x00000013 // addi x0, x0, 0

	h := newHart(t, program)

	pcBefore := h.PC()

	retired := h.Step(1)
	if retired != 1 {
		t.Fatalf("retired %d, want 1 (the NOP at the vector; the faulting instruction must not retire)", retired)
	}

	if h.PC() == pcBefore {
		t.Errorf("PC did not move to a trap vector")
	}

	if h.mcause&(1<<63) != 0 {
		t.Errorf("mcause interrupt bit set for a synchronous fault")
	}
}

func TestHart_Reset(t *testing.T) {
	t.Parallel()

	h := newHart(t, nil)

	h.SetGPR(5, 42, 1)
	h.SetPC(0x100)

	h.Reset()

	if h.PC() != 0 {
		t.Errorf("PC after reset = %#x, want 0", h.PC())
	}

	val, tag := h.GPR(5)
	if val != 0 || tag != 0 {
		t.Errorf("x5 after reset = (%d, %d), want (0, 0)", val, tag)
	}

	if h.Priv() != isa.PrivMachine {
		t.Errorf("priv after reset = %d, want machine", h.Priv())
	}
}

func TestHart_PostInterruptIsConcurrencySafe(t *testing.T) {
	t.Parallel()

	h := newHart(t, nil)

	done := make(chan struct{})

	go func() {
		h.PostInterrupt(isa.MipSSIP)
		close(done)
	}()

	<-done

	if h.effectiveMIP()&isa.MipSSIP == 0 {
		t.Errorf("expected SSIP to be observed via effectiveMIP after PostInterrupt")
	}
}

