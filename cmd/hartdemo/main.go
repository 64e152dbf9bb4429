// hartdemo is a minimal driver for internal/hart: it hand-assembles a
// short program exercising the tagged load/store extension, runs it with
// a single Step call, and prints the retired count and the registers the
// program uses with their tags, the way the original machine's entry
// point poked memory and registers
// directly rather than going through an assembler. When run against a
// real terminal it wires internal/console as the hart's mailbox; run
// headlessly, it falls back to the default no-op mailbox.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tagcore/tagcore/internal/console"
	"github.com/tagcore/tagcore/internal/hart"
	"github.com/tagcore/tagcore/internal/image"
)

const memSize = 1 << 16

// Minimal RV64 encoders for the handful of formats this demo program
// needs.
func encodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1f)<<7 | opcode
}

const (
	opcodeOpImm = 0x13
	opcodeOp    = 0x33
	opcodeLDCT  = 0x0b
	opcodeSDCT  = 0x2b
)

const (
	srcWord = 0x200 // pre-tagged word LDCT reads
	dstWord = 0x300 // word SDCT writes, carrying the tag along
	srcTag  = 7
)

func main() {
	mem := make([]byte, memSize)
	tags := make([]byte, memSize/8)

	binary.LittleEndian.PutUint64(mem[srcWord:], 0xfeedface00000001)
	tags[srcWord/8] = srcTag

	// The default CSR_SD_TAG policy traps a store over a tag-0 word; give
	// dstWord a throwaway nonzero tag so SDCT's store there doesn't fault
	// before it gets a chance to overwrite it with the propagated tag.
	tags[dstWord/8] = 1

	program := []uint32{
		encodeI(opcodeOpImm, 0, 6, 0, dstWord),    // addi x6, x0, dstWord
		encodeI(opcodeLDCT, 0, 4, 0, srcWord),     // ldct x4, srcWord(x0)
		encodeS(opcodeSDCT, 0, 6, 4, 0),           // sdct x4, 0(x6)
		encodeI(opcodeLDCT, 0, 7, 6, 0),           // ldct x7, 0(x6)
		encodeI(opcodeOpImm, 0, 1, 0, 5),          // addi x1, x0, 5
		encodeI(opcodeOpImm, 0, 2, 0, 3),          // addi x2, x0, 3
		encodeR(opcodeOp, 0, 0, 3, 1, 2),          // add x3, x1, x2
	}

	code := make([]byte, len(program)*4)
	for i, insn := range program {
		binary.LittleEndian.PutUint32(code[i*4:], insn)
	}

	// Round-trip the program through the Intel-Hex-style image format
	// rather than poking mem directly, the way a loader fed by an
	// assembler or linker would.
	img := image.Image{Segments: []image.Segment{{Addr: 0, Data: code}}}

	text, err := img.MarshalText()
	if err != nil {
		panic(err)
	}

	var loaded image.Image
	if err := loaded.UnmarshalText(text); err != nil {
		panic(err)
	}

	for _, seg := range loaded.Segments {
		copy(mem[seg.Addr:], seg.Data)
	}

	h, err := hart.New(mem, tags, "RV64IMAFDC")
	if err != nil {
		panic(err)
	}

	// Wire a real terminal-backed console as the hart's host/target
	// mailbox when one is available, demonstrating the full
	// external-interface contract end to end; running headlessly (no
	// controlling terminal, e.g. under go test or CI) just falls back to
	// the default no-op mailbox.
	if c, err := console.New(h); err == nil {
		h.SetMailbox(c)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		defer c.Restore()

		c.Run(ctx)
	} else if !errors.Is(err, console.ErrNoTTY) {
		panic(err)
	}

	retired := h.Step(len(program))
	fmt.Printf("retired %d instructions\n", retired)

	for _, reg := range []uint8{1, 2, 3, 4, 6, 7} {
		val, tag := h.GPR(reg)
		fmt.Printf("x%-2d = %#018x  tag=%d\n", reg, val, tag)
	}
}
