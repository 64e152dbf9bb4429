// Package isa defines the architectural surface shared by the decoder,
// the instruction cache, and every instruction handler: the ISA-string
// grammar, CSR addresses, the Hart interface instruction handlers are
// written against, and the Handler/Descriptor types the decoder dispatches
// through.
//
// Handlers and the decoder depend only on this package's Hart interface,
// not on the concrete hart type, so that internal/hart can import
// internal/decode and internal/ops without creating an import cycle.
package isa

import (
	"fmt"
	"strings"

	"github.com/tagcore/tagcore/internal/mmu"
)

// Extension is one letter of the ISA string, in canonical order.
type Extension byte

const (
	ExtI Extension = 'I'
	ExtM Extension = 'M'
	ExtA Extension = 'A'
	ExtF Extension = 'F'
	ExtD Extension = 'D'
	ExtC Extension = 'C'
)

var canonicalOrder = []Extension{ExtI, ExtM, ExtA, ExtF, ExtD, ExtC}

// ISA is a parsed ISA string: the XLEN and the set of enabled standard and
// custom extensions.
type ISA struct {
	XLen       int
	extensions map[Extension]bool
	custom     map[string]bool
}

// Has reports whether a standard extension letter is enabled.
func (i *ISA) Has(e Extension) bool { return i.extensions[e] }

// HasCustom reports whether a custom X<name> extension is enabled.
func (i *ISA) HasCustom(name string) bool { return i.custom[strings.ToLower(name)] }

// ParseError is returned by Parse for a malformed ISA string.
type ParseError struct {
	ISA    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("isa: invalid ISA string %q: %s", e.ISA, e.Reason)
}

// Parse parses an ISA string of the form:
//
//	[RV32|RV64|RV] I [M] [A] [F[D]] [C] [X<name>]*
//
// I is mandatory. D requires F. Unknown standard letters or malformed
// X-extension names are reported as a *ParseError.
func Parse(s string) (*ISA, error) {
	orig := s
	xlen := 64

	switch {
	case strings.HasPrefix(s, "RV32"):
		xlen = 32
		s = s[4:]
	case strings.HasPrefix(s, "RV64"):
		xlen = 64
		s = s[4:]
	case strings.HasPrefix(s, "RV"):
		s = s[2:]
	}

	result := &ISA{
		XLen:       xlen,
		extensions: map[Extension]bool{},
		custom:     map[string]bool{},
	}

	i := 0
	last := -1 // canonicalOrder index of the previous standard letter

	for i < len(s) {
		c := s[i]

		if c == 'X' {
			j := i + 1
			for j < len(s) && s[j] != 'X' && !isUpperStandard(s[j]) {
				j++
			}

			name := s[i+1 : j]
			if name == "" {
				return nil, &ParseError{ISA: orig, Reason: "empty custom extension name"}
			}

			result.custom[strings.ToLower(name)] = true
			last = len(canonicalOrder)
			i = j

			continue
		}

		ext := Extension(c)

		switch ext {
		case ExtI, ExtM, ExtA, ExtF, ExtD, ExtC:
			pos := 0
			for canonicalOrder[pos] != ext {
				pos++
			}

			if pos <= last {
				return nil, &ParseError{ISA: orig, Reason: fmt.Sprintf("extension %q out of canonical order", string(c))}
			}

			last = pos
			result.extensions[ext] = true
		default:
			return nil, &ParseError{ISA: orig, Reason: fmt.Sprintf("unsupported extension %q", string(c))}
		}

		i++
	}

	if !result.extensions[ExtI] {
		return nil, &ParseError{ISA: orig, Reason: "the I extension is mandatory"}
	}

	if result.extensions[ExtD] && !result.extensions[ExtF] {
		return nil, &ParseError{ISA: orig, Reason: "D requires F"}
	}

	return result, nil
}

func isUpperStandard(c byte) bool {
	for _, e := range canonicalOrder {
		if byte(e) == c {
			return true
		}
	}

	return false
}

// Hart is the interface instruction handlers and the decoder's dispatch
// target are written against. internal/hart's concrete Hart type satisfies
// it structurally; this package never imports internal/hart.
type Hart interface {
	PC() uint64
	SetPC(pc uint64)

	// GPR returns the value and tag of general register reg (0-31). reg 0
	// always reads as (0, 0).
	GPR(reg uint8) (val uint64, tag uint8)
	// SetGPR writes a general register's value and tag. Writes to
	// register 0 are silently discarded.
	SetGPR(reg uint8, val uint64, tag uint8)

	FPR(reg uint8) uint64
	SetFPR(reg uint8, val uint64)
	MarkFPDirty()

	CSR(addr uint16) (uint64, error)
	SetCSR(addr uint16, val uint64) error
	// Serializing reports whether the most recently completed SetCSR call
	// changed the effective address space (VM mode, MPRV, or privilege),
	// so its caller must return PCSerialize rather than pc+4.
	Serializing() bool

	MMU() *mmu.DataMMU

	Priv() uint8
	SetPriv(p uint8)

	XLen() int
	HasExtension(e Extension) bool

	LoadReservation() (addr uint64, ok bool)
	SetLoadReservation(addr uint64)
	ClearLoadReservation()

	FlushTLB()
	FlushICache()

	// TrapReturn pops the privilege stack for MRET (super=false) or SRET
	// (super=true) and returns the PC execution resumes at.
	TrapReturn(super bool) (uint64, error)
}

// Handler executes one decoded instruction and returns the next PC, or a
// trap.Trap error. PCSerialize is a sentinel a handler may return as the
// next PC to request the step loop stop amortised dispatch and resync
// state (used by CSR writes that can change XLEN or the address space).
type Handler func(h Hart, insn uint32, pc uint64) (uint64, error)

// PCSerialize is returned as the next PC by handlers that need the step
// loop to stop its tight inner loop and re-evaluate hart state (e.g. after
// a CSR write that changes privilege, VM mode, or XLEN) before continuing.
const PCSerialize = ^uint64(0)

// Descriptor is one entry in the instruction table the decoder builds its
// bucket table from.
type Descriptor struct {
	Name string
	Mask uint32
	Match uint32
	RV32 Handler // nil if the instruction is RV64-only
	RV64 Handler // nil if the instruction is RV32-only
	Ext  Extension
}
