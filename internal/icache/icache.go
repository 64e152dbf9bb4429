// Package icache implements the hart's decoded-instruction cache (C4): a
// direct-mapped 1024-entry cache keyed by PC that stores the already
// resolved Handler alongside the raw instruction bits, so the step loop's
// hot path avoids repeating translation and decode work for straight-line
// code.
package icache

import (
	"github.com/tagcore/tagcore/internal/decode"
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/mmu"
	"github.com/tagcore/tagcore/internal/xlat"
)

// Entries is the number of direct-mapped slots, matching the reference
// simulator's ICACHE_ENTRIES.
const Entries = 1024

// Entry is one decoded-instruction cache line.
type Entry struct {
	valid   bool
	pcTag   uint64
	Raw     uint32
	Length  int
	Handler isa.Handler
}

// ICache is the instruction cache. It is built over a Translator (for
// fetch-path translation) and RAM (for reading raw instruction bytes), and
// resolves misses through a decode.Table.
type ICache struct {
	Xlat  *xlat.Translator
	RAM   *mmu.RAM
	Table *decode.Table
	XLen  func() int

	entries [Entries]Entry
}

// New builds an instruction cache over the given translator, RAM, and
// decode table. xlen returns the hart's current XLEN (32 or 64) so the
// decoder can select the right handler variant.
func New(x *xlat.Translator, ram *mmu.RAM, table *decode.Table, xlen func() int) *ICache {
	return &ICache{Xlat: x, RAM: ram, Table: table, XLen: xlen}
}

// Flush invalidates every cache line. Called on writes to executable
// memory, on reset, and whenever the decode table itself changes (XLEN
// flip).
func (c *ICache) Flush() {
	for i := range c.entries {
		c.entries[i].valid = false
	}
}

func index(pc uint64) uint64 {
	return (pc / 4) % Entries
}

// instructionLength inspects the low bits of the first halfword to
// determine whether this is a 2-byte compressed instruction or a longer
// one. This simulator implements the base and compressed encodings, whose
// lengths are always 2 or 4 bytes; the 6/8-byte extended-length encodings
// described by the base ISA for future expansion are not produced by any
// instruction this simulator decodes.
func instructionLength(low16 uint16) int {
	if low16&0x3 != 0x3 {
		return 2
	}

	return 4
}

// Fetch resolves the instruction at pc, using the cache when possible.
func (c *ICache) Fetch(pc uint64) (*Entry, error) {
	idx := index(pc)
	e := &c.entries[idx]

	if e.valid && e.pcTag == pc {
		return e, nil
	}

	paddr, err := c.Xlat.Translate(pc, 2, xlat.AccessFetch)
	if err != nil {
		return nil, err
	}

	low16, err := mmu.LoadUint[uint16](c.RAM, paddr)
	if err != nil {
		return nil, err
	}

	length := instructionLength(low16)

	var raw uint32

	if length == 2 {
		raw = uint32(low16)
	} else {
		// The instruction may straddle a page boundary; translate the
		// second halfword separately rather than assuming contiguity.
		paddrHi, err := c.Xlat.Translate(pc+2, 2, xlat.AccessFetch)
		if err != nil {
			return nil, err
		}

		hi16, err := mmu.LoadUint[uint16](c.RAM, paddrHi)
		if err != nil {
			return nil, err
		}

		raw = uint32(low16) | uint32(hi16)<<16
	}

	handler := c.Table.Decode(raw, c.XLen())

	*e = Entry{valid: true, pcTag: pc, Raw: raw, Length: length, Handler: handler}

	return e, nil
}
