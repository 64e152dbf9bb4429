// Package decode builds the mask/match bucket dispatch table the step
// loop uses to resolve a raw instruction word to its Handler in O(1).
package decode

import (
	"sort"

	"github.com/tagcore/tagcore/internal/isa"
)

// Table is a built decoder, ready to dispatch.
type Table struct {
	buckets  uint32 // buckets - 1 is the mask used to compute a bucket index
	entries  []isa.Descriptor
	illegal  isa.Handler
}

// illegalInstruction is installed as the sentinel that terminates every
// bucket: any insn that falls through every real descriptor in its bucket
// matches this one.
func illegalInstruction(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	return 0, illegalInstructionTrap(insn)
}

// illegalInstructionTrap is overridden by internal/hart at init time via
// SetIllegalInstructionTrap, so this package does not need to import
// internal/trap (which would be an unnecessary dependency for a package
// whose only job is table construction and lookup).
var illegalInstructionTrap = func(insn uint32) error { return illegalErr{insn} }

type illegalErr struct{ insn uint32 }

func (e illegalErr) Error() string { return "decode: illegal instruction" }

// SetIllegalInstructionTrap lets a caller (internal/hart, at package init)
// install the real trap.IllegalInstruction constructor, so the sentinel
// descriptor raises a properly typed trap.
func SetIllegalInstructionTrap(f func(insn uint32) error) {
	illegalInstructionTrap = f
}

// Build constructs a Table from a flat descriptor list. Every descriptor's
// Mask must have bit 0 set; Build panics otherwise, since an empty-bucket
// guarantee is a programmer invariant, not a runtime fault.
func Build(descriptors []isa.Descriptor) *Table {
	for _, d := range descriptors {
		if d.Mask&1 == 0 {
			panic("decode: descriptor " + d.Name + " has an even mask; bit 0 must always be matched")
		}
	}

	buckets := uint32(1)

	for next := buckets << 1; next != 0; next <<= 1 {
		covered := true

		for _, d := range descriptors {
			if d.Mask&(next-1) != next-1 {
				covered = false
				break
			}
		}

		if !covered {
			break
		}

		buckets = next
	}

	sorted := make([]isa.Descriptor, len(descriptors))
	copy(sorted, descriptors)

	sort.SliceStable(sorted, func(i, j int) bool {
		bi := sorted[i].Match & (buckets - 1)
		bj := sorted[j].Match & (buckets - 1)

		if bi != bj {
			return bi < bj
		}

		return sorted[i].Match < sorted[j].Match
	})

	return &Table{buckets: buckets, entries: sorted, illegal: illegalInstruction}
}

// Decode resolves insn to its Handler for the given XLEN (32 or 64). If no
// descriptor matches, the illegal-instruction handler is returned.
func (t *Table) Decode(insn uint32, xlen int) isa.Handler {
	key := insn & (t.buckets - 1)

	// Linear probe forward from the first descriptor whose low bits equal
	// key; entries are sorted by (match & (buckets-1)), so descriptors for
	// this bucket are contiguous.
	idx := sort.Search(len(t.entries), func(i int) bool {
		return (t.entries[i].Match & (t.buckets - 1)) >= key
	})

	for i := idx; i < len(t.entries); i++ {
		d := t.entries[i]
		if d.Match&(t.buckets-1) != key {
			break
		}

		if insn&d.Mask != d.Match {
			continue
		}

		if xlen == 32 && d.RV32 != nil {
			return d.RV32
		}

		if xlen == 64 && d.RV64 != nil {
			return d.RV64
		}

		// d's mask/match matched insn structurally, but it has no handler
		// for this xlen (an RV32-only or RV64-only encoding collided with
		// another descriptor's bucket); keep probing rather than falling
		// to the illegal-instruction sentinel on a real encoding collision.
		continue
	}

	return t.illegal
}
