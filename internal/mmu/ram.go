// Package mmu implements the hart's tagged data MMU (C3): width-generic
// aligned load/store over physical RAM and tag-policy checks delegated to
// tagmem. The decoded-instruction cache (C4) is package internal/icache.
package mmu

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// RAM is a physical-memory view over a byte slice the caller owns. It
// satisfies xlat.PhysMem so the translator can read page-table entries
// through the same window instructions use to read data.
type RAM struct {
	bytes []byte
}

// NewRAM wraps buf, a memsz-byte slice, as physical RAM.
func NewRAM(buf []byte) *RAM {
	return &RAM{bytes: buf}
}

// Len returns the size of the backing physical address space.
func (r *RAM) Len() int { return len(r.bytes) }

// Error is returned when an access falls outside the backing slice.
type Error struct {
	Addr  uint64
	NBytes int
}

func (e *Error) Error() string {
	return fmt.Sprintf("mmu: physical address out of range: %#x (%d bytes)", e.Addr, e.NBytes)
}

func (e *Error) Is(err error) bool {
	if err == ErrOutOfRange {
		return true
	}

	_, ok := err.(*Error)

	return ok
}

// ErrOutOfRange matches any *Error via errors.Is.
var ErrOutOfRange = &Error{}

func (r *RAM) loadRaw(paddr uint64, n int) (uint64, error) {
	if paddr+uint64(n) > uint64(len(r.bytes)) {
		return 0, &Error{Addr: paddr, NBytes: n}
	}

	var buf [8]byte
	copy(buf[:], r.bytes[paddr:paddr+uint64(n)])

	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (r *RAM) storeRaw(paddr uint64, n int, val uint64) error {
	if paddr+uint64(n) > uint64(len(r.bytes)) {
		return &Error{Addr: paddr, NBytes: n}
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	copy(r.bytes[paddr:paddr+uint64(n)], buf[:n])

	return nil
}

// ReadUint64 satisfies xlat.PhysMem for page-table-entry reads.
func (r *RAM) ReadUint64(paddr uint64) (uint64, error) {
	return r.loadRaw(paddr, 8)
}

// Unsigned is the width constraint for the generic unsigned load/store
// family, replacing what the source expresses as a load_func/store_func
// preprocessor macro per width.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Signed is the width constraint for the generic sign-extending load
// family.
type Signed interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// LoadUint reads a zero-extended value of width W from physical memory.
func LoadUint[W Unsigned](r *RAM, paddr uint64) (W, error) {
	var zero W

	n := int(unsafe.Sizeof(zero))

	raw, err := r.loadRaw(paddr, n)
	if err != nil {
		return 0, err
	}

	return W(raw), nil
}

// LoadInt reads a sign-extended value of width W from physical memory.
func LoadInt[W Signed](r *RAM, paddr uint64) (W, error) {
	var zero W

	n := int(unsafe.Sizeof(zero))

	raw, err := r.loadRaw(paddr, n)
	if err != nil {
		return 0, err
	}

	shift := uint(64 - 8*n)

	return W(int64(raw<<shift) >> shift), nil
}

// StoreUint writes a value of width W to physical memory.
func StoreUint[W Unsigned](r *RAM, paddr uint64, val W) error {
	n := int(unsafe.Sizeof(val))

	return r.storeRaw(paddr, n, uint64(val))
}
