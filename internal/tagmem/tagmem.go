// Package tagmem implements the flat tag memory backing a hart: one byte
// of metadata per aligned 8-byte word of physical memory.
package tagmem

import "fmt"

// Mem is a tag memory view over a byte slice owned by the caller. It is
// not copied; the caller retains ownership for the lifetime of the hart
// that uses it.
type Mem struct {
	bytes []byte
}

// New wraps buf as a tag memory. buf must have length memsz/8 for a
// physical address space of memsz bytes.
func New(buf []byte) *Mem {
	return &Mem{bytes: buf}
}

// Len returns the number of tag bytes, i.e. the number of aligned 8-byte
// words the tag memory covers.
func (m *Mem) Len() int { return len(m.bytes) }

// Read returns the tag byte for the aligned 8-byte word containing paddr.
func (m *Mem) Read(paddr uint64) (uint8, error) {
	idx := paddr >> 3
	if idx >= uint64(len(m.bytes)) {
		return 0, &Error{Addr: paddr}
	}

	return m.bytes[idx], nil
}

// Write sets the tag byte for the aligned 8-byte word containing paddr.
func (m *Mem) Write(paddr uint64, tag uint8) error {
	idx := paddr >> 3
	if idx >= uint64(len(m.bytes)) {
		return &Error{Addr: paddr}
	}

	m.bytes[idx] = tag

	return nil
}

// Error is returned when a tag access falls outside the backing slice.
type Error struct {
	Addr uint64
}

func (e *Error) Error() string {
	return fmt.Sprintf("tagmem: address out of range: %#x", e.Addr)
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
