package mmu

import (
	"unsafe"

	"github.com/tagcore/tagcore/internal/tagmem"
	"github.com/tagcore/tagcore/internal/trap"
	"github.com/tagcore/tagcore/internal/xlat"
)

// TagPolicy gives the current tag-policy CSR masks. Bit k of LoadMask (or
// StoreMask) set means "a memory word tagged k traps on load (or store)".
type TagPolicy interface {
	LoadMask() uint64
	StoreMask() uint64
}

// DataMMU is the tagged data MMU (C3): it composes address translation,
// tag memory, and physical RAM, and enforces tag-read -> policy-check ->
// value-access -> tag-write ordering on every plain load and store.
type DataMMU struct {
	Xlat   *xlat.Translator
	RAM    *RAM
	Tag    *tagmem.Mem
	Policy TagPolicy
}

// New builds a DataMMU over the given components.
func New(x *xlat.Translator, ram *RAM, tag *tagmem.Mem, policy TagPolicy) *DataMMU {
	return &DataMMU{Xlat: x, RAM: ram, Tag: tag, Policy: policy}
}

func alignDown8(paddr uint64) uint64 { return paddr &^ 7 }

// LoadTagCheck raises a tag-load trap if memTag is masked in by CSR_LD_TAG.
func (m *DataMMU) LoadTagCheck(memTag uint8, vaddr uint64) error {
	if (m.Policy.LoadMask()>>memTag)&1 != 0 {
		return trap.TagLoad(vaddr)
	}

	return nil
}

// StoreTagCheck raises a tag-store trap if memTag is masked in by
// CSR_SD_TAG.
func (m *DataMMU) StoreTagCheck(memTag uint8, vaddr uint64) error {
	if (m.Policy.StoreMask()>>memTag)&1 != 0 {
		return trap.TagStore(vaddr)
	}

	return nil
}

// LoadStoreTagCheck is the union check atomics use, since an AMO is both a
// load and a store of the same word.
func (m *DataMMU) LoadStoreTagCheck(memTag uint8, vaddr uint64) error {
	if err := m.LoadTagCheck(memTag, vaddr); err != nil {
		return err
	}

	return m.StoreTagCheck(memTag, vaddr)
}

// Translate exposes the translator directly for instructions (atomics,
// LDCT/SDCT) that need the physical address before deciding how to handle
// the tag themselves.
func (m *DataMMU) Translate(vaddr uint64, nbytes int, kind xlat.AccessKind) (uint64, error) {
	return m.Xlat.Translate(vaddr, nbytes, kind)
}

// TagRead reads the tag of the aligned word containing paddr.
func (m *DataMMU) TagRead(paddr uint64) (uint8, error) {
	return m.Tag.Read(alignDown8(paddr))
}

// TagWrite writes the tag of the aligned word containing paddr.
func (m *DataMMU) TagWrite(paddr uint64, tag uint8) error {
	return m.Tag.Write(alignDown8(paddr), tag)
}

func sizeOfUnsigned[W Unsigned]() int {
	var zero W
	return int(unsafe.Sizeof(zero))
}

func sizeOfSigned[W Signed]() int {
	var zero W
	return int(unsafe.Sizeof(zero))
}

// Load performs a plain zero-extended load: translate, tag-check,
// value-load. The destination register tag is always cleared by the
// caller for a plain load (ops package), matching the source's WRITE_RD
// semantics.
func Load[W Unsigned](m *DataMMU, vaddr uint64) (W, error) {
	n := sizeOfUnsigned[W]()

	paddr, err := m.Translate(vaddr, n, xlat.AccessLoad)
	if err != nil {
		return 0, err
	}

	memTag, err := m.TagRead(paddr)
	if err != nil {
		return 0, err
	}

	if err := m.LoadTagCheck(memTag, vaddr); err != nil {
		return 0, err
	}

	return LoadUint[W](m.RAM, paddr)
}

// LoadSigned performs a plain sign-extended load.
func LoadSigned[W Signed](m *DataMMU, vaddr uint64) (W, error) {
	n := sizeOfSigned[W]()

	paddr, err := m.Translate(vaddr, n, xlat.AccessLoad)
	if err != nil {
		return 0, err
	}

	memTag, err := m.TagRead(paddr)
	if err != nil {
		return 0, err
	}

	if err := m.LoadTagCheck(memTag, vaddr); err != nil {
		return 0, err
	}

	return LoadInt[W](m.RAM, paddr)
}

// Store performs a plain store: translate, tag-check, value-store, then
// clears the tag of the enclosing aligned word, since a non-tagged store
// always invalidates whatever tag the word previously carried.
func Store[W Unsigned](m *DataMMU, vaddr uint64, val W) error {
	n := sizeOfUnsigned[W]()

	paddr, err := m.Translate(vaddr, n, xlat.AccessStore)
	if err != nil {
		return err
	}

	memTag, err := m.TagRead(paddr)
	if err != nil {
		return err
	}

	if err := m.StoreTagCheck(memTag, vaddr); err != nil {
		return err
	}

	if err := StoreUint(m.RAM, paddr, val); err != nil {
		return err
	}

	return m.TagWrite(paddr, 0)
}
