// Package xlat implements virtual-to-physical address translation with a
// small direct-mapped cache per access kind, mirroring the fetch/load/store
// TLB split a hart keeps to avoid a full page-table walk on every access.
package xlat

import (
	"github.com/tagcore/tagcore/internal/trap"
)

// AccessKind distinguishes which TLB and which fault variant a translation
// is for.
type AccessKind uint8

const (
	AccessFetch AccessKind = iota
	AccessLoad
	AccessStore
)

// Mode selects the paging scheme, mirroring the MSTATUS.VM field.
type Mode uint8

const (
	Bare Mode = iota
	Sv32
	Sv39
	Sv48
)

// tlbEntries is the size of each of the three per-kind direct-mapped
// caches.
const tlbEntries = 256

type tlbEntry struct {
	valid bool
	vpn   uint64 // vaddr >> 12
	base  uint64 // paddr of the containing page, i.e. paddr - (vaddr & pageMask)
}

// PhysMem is the narrow read interface xlat needs from the backing RAM in
// order to walk page tables. It is satisfied by the mmu package's RAM view.
type PhysMem interface {
	ReadUint64(paddr uint64) (uint64, error)
}

// Privilege mirrors the hart's current privilege level.
type Privilege uint8

const (
	PrivUser Privilege = iota
	PrivSupervisor
	_
	PrivMachine
)

// Translator performs the hart's virtual-to-physical address translation
// and owns the fetch/load/store TLBs. Its Mode/Priv/MPRV/RootPPN fields are
// read on every miss; the hart updates them and calls FlushTLB whenever it
// writes a CSR that changes the address space.
type Translator struct {
	Mem PhysMem

	Mode    Mode
	Priv    Privilege
	MPRV    bool
	MPP     Privilege // effective privilege for M-mode-with-MPRV accesses
	RootPPN uint64     // physical page number of the root page table

	fetch [tlbEntries]tlbEntry
	load  [tlbEntries]tlbEntry
	store [tlbEntries]tlbEntry
}

// New creates a Translator bound to the given physical memory view.
func New(mem PhysMem) *Translator {
	return &Translator{Mem: mem, Mode: Bare, Priv: PrivMachine}
}

// FlushTLB invalidates every cached translation. Called whenever MSTATUS's
// VM/PRV/PRV1/MPRV fields change, or on SFENCE.VM.
func (t *Translator) FlushTLB() {
	for i := range t.fetch {
		t.fetch[i].valid = false
	}

	for i := range t.load {
		t.load[i].valid = false
	}

	for i := range t.store {
		t.store[i].valid = false
	}
}

func (t *Translator) cacheFor(kind AccessKind) *[tlbEntries]tlbEntry {
	switch kind {
	case AccessFetch:
		return &t.fetch
	case AccessStore:
		return &t.store
	default:
		return &t.load
	}
}

func (t *Translator) misaligned(kind AccessKind, vaddr uint64) trap.Trap {
	switch kind {
	case AccessFetch:
		return trap.FetchMisaligned(vaddr)
	case AccessStore:
		return trap.StoreMisaligned(vaddr)
	default:
		return trap.LoadMisaligned(vaddr)
	}
}

func (t *Translator) pageFault(kind AccessKind, vaddr uint64) trap.Trap {
	switch kind {
	case AccessFetch:
		return trap.FetchPageFault(vaddr)
	case AccessStore:
		return trap.StorePageFault(vaddr)
	default:
		return trap.LoadPageFault(vaddr)
	}
}

// effectivePriv returns the privilege level permission checks should use:
// normally the current privilege, except loads/stores in M-mode with MPRV
// set are checked as though running at MPP.
func (t *Translator) effectivePriv(kind AccessKind) Privilege {
	if kind != AccessFetch && t.Priv == PrivMachine && t.MPRV {
		return t.MPP
	}

	return t.Priv
}

// Translate resolves vaddr to a physical address for an access of nbytes,
// which must be a power of two. Misaligned accesses and walk failures
// return a trap.Trap the caller should deliver as-is.
func (t *Translator) Translate(vaddr uint64, nbytes int, kind AccessKind) (uint64, error) {
	if vaddr&uint64(nbytes-1) != 0 {
		return 0, t.misaligned(kind, vaddr)
	}

	priv := t.effectivePriv(kind)

	if t.Mode == Bare || (priv == PrivMachine && !t.MPRV) {
		return vaddr, nil
	}

	const pageMask = 0xfff

	idx := (vaddr >> 12) % tlbEntries
	vpn := vaddr >> 12
	cache := t.cacheFor(kind)

	if e := &cache[idx]; e.valid && e.vpn == vpn {
		return e.base + (vaddr & pageMask), nil
	}

	base, err := t.walk(vaddr, kind, priv)
	if err != nil {
		return 0, err
	}

	cache[idx] = tlbEntry{valid: true, vpn: vpn, base: base}

	return base + (vaddr & pageMask), nil
}

const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
)

// walk performs the page-table walk for Sv39/Sv48 (three or four 9-bit
// levels of 8-byte PTEs over 4 KiB pages). Sv32 is not modelled faithfully;
// it is treated as a single flat identity mapping, since RV32 is not this
// simulator's primary target (see DESIGN.md).
func (t *Translator) walk(vaddr uint64, kind AccessKind, priv Privilege) (uint64, error) {
	if t.Mode == Sv32 {
		return vaddr &^ pageMaskConst, nil
	}

	levels := 3
	if t.Mode == Sv48 {
		levels = 4
	}

	ppn := t.RootPPN

	for level := levels - 1; level >= 0; level-- {
		shift := uint(12 + 9*level)
		vpnPart := (vaddr >> shift) & 0x1ff
		pteAddr := (ppn << 12) + vpnPart*8

		pte, err := t.Mem.ReadUint64(pteAddr)
		if err != nil {
			return 0, t.pageFault(kind, vaddr)
		}

		if pte&pteV == 0 {
			return 0, t.pageFault(kind, vaddr)
		}

		isLeaf := pte&(pteR|pteW|pteX) != 0

		if !isLeaf {
			ppn = (pte >> 10)

			continue
		}

		if !permitted(pte, kind, priv) {
			return 0, t.pageFault(kind, vaddr)
		}

		pagePPN := pte >> 10
		pageBase := pagePPN << 12

		// Superpage: the low (level) VPN fields pass through untranslated.
		for l := 0; l < level; l++ {
			s := uint(12 + 9*l)
			mask := uint64(0x1ff) << s
			pageBase = (pageBase &^ mask) | (vaddr & mask)
		}

		return pageBase &^ pageMaskConst, nil
	}

	return 0, t.pageFault(kind, vaddr)
}

const pageMaskConst = 0xfff

func permitted(pte uint64, kind AccessKind, priv Privilege) bool {
	switch kind {
	case AccessFetch:
		if pte&pteX == 0 {
			return false
		}
	case AccessStore:
		if pte&pteW == 0 {
			return false
		}
	default:
		if pte&pteR == 0 {
			return false
		}
	}

	if priv == PrivUser && pte&pteU == 0 {
		return false
	}

	return true
}
