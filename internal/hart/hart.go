// Package hart assembles the tagged-memory RISC-V execution core: general
// and floating-point register files, the CSR file and privilege stack, and
// the memory/decode/cache pipeline built from internal/mmu, internal/xlat,
// internal/icache, and internal/decode. The concrete *Hart satisfies
// isa.Hart structurally, so internal/ops and internal/decode never import
// this package.
package hart

import (
	"sync"

	"github.com/tagcore/tagcore/internal/decode"
	"github.com/tagcore/tagcore/internal/icache"
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/log"
	"github.com/tagcore/tagcore/internal/mmu"
	"github.com/tagcore/tagcore/internal/ops"
	"github.com/tagcore/tagcore/internal/tagmem"
	"github.com/tagcore/tagcore/internal/trap"
	"github.com/tagcore/tagcore/internal/xlat"
)

func init() {
	decode.SetIllegalInstructionTrap(func(insn uint32) error {
		return trap.IllegalInstruction(insn)
	})
}

// Hart is a single RISC-V hardware thread with the tagged-memory
// extension: 32 general registers (each with an 8-bit tag companion), 32
// FP registers, the CSR file, and the memory pipeline.
type Hart struct {
	pc     uint64
	gpr    [32]uint64
	gprTag [32]uint8
	fpr    [32]uint64

	mstatus  uint64
	mepc     uint64
	mcause   uint64
	mbadaddr uint64
	mie      uint64
	mip      uint64
	mscratch uint64
	sscratch uint64
	sepc     uint64
	scause   uint64
	sbadaddr uint64
	stvec    uint64
	sptbr    uint64
	stimecmp uint64
	mtohost  uint64
	mfromhost uint64
	ldTag    uint64
	sdTag    uint64
	fflags   uint64
	frm      uint64
	minstret uint64

	loadReservation    uint64
	hasLoadReservation bool

	serializing bool

	isa  *isa.ISA
	ram  *mmu.RAM
	tag  *tagmem.Mem
	xlat *xlat.Translator
	mmu  *mmu.DataMMU
	icache *icache.ICache
	table  *decode.Table

	clock   Clock
	mailbox Mailbox
	intSrc  InterruptSource
	disasm  Disassembler
	tracer  MemTracer

	Debug bool

	mu          sync.Mutex // guards externalMIP, set by the harness from another goroutine
	externalMIP uint64

	log *log.Logger
}

// New builds a Hart over mem (length memsz) and tagmem (length
// memsz/8), parsing isaString per the grammar documented in
// internal/isa. Both slices are retained, not copied, and are owned by
// the caller for the hart's lifetime.
func New(mem, tagmemBuf []byte, isaString string, opts ...Option) (*Hart, error) {
	parsed, err := isa.Parse(isaString)
	if err != nil {
		return nil, err
	}

	if len(tagmemBuf) != len(mem)/8 {
		return nil, &ConfigError{Reason: "tagmem length must be len(mem)/8"}
	}

	h := &Hart{
		isa:     parsed,
		ram:     mmu.NewRAM(mem),
		tag:     tagmem.New(tagmemBuf),
		ldTag:   2, // legacy policy default (DESIGN.md Open Question 2)
		sdTag:   1,
		clock:   noopClock{},
		mailbox: noopMailbox{},
		intSrc:  noopInterruptSource{},
		disasm:  noopDisassembler{},
		tracer:  noopMemTracer{},
		log:     log.ForComponent("hart"),
	}

	h.mstatus = uint64(isa.PrivMachine) << isa.MStatusPRVShift

	h.xlat = xlat.New(h.ram)
	h.mmu = mmu.New(h.xlat, h.ram, h.tag, h)

	descriptors := filterDescriptors(ops.All(), parsed)
	h.table = decode.Build(descriptors)
	h.icache = icache.New(h.xlat, h.ram, h.table, h.XLen)

	for _, opt := range opts {
		opt(h)
	}

	h.log.Info("hart initialized", log.String("isa", isaString))

	return h, nil
}

func filterDescriptors(all []isa.Descriptor, parsed *isa.ISA) []isa.Descriptor {
	out := make([]isa.Descriptor, 0, len(all))

	for _, d := range all {
		if d.Ext == isa.ExtI || parsed.Has(d.Ext) {
			out = append(out, d)
		}
	}

	return out
}

// ConfigError is returned by New when the caller's RAM/tagmem buffers or
// ISA string are malformed. This is the one place malformed input is a
// plain Go error return rather than a trap, since it happens once at
// construction, before any instruction executes.
type ConfigError struct{ Reason string }

func (e *ConfigError) Error() string { return "hart: " + e.Reason }

// Reset returns the hart to its power-on state: PC 0, machine mode,
// cleared registers, flushed TLBs and icache. RAM and tag memory contents
// are left untouched; the harness owns loading a program before or after
// Reset.
func (h *Hart) Reset() {
	h.pc = 0
	h.gpr = [32]uint64{}
	h.gprTag = [32]uint8{}
	h.fpr = [32]uint64{}
	h.mstatus = uint64(isa.PrivMachine) << isa.MStatusPRVShift
	h.mepc, h.mcause, h.mbadaddr = 0, 0, 0
	h.mie, h.mip, h.externalMIP = 0, 0, 0
	h.hasLoadReservation = false
	h.minstret = 0

	h.FlushTLB()
	h.FlushICache()

	h.log.Info("hart reset")
}

// PC returns the current program counter.
func (h *Hart) PC() uint64 { return h.pc }

// SetPC sets the program counter.
func (h *Hart) SetPC(pc uint64) { h.pc = pc }

// GPR returns register reg's value and tag. x0 always reads (0, 0).
func (h *Hart) GPR(reg uint8) (uint64, uint8) {
	if reg == 0 {
		return 0, 0
	}

	return h.gpr[reg], h.gprTag[reg]
}

// SetGPR writes register reg's value and tag. Writes to x0 are discarded.
func (h *Hart) SetGPR(reg uint8, val uint64, tag uint8) {
	if reg == 0 {
		return
	}

	h.gpr[reg] = val
	h.gprTag[reg] = tag
}

// FPR returns FP register reg's raw (possibly NaN-boxed) bits.
func (h *Hart) FPR(reg uint8) uint64 { return h.fpr[reg] }

// SetFPR writes FP register reg's raw bits.
func (h *Hart) SetFPR(reg uint8, val uint64) { h.fpr[reg] = val }

// MarkFPDirty sets mstatus.FS to dirty and recomputes the SD summary bit.
func (h *Hart) MarkFPDirty() {
	h.mstatus |= isa.MStatusFS
	h.updateSD()
}

func (h *Hart) updateSD() {
	dirty := h.mstatus&isa.MStatusFS == isa.MStatusFS || h.mstatus&isa.MStatusXS == isa.MStatusXS
	if dirty {
		h.mstatus |= isa.MStatusSD
	} else {
		h.mstatus &^= isa.MStatusSD
	}
}

// MMU returns the hart's tagged data MMU, used by instruction handlers.
func (h *Hart) MMU() *mmu.DataMMU { return h.mmu }

// Priv returns the current privilege level, held in mstatus.PRV.
func (h *Hart) Priv() uint8 {
	return uint8((h.mstatus & isa.MStatusPRV) >> isa.MStatusPRVShift)
}

// SetPriv sets the current privilege level.
func (h *Hart) SetPriv(p uint8) {
	h.mstatus = h.mstatus&^isa.MStatusPRV | uint64(p)<<isa.MStatusPRVShift
}

// XLen returns the hart's current register width, 32 or 64.
func (h *Hart) XLen() int { return h.isa.XLen }

// HasExtension reports whether ext is enabled for this hart.
func (h *Hart) HasExtension(ext isa.Extension) bool { return h.isa.Has(ext) }

// LoadReservation returns the address reserved by the last LR, if any.
func (h *Hart) LoadReservation() (uint64, bool) { return h.loadReservation, h.hasLoadReservation }

// SetLoadReservation records addr as reserved by an LR instruction.
func (h *Hart) SetLoadReservation(addr uint64) {
	h.loadReservation = addr
	h.hasLoadReservation = true
}

// ClearLoadReservation drops any outstanding reservation. Called by the
// step loop on every trap delivery.
func (h *Hart) ClearLoadReservation() { h.hasLoadReservation = false }

// FlushTLB invalidates every cached address translation.
func (h *Hart) FlushTLB() { h.xlat.FlushTLB() }

// FlushICache invalidates every cached decoded instruction.
func (h *Hart) FlushICache() { h.icache.Flush() }

// LoadMask implements mmu.TagPolicy: bit k set means a load touching a
// word tagged k traps.
func (h *Hart) LoadMask() uint64 { return h.ldTag }

// StoreMask implements mmu.TagPolicy for stores.
func (h *Hart) StoreMask() uint64 { return h.sdTag }

// ToHost returns the current value latched in CSR_MTOHOST.
func (h *Hart) ToHost() uint64 { return h.mtohost }

// SetFromHost writes CSR_MFROMHOST asynchronously, as the harness's side
// of the host/target mailbox.
func (h *Hart) SetFromHost(val uint64) { h.mfromhost = val }

// PostInterrupt ORs bits into the externally-asserted interrupt lines.
// Safe to call from a goroutine other than the one driving Step, per the
// concurrency contract: the harness may signal interrupts between Step
// calls without additional synchronization.
func (h *Hart) PostInterrupt(bits uint64) {
	h.mu.Lock()
	h.externalMIP |= bits
	h.mu.Unlock()
}
