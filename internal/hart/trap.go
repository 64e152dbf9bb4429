package hart

import (
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/log"
	"github.com/tagcore/tagcore/internal/trap"
)

// pushPrivilegeStack shifts the three-level PRV/IE stack down one level
// and raises the hart to machine mode with interrupts disabled, mirroring
// the fixed (pre-delegation) trap model this simulator implements: every
// trap is taken in M-mode, and mtvec's 0x40-byte-per-level layout exists
// so the handler can tell which level faulted from the vector it was
// entered at.
func (h *Hart) pushPrivilegeStack() uint8 {
	prev := h.Priv()

	prv1 := (h.mstatus & isa.MStatusPRV1) >> isa.MStatusPRV1Shift
	ie1 := h.mstatus & isa.MStatusIE1 >> 3
	ie := h.mstatus & isa.MStatusIE

	h.mstatus = h.mstatus &^ (isa.MStatusPRV2 | isa.MStatusIE2)
	h.mstatus |= prv1 << isa.MStatusPRV2Shift
	h.mstatus |= ie1 << 6

	h.mstatus = h.mstatus &^ (isa.MStatusPRV1 | isa.MStatusIE1)
	h.mstatus |= uint64(prev) << isa.MStatusPRV1Shift
	h.mstatus |= ie << 3

	h.mstatus = h.mstatus &^ isa.MStatusIE
	h.SetPriv(isa.PrivMachine)

	return prev
}

// popPrivilegeStack reverses pushPrivilegeStack, restoring the level and
// interrupt-enable bit one stack slot up and resetting the vacated top
// slot to user mode with interrupts enabled.
func (h *Hart) popPrivilegeStack() {
	prv1 := (h.mstatus & isa.MStatusPRV1) >> isa.MStatusPRV1Shift
	ie1 := h.mstatus & isa.MStatusIE1 >> 3
	prv2 := (h.mstatus & isa.MStatusPRV2) >> isa.MStatusPRV2Shift
	ie2 := h.mstatus & isa.MStatusIE2 >> 6

	h.mstatus = h.mstatus &^ isa.MStatusIE
	h.mstatus |= ie1

	h.SetPriv(uint8(prv1))

	h.mstatus = h.mstatus &^ (isa.MStatusPRV1 | isa.MStatusIE1)
	h.mstatus |= prv2 << isa.MStatusPRV1Shift
	h.mstatus |= ie2 << 3

	h.mstatus = h.mstatus &^ (isa.MStatusPRV2 | isa.MStatusIE2)
	h.mstatus |= uint64(isa.PrivUser) << isa.MStatusPRV2Shift
	h.mstatus |= isa.MStatusIE2
}

// TrapReturn implements MRET (super=false) and SRET (super=true): pop the
// privilege stack and resume at the saved exception PC for the level being
// returned from.
func (h *Hart) TrapReturn(super bool) (uint64, error) {
	h.popPrivilegeStack()

	if super {
		return h.sepc, nil
	}

	return h.mepc, nil
}

// deliver performs the trap-entry sequence: latch cause/epc/badaddr, clear
// any outstanding LR reservation (a trap always forfeits it), push the
// privilege stack, and compute the vectored entry PC.
func (h *Hart) deliver(t trap.Trap, pc uint64) uint64 {
	prev := h.pushPrivilegeStack()

	cause := uint64(t.Cause())
	if t.Interrupt() {
		cause |= 1 << 63
	}

	h.mcause = cause
	h.mepc = pc
	h.ClearLoadReservation()

	switch v := t.(type) {
	case *trap.Fault:
		h.mbadaddr = v.BadAddr
	case *trap.TagTrap:
		h.mbadaddr = v.BadAddr
	}

	h.log.Debug("trap delivered",
		log.String("cause", t.Cause().String()),
		log.Any("pc", pc),
	)

	return isa.DefaultMtvec + 0x40*uint64(prev)
}
