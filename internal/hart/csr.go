package hart

import (
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/trap"
	"github.com/tagcore/tagcore/internal/xlat"
)

// xlatMode maps MSTATUS.VM's low two bits to a paging mode: 0 bare, 1
// Sv32, 2 Sv39, 3 Sv48.
func xlatMode(mstatus uint64) xlat.Mode {
	return xlat.Mode((mstatus & isa.MStatusVM) >> isa.MStatusVMShift & 0x3)
}

// xlatPriv converts a PRV field value to the translator's Privilege type;
// the two encodings share numbering.
func xlatPriv(p uint8) xlat.Privilege {
	return xlat.Privilege(p)
}

// CSR reads a control/status register. Unimplemented addresses trap as an
// illegal instruction rather than returning zero, so a hart never silently
// accepts a typo'd CSR number.
func (h *Hart) CSR(addr uint16) (uint64, error) {
	switch addr {
	case isa.CsrFFlags:
		return h.fflags, nil
	case isa.CsrFRM:
		return h.frm, nil
	case isa.CsrFCSR:
		return h.frm<<5 | h.fflags, nil
	case isa.CsrCycle, isa.CsrInstret:
		return h.minstret, nil
	case isa.CsrTime:
		return h.clock.Now(), nil
	case isa.CsrSStatus:
		return h.mstatus & sstatusMask, nil
	case isa.CsrSIE:
		return h.mie & sInterruptMask, nil
	case isa.CsrSIP:
		return h.effectiveMIP() & sInterruptMask, nil
	case isa.CsrSTVec:
		return h.stvec, nil
	case isa.CsrSScratch:
		return h.sscratch, nil
	case isa.CsrSEPC:
		return h.sepc, nil
	case isa.CsrSCause:
		return h.scause, nil
	case isa.CsrSBadAddr:
		return h.sbadaddr, nil
	case isa.CsrSPTBR:
		return h.sptbr, nil
	case isa.CsrSTimeCmp:
		return h.stimecmp, nil
	case isa.CsrMStatus:
		return h.mstatus, nil
	case isa.CsrMIE:
		return h.mie, nil
	case isa.CsrMTVec:
		return isa.DefaultMtvec, nil
	case isa.CsrMScratch:
		return h.mscratch, nil
	case isa.CsrMEPC:
		return h.mepc, nil
	case isa.CsrMCause:
		return h.mcause, nil
	case isa.CsrMBadAddr:
		return h.mbadaddr, nil
	case isa.CsrMIP:
		return h.effectiveMIP(), nil
	case isa.CsrMCPUID:
		return h.misa(), nil
	case isa.CsrMImpID:
		return 0, nil
	case isa.CsrMHartID:
		return 0, nil
	case isa.CsrMToHost:
		return h.mtohost, nil
	case isa.CsrMFromHost:
		return h.mfromhost, nil
	case isa.CsrLdTag:
		return h.ldTag, nil
	case isa.CsrSdTag:
		return h.sdTag, nil
	default:
		return 0, trap.IllegalInstruction(0)
	}
}

// sstatusMask and sInterruptMask restrict the supervisor views of mstatus
// and mip/mie to the bits SSTATUS/SIP/SIE expose.
const (
	sstatusMask    = isa.MStatusIE | isa.MStatusFS | isa.MStatusXS | isa.MStatusSD
	sInterruptMask = isa.MipSSIP | isa.MipSTIP
)

func (h *Hart) misa() uint64 {
	var bits uint64

	for _, ext := range []isa.Extension{isa.ExtI, isa.ExtM, isa.ExtA, isa.ExtF, isa.ExtD, isa.ExtC} {
		if h.isa.Has(ext) {
			bits |= 1 << uint(ext-'A')
		}
	}

	base := uint64(2) // RV64
	if h.XLen() == 32 {
		base = 1
	}

	return base<<62 | bits
}

// effectiveMIP merges the externally-posted interrupt lines (set by
// PostInterrupt from another goroutine) into mip, under the same mutex
// PostInterrupt uses.
func (h *Hart) effectiveMIP() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.mip | h.externalMIP
}

// SetCSR writes a control/status register, applying the side effects the
// privileged architecture attaches to certain fields: MSTATUS changes that
// affect address translation flush the TLBs, and MTOHOST only latches a new
// value once the host has consumed the previous one (read as zero).
func (h *Hart) SetCSR(addr uint16, val uint64) error {
	h.serializing = false

	switch addr {
	case isa.CsrFFlags:
		h.fflags = val & 0x1f
	case isa.CsrFRM:
		h.frm = val & 0x7
	case isa.CsrFCSR:
		h.fflags = val & 0x1f
		h.frm = (val >> 5) & 0x7
	case isa.CsrSStatus:
		h.mstatus = h.mstatus&^sstatusMask | val&sstatusMask
		h.updateSD()
	case isa.CsrSIE:
		h.mie = h.mie&^sInterruptMask | val&sInterruptMask
	case isa.CsrSIP:
		h.mip = h.mip&^isa.MipSSIP | val&isa.MipSSIP
	case isa.CsrSTVec:
		h.stvec = val
	case isa.CsrSScratch:
		h.sscratch = val
	case isa.CsrSEPC:
		h.sepc = val
	case isa.CsrSCause:
		h.scause = val
	case isa.CsrSBadAddr:
		h.sbadaddr = val
	case isa.CsrSPTBR:
		h.sptbr = val
		h.xlat.RootPPN = val >> 12
		h.FlushTLB()
	case isa.CsrSTimeCmp:
		h.stimecmp = val
		h.mip &^= isa.MipSTIP
	case isa.CsrMStatus:
		h.serializing = h.setMStatus(val)
	case isa.CsrMIE:
		h.mie = val
	case isa.CsrMTVec:
		// DefaultMtvec is fixed; writes are accepted but have no effect,
		// matching the reference simulator's read-only trap base.
	case isa.CsrMScratch:
		h.mscratch = val
	case isa.CsrMEPC:
		h.mepc = val
	case isa.CsrMCause:
		h.mcause = val
	case isa.CsrMBadAddr:
		h.mbadaddr = val
	case isa.CsrMIP:
		h.mu.Lock()
		h.mip = h.mip&^(isa.MipMSIP|isa.MipSSIP) | val&(isa.MipMSIP|isa.MipSSIP)
		h.mu.Unlock()
	case isa.CsrMToHost:
		if h.mtohost == 0 {
			h.mtohost = val
			h.mailbox.ToHost(val)
		}
	case isa.CsrMFromHost:
		h.mfromhost = val
	case isa.CsrLdTag:
		h.ldTag = val
	case isa.CsrSdTag:
		h.sdTag = val
	default:
		return trap.IllegalInstruction(0)
	}

	return nil
}

// setMStatus applies a full MSTATUS write, flushing the TLBs whenever a
// field that changes the effective address space (VM mode, MPRV,
// privilege, or PRV1, the level MPRV accesses run at) changes value. It
// reports whether such a change occurred, so the caller can tell the CSR
// instruction handler to serialize the step loop around the write.
func (h *Hart) setMStatus(val uint64) bool {
	const addressSpaceBits = isa.MStatusVM | isa.MStatusMPRV | isa.MStatusPRV | isa.MStatusPRV1

	changed := h.mstatus&addressSpaceBits != val&addressSpaceBits

	h.mstatus = val
	h.updateSD()

	h.xlat.Mode = xlatMode(val)
	h.xlat.Priv = xlatPriv(h.Priv())
	h.xlat.MPRV = val&isa.MStatusMPRV != 0
	h.xlat.MPP = xlatPriv(uint8((val & isa.MStatusPRV1) >> isa.MStatusPRV1Shift))

	if changed {
		h.FlushTLB()
		h.FlushICache()
	}

	return changed
}

// Serializing reports whether the most recent SetCSR call changed a field
// (VM mode, MPRV, privilege, or PRV1) that the step loop must resync state around
// before continuing. CSR instruction handlers query it right after a write
// to decide whether to return isa.PCSerialize instead of pc+4.
func (h *Hart) Serializing() bool { return h.serializing }
