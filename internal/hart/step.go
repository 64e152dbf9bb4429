package hart

import (
	"context"

	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/log"
	"github.com/tagcore/tagcore/internal/trap"
)

// checkTimer raises MIP.STIP once the clock has reached stimecmp. The bit
// stays latched until software clears it by writing a new stimecmp
// value.
func (h *Hart) checkTimer() {
	if h.stimecmp != 0 && h.clock.Now() >= h.stimecmp {
		h.mip |= isa.MipSTIP
	}
}

// pendingInterrupt returns the highest-priority interrupt that is both
// pending and enabled, in the fixed priority order machine software
// interrupt, host interrupt, supervisor software interrupt, machine then
// supervisor timer interrupt. Interrupts are masked entirely while
// running in machine mode with MSTATUS.IE clear.
func (h *Hart) pendingInterrupt() (trap.Trap, bool) {
	pending := (h.effectiveMIP() | h.intSrc.Pending()) & h.mie

	if pending == 0 {
		return nil, false
	}

	if h.Priv() == isa.PrivMachine && h.mstatus&isa.MStatusIE == 0 {
		return nil, false
	}

	switch {
	case pending&isa.MipMSIP != 0:
		return trap.SoftwareInterrupt(), true
	case pending&isa.MipHSIP != 0:
		return trap.HostInterrupt(), true
	case pending&isa.MipSSIP != 0:
		return trap.SoftwareInterrupt(), true
	case pending&isa.MipMTIP != 0, pending&isa.MipSTIP != 0:
		return trap.TimerInterrupt(), true
	default:
		return nil, false
	}
}

// asTrap converts err to a trap.Trap, using fallback for the rare case of
// a raw, non-trap error escaping the memory pipeline (an out-of-range RAM
// or tag access past the end of a misconfigured address space).
func asTrap(err error, fallback trap.Trap) trap.Trap {
	if t, ok := err.(trap.Trap); ok {
		return t
	}

	return fallback
}

// Step retires n instructions and returns the number retired. A trap (an
// interrupt, or a fault raised by fetch or by a handler) is delivered and
// stepping continues at the trap vector; the trapping instruction does
// not count toward n. The one early exit is a CSR write that serializes
// the hart (isa.PCSerialize): that instruction retires and Step returns
// at once, so the result can be less than n.
func (h *Hart) Step(n int) int {
	retired := 0

	for retired < n {
		h.checkTimer()

		if t, ok := h.pendingInterrupt(); ok {
			h.SetPC(h.deliver(t, h.PC()))
			continue
		}

		pc := h.PC()

		entry, err := h.icache.Fetch(pc)
		if err != nil {
			h.SetPC(h.deliver(asTrap(err, trap.FetchFault(pc)), pc))
			continue
		}

		if h.Debug {
			h.log.Debug("step",
				log.Any("pc", pc),
				log.String("insn", h.disasm.Disassemble(pc, entry.Raw)),
			)
		}

		next, err := entry.Handler(h, entry.Raw, pc)
		if err != nil {
			h.SetPC(h.deliver(asTrap(err, trap.LoadFault(pc)), pc))
			continue
		}

		serialized := next == isa.PCSerialize
		if serialized {
			next = pc + 4
		}

		h.SetPC(next)
		h.minstret++
		h.tracer.Trace(pc, entry.Raw)
		retired++

		if serialized {
			break
		}
	}

	return retired
}

// Run drives Step in a loop of quantum-sized batches until ctx is
// cancelled, mirroring the reference step loop's Run/Step split: Step is
// the unit of work a harness can call directly for single-instruction
// control, Run is the convenience wrapper for free-running execution.
func (h *Hart) Run(ctx context.Context) error {
	const quantum = 4096

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		h.Step(quantum)
	}
}
