package ops

import (
	"github.com/tagcore/tagcore/internal/isa"
	"github.com/tagcore/tagcore/internal/trap"
)

// SYSTEM opcode instructions with funct3 == 0: ECALL, EBREAK, SRET, MRET,
// WFI, SFENCE.VMA. Distinguished by funct12 (insn[31:20]) except
// SFENCE.VMA, which carries operands in rs1/rs2 and is matched on funct7
// alone.
//
// | funct12/rs2|rs1 | 00000  | 000  | 00000 | SYSTEM(0x73) |

const (
	funct12ECall  = 0x000
	funct12EBreak = 0x001
	funct12SRet   = 0x102
	funct12MRet   = 0x302
	funct12WFI    = 0x105
	funct7SFenceVMA = 0x09
)

func opSystem(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
	if insn>>25 == funct7SFenceVMA {
		return execSFenceVMA(h, pc)
	}

	switch insn >> 20 {
	case funct12ECall:
		return 0, trap.ECall(h.Priv())
	case funct12EBreak:
		return 0, trap.Breakpoint()
	case funct12SRet:
		return execTrapReturn(h, true)
	case funct12MRet:
		return execTrapReturn(h, false)
	case funct12WFI:
		return pc + 4, nil
	default:
		return 0, trap.IllegalInstruction(insn)
	}
}

func execTrapReturn(h isa.Hart, super bool) (uint64, error) {
	next, err := h.TrapReturn(super)
	if err != nil {
		return 0, err
	}

	return next, nil
}

// SFENCE.VMA rs1, rs2: invalidates cached address translations. This
// simulator does not track per-ASID or per-page scoping, so any
// SFENCE.VMA flushes the whole TLB and the fetch cache.
func execSFenceVMA(h isa.Hart, pc uint64) (uint64, error) {
	h.FlushTLB()
	h.FlushICache()

	return pc + 4, nil
}
