package hart

// Clock supplies wall/simulated time for the CSR_TIME read and for the
// step loop's timer-interrupt check against stimecmp.
type Clock interface {
	Now() uint64
}

// Mailbox is notified synchronously whenever the target writes
// CSR_MTOHOST, the target's half of the host/target console mailbox.
// internal/console implements this over a real terminal.
type Mailbox interface {
	ToHost(val uint64)
}

// InterruptSource lets the harness assert additional interrupt-pending
// bits (MIP encoding) that the step loop ORs in at the start of every
// Step call, alongside whatever PostInterrupt has latched.
type InterruptSource interface {
	Pending() uint64
}

// Disassembler renders a decoded instruction for tracing. Hart never
// calls it on the hot path unless Debug is set.
type Disassembler interface {
	Disassemble(pc uint64, insn uint32) string
}

// MemTracer observes retired instructions for tooling (single-step
// debuggers, coverage tools). It is called once per retired instruction,
// not per memory access, since instruction handlers are written against
// isa.Hart and do not carry a tracer handle of their own.
type MemTracer interface {
	Trace(pc uint64, insn uint32)
}

type noopClock struct{}

func (noopClock) Now() uint64 { return 0 }

type noopMailbox struct{}

func (noopMailbox) ToHost(uint64) {}

type noopInterruptSource struct{}

func (noopInterruptSource) Pending() uint64 { return 0 }

type noopDisassembler struct{}

func (noopDisassembler) Disassemble(uint64, uint32) string { return "" }

type noopMemTracer struct{}

func (noopMemTracer) Trace(uint64, uint32) {}

// Option configures a Hart at construction time.
type Option func(*Hart)

// WithClock overrides the hart's time source.
func WithClock(c Clock) Option { return func(h *Hart) { h.clock = c } }

// WithMailbox overrides the hart's host/target mailbox sink.
func WithMailbox(m Mailbox) Option { return func(h *Hart) { h.mailbox = m } }

// SetMailbox overrides the mailbox sink after construction. It exists for
// harnesses that wire a terminal-backed console (internal/console), whose
// constructor needs the already-built *Hart to deliver keys into, and so
// can't be supplied as a WithMailbox option before New returns.
func (h *Hart) SetMailbox(m Mailbox) { h.mailbox = m }

// WithInterruptSource overrides the hart's external interrupt controller.
func WithInterruptSource(s InterruptSource) Option { return func(h *Hart) { h.intSrc = s } }

// WithDisassembler attaches a disassembler used when Debug is set.
func WithDisassembler(d Disassembler) Option { return func(h *Hart) { h.disasm = d } }

// WithMemTracer attaches a per-instruction trace sink.
func WithMemTracer(t MemTracer) Option { return func(h *Hart) { h.tracer = t } }

// WithDebug enables per-instruction logging via the attached
// Disassembler.
func WithDebug(debug bool) Option { return func(h *Hart) { h.Debug = debug } }
