package console

import (
	"context"
	"testing"
	"time"

	"github.com/tagcore/tagcore/internal/hart"
	"github.com/tagcore/tagcore/internal/isa"
)

// newTestConsole builds a Console wired to a real Hart but skipping New's
// term.MakeRaw/IsTerminal dance, since test runs have no controlling
// terminal. deliverKeys only touches hart and keyCh, so this is enough to
// exercise it directly.
func newTestConsole(t *testing.T) (*Console, *hart.Hart) {
	t.Helper()

	mem := make([]byte, 1<<12)
	tags := make([]byte, len(mem)/8)

	h, err := hart.New(mem, tags, "RV64I")
	if err != nil {
		t.Fatalf("hart.New: %v", err)
	}

	return &Console{hart: h, keyCh: make(chan byte, 1)}, h
}

func TestDeliverKeys_WritesFromHostAndPostsInterrupt(t *testing.T) {
	t.Parallel()

	c, h := newTestConsole(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.deliverKeys(ctx)

	c.keyCh <- 'x'

	deadline := time.After(time.Second)

	for {
		mip, err := h.CSR(isa.CsrMIP)
		if err != nil {
			t.Fatalf("CSR(MIP): %v", err)
		}

		if mip&isa.MipHSIP != 0 {
			break
		}

		select {
		case <-deadline:
			t.Fatal("deliverKeys did not post a host interrupt in time")
		case <-time.After(time.Millisecond):
		}
	}

	fromHost, err := h.CSR(isa.CsrMFromHost)
	if err != nil {
		t.Fatalf("CSR(MFromHost): %v", err)
	}

	if fromHost != 'x' {
		t.Errorf("CSR_MFROMHOST = %d, want %d ('x')", fromHost, byte('x'))
	}
}

func TestDeliverKeys_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	c, _ := newTestConsole(t)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		c.deliverKeys(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverKeys did not return after context cancellation")
	}
}
