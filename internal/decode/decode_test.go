package decode

import (
	"errors"
	"testing"

	"github.com/tagcore/tagcore/internal/isa"
)

func handlerReturning(name string) isa.Handler {
	return func(h isa.Hart, insn uint32, pc uint64) (uint64, error) {
		return 0, errors.New(name)
	}
}

func TestTable_DecodeDispatchesByMaskMatch(t *testing.T) {
	t.Parallel()

	addHandler := handlerReturning("add")
	addiHandler := handlerReturning("addi")

	table := Build([]isa.Descriptor{
		{Name: "ADD", Mask: 0xfe00707f, Match: 0x00000033, RV64: addHandler, Ext: isa.ExtI},
		{Name: "ADDI", Mask: 0x0000707f, Match: 0x00000013, RV64: addiHandler, Ext: isa.ExtI},
	})

	h := table.Decode(0x00000033, 64)

	_, err := h(nil, 0, 0)
	if err == nil || err.Error() != "add" {
		t.Errorf("got %v, want the ADD handler", err)
	}

	h = table.Decode(0x00000013, 64)

	_, err = h(nil, 0, 0)
	if err == nil || err.Error() != "addi" {
		t.Errorf("got %v, want the ADDI handler", err)
	}
}

func TestTable_DecodeFallsBackToIllegal(t *testing.T) {
	t.Parallel()

	table := Build([]isa.Descriptor{
		{Name: "ADDI", Mask: 0x0000707f, Match: 0x00000013, RV64: handlerReturning("addi"), Ext: isa.ExtI},
	})

	h := table.Decode(0xffffffff, 64)

	_, err := h(nil, 0xffffffff, 0)
	if err == nil {
		t.Fatal("expected the illegal-instruction handler to return an error")
	}
}

func TestTable_DecodeRespectsXLen(t *testing.T) {
	t.Parallel()

	rv64Only := handlerReturning("rv64")

	table := Build([]isa.Descriptor{
		{Name: "ADDIW", Mask: 0x0000707f, Match: 0x0000001b, RV64: rv64Only, Ext: isa.ExtI},
	})

	h := table.Decode(0x0000001b, 32)

	_, err := h(nil, 0, 0)
	if err == nil || err.Error() == "rv64" {
		t.Errorf("RV32 dispatch should not resolve an RV64-only handler, got %v", err)
	}
}

func TestBuild_PanicsOnEvenMask(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Build to panic on an even mask")
		}
	}()

	Build([]isa.Descriptor{
		{Name: "BAD", Mask: 0xfffffffe, Match: 0, RV64: handlerReturning("bad")},
	})
}

func TestSetIllegalInstructionTrap(t *testing.T) {
	want := errors.New("custom illegal trap")

	SetIllegalInstructionTrap(func(insn uint32) error { return want })
	defer SetIllegalInstructionTrap(func(insn uint32) error { return illegalErr{insn} })

	table := Build(nil)

	_, err := table.Decode(0, 64)(nil, 0, 0)
	if !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
}
