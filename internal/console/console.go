// Package console adapts a hart's host/target mailbox CSRs to a real
// terminal, the way internal/tty adapted the original machine's keyboard
// and display devices: raw-mode terminal I/O on one side, channel-fed
// goroutines on the other.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/tagcore/tagcore/internal/hart"
	"github.com/tagcore/tagcore/internal/isa"
)

// ErrNoTTY is returned if standard input is not a terminal, in which case
// raw-mode console I/O is unavailable.
var ErrNoTTY = errors.New("console: not a TTY")

// Console binds a Hart's mailbox CSRs to the process's controlling
// terminal: target writes to CSR_MTOHOST are echoed to the terminal, and
// terminal input is delivered to the target through CSR_MFROMHOST,
// posting a host interrupt so the hart wakes to consume it.
type Console struct {
	hart *hart.Hart

	in    *os.File
	out   *term.Terminal
	fd    int
	state *term.State

	keyCh chan byte
}

// New builds a Console over h, using stdin as the terminal: keys are read
// from it and target output is written back to it.
// Callers must call Restore when done to return the terminal to its
// original state.
func New(h *hart.Hart) (*Console, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	c := &Console{
		hart:  h,
		in:    os.Stdin,
		out:   term.NewTerminal(os.Stdin, ""),
		fd:    fd,
		state: saved,
		keyCh: make(chan byte, 1),
	}

	if err := c.setTerminalParams(1, 0); err != nil {
		term.Restore(fd, saved)
		return nil, err
	}

	return c, nil
}

// ToHost implements hart.Mailbox: it is called synchronously whenever the
// target writes CSR_MTOHOST, and prints the low byte to the terminal.
func (c *Console) ToHost(val uint64) {
	fmt.Fprintf(c.out, "%c", byte(val))
}

// Restore returns the terminal to its original state.
func (c *Console) Restore() {
	_ = os.Stdin.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = os.Stdin.SetReadDeadline(time.Time{})

	return nil
}

// Run reads terminal input and delivers it to the hart's mailbox until
// ctx is cancelled. It starts the reader and delivery goroutines and
// returns immediately.
func (c *Console) Run(ctx context.Context) {
	go c.readTerminal(ctx)
	go c.deliverKeys(ctx)
}

func (c *Console) readTerminal(ctx context.Context) {
	buf := bufio.NewReader(c.in)

	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case c.keyCh <- b:
		}
	}
}

func (c *Console) deliverKeys(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-c.keyCh:
			c.hart.SetFromHost(uint64(key))
			c.hart.PostInterrupt(isa.MipHSIP)
		}
	}
}
