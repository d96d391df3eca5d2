package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const lockBanner = `
================================================================
 SESSION LOCKED: %s
 Enter your recovery email to receive a one-time code.
================================================================
`

// terminalOverlay prints the lock banner and hands the reason to the
// recovery loop. Present never blocks.
type terminalOverlay struct {
	out    io.Writer
	locked chan<- string
}

func (o *terminalOverlay) Present(reason string) {
	fmt.Fprintf(o.out, lockBanner, reason)
	select {
	case o.locked <- reason:
	default:
	}
}

func (o *terminalOverlay) Dismiss() {
	fmt.Fprintln(o.out, "Session unlocked.")
}

// terminalPrompter collects recovery input. The code is read without echo
// when the input is a terminal.
type terminalPrompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	hidden bool
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	p := &terminalPrompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.hidden = true
	}
	return p
}

func (p *terminalPrompter) Email(ctx context.Context) (string, error) {
	fmt.Fprint(p.out, "Recovery email: ")
	return p.readLine(ctx)
}

func (p *terminalPrompter) Code(ctx context.Context) (string, error) {
	fmt.Fprint(p.out, "One-time code: ")
	if !p.hidden {
		return p.readLine(ctx)
	}
	return p.await(ctx, func() (string, error) {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		return string(b), err
	})
}

func (p *terminalPrompter) Report(msg string) {
	fmt.Fprintln(p.out, msg)
}

func (p *terminalPrompter) readLine(ctx context.Context) (string, error) {
	return p.await(ctx, func() (string, error) {
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		return strings.TrimRight(line, "\r\n"), err
	})
}

// await runs read in the background so a cancelled context releases the
// caller. The read itself stays blocked until input arrives.
func (p *terminalPrompter) await(ctx context.Context, read func() (string, error)) (string, error) {
	type answer struct {
		v   string
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		v, err := read()
		ch <- answer{v, err}
	}()
	select {
	case a := <-ch:
		return a.v, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
