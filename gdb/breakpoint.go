package gdb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Breakpoint tracks one debugger breakpoint by the number gdb assigned.
type Breakpoint struct {
	req      Requester
	Num      int
	Location string
}

var bpNumRe = regexp.MustCompile(`Breakpoint (\d+)`)

// SetBreakpoint installs a breakpoint at the named location and parses the
// number out of the confirmation line.
func SetBreakpoint(req Requester, location string) (*Breakpoint, error) {
	out, err := req.Request("break " + location)
	if err != nil {
		return nil, err
	}
	m := bpNumRe.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("break %s: no confirmation in %q", location, strings.TrimSpace(out))
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("break %s: bad breakpoint number in %q", location, strings.TrimSpace(out))
	}
	return &Breakpoint{req: req, Num: num, Location: location}, nil
}

func (b *Breakpoint) Enable() error  { return b.exec("enable") }
func (b *Breakpoint) Disable() error { return b.exec("disable") }
func (b *Breakpoint) Delete() error  { return b.exec("delete") }

func (b *Breakpoint) exec(verb string) error {
	_, err := b.req.Request(fmt.Sprintf("%s %d", verb, b.Num))
	return err
}
