package tracer

import "fmt"

// breakpointInsts is the trap instruction patched over the original text.
var breakpointInsts = []byte{0xcc}

// Breakpoints manages the armed breakpoints of one tracee. It saves the
// original instruction bytes so a breakpoint can be cleared and the text
// restored. The actual memory accesses happen through the injected read and
// write functions.
type Breakpoints struct {
	currBreakpoints map[uint64][]byte
	readMemory      func(addr uint64, out []byte) error
	writeMemory     func(addr uint64, data []byte) error
}

// NewBreakpoints returns new Breakpoints. Pass the functions to actually
// read and write the tracee's memory.
func NewBreakpoints(readMemory func(addr uint64, out []byte) error, writeMemory func(addr uint64, data []byte) error) Breakpoints {
	return Breakpoints{
		currBreakpoints: make(map[uint64][]byte),
		readMemory:      readMemory,
		writeMemory:     writeMemory,
	}
}

// Set arms the breakpoint at the specified address. It is a no-op if the
// address is already armed.
func (b Breakpoints) Set(addr uint64) error {
	if _, ok := b.currBreakpoints[addr]; ok {
		return nil
	}

	orgInsts := make([]byte, len(breakpointInsts))
	if err := b.readMemory(addr, orgInsts); err != nil {
		return fmt.Errorf("failed to save original instruction: %w", err)
	}
	if err := b.writeMemory(addr, breakpointInsts); err != nil {
		return fmt.Errorf("failed to arm breakpoint: %w", err)
	}

	b.currBreakpoints[addr] = orgInsts
	return nil
}

// Clear disarms the breakpoint at the specified address and restores the
// original instruction. It is a no-op if the address is not armed.
func (b Breakpoints) Clear(addr uint64) error {
	orgInsts, ok := b.currBreakpoints[addr]
	if !ok {
		return nil
	}

	if err := b.writeMemory(addr, orgInsts); err != nil {
		return fmt.Errorf("failed to restore original instruction: %w", err)
	}

	delete(b.currBreakpoints, addr)
	return nil
}

// ClearAll disarms every breakpoint, restoring the original text.
func (b Breakpoints) ClearAll() error {
	for addr := range b.currBreakpoints {
		if err := b.Clear(addr); err != nil {
			return err
		}
	}
	return nil
}

// Exist returns true if a breakpoint is armed at the address.
func (b Breakpoints) Exist(addr uint64) bool {
	_, ok := b.currBreakpoints[addr]
	return ok
}

// Addrs returns the addresses of the armed breakpoints.
func (b Breakpoints) Addrs() []uint64 {
	addrs := make([]uint64, 0, len(b.currBreakpoints))
	for addr := range b.currBreakpoints {
		addrs = append(addrs, addr)
	}
	return addrs
}
