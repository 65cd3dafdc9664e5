package tracer

import (
	"fmt"

	"github.com/Totsugekitai/rdbg/tracee"
)

// WatchKind discriminates the two kinds of monitored locations.
type WatchKind int

const (
	// WatchAddress monitors a virtual address in the tracee.
	WatchAddress WatchKind = iota
	// WatchRegister monitors a register of the tracee.
	WatchRegister
)

// Watchable is a monitored location, either a virtual address or a
// register. Exactly one of the two variants is active; the two kinds need
// different re-read accessors, so they are never unified behind a shared
// mutable value holder.
type Watchable struct {
	kind WatchKind
	addr uint64
	reg  string
}

// WatchAddr returns the address-kind watchable.
func WatchAddr(addr uint64) Watchable {
	return Watchable{kind: WatchAddress, addr: addr}
}

// WatchReg returns the register-kind watchable.
func WatchReg(name string) Watchable {
	return Watchable{kind: WatchRegister, reg: name}
}

// Kind returns the active variant.
func (w Watchable) Kind() WatchKind {
	return w.kind
}

// Addr returns the monitored address. The bool is false for the register kind.
func (w Watchable) Addr() (uint64, bool) {
	return w.addr, w.kind == WatchAddress
}

// Reg returns the monitored register name. The bool is false for the
// address kind.
func (w Watchable) Reg() (string, bool) {
	return w.reg, w.kind == WatchRegister
}

// String renders the monitored location.
func (w Watchable) String() string {
	if w.kind == WatchRegister {
		return "%" + w.reg
	}
	return fmt.Sprintf("*%#x", w.addr)
}

// Watchpoint pairs a monitored location with the value observed at the
// previous trace-stop, so a consumer can detect a change by re-reading the
// current value through the matching accessor.
type Watchpoint struct {
	Target    Watchable
	LastValue uint64
}

// DebuggerInfo is the aggregate root of one debug session. It is owned
// exclusively by the single control loop and passed by pointer into each
// command's execution, so no locking is needed.
type DebuggerInfo struct {
	SyscallStack *tracee.SyscallStack
	Breakpoints  Breakpoints
	DebugInfo    *tracee.DebugInfo
	Watches      []Watchpoint
	// PrevCommand is the previously issued command line, replayed when the
	// user enters an empty line.
	PrevCommand string
	// Step toggles the dispatch loop between single-instruction and
	// free-run modes.
	Step bool
}

// SetWatchpoint appends the monitored location to the watch list together
// with its initial value. Entries are not deduplicated and persist until
// explicitly removed.
func (d *DebuggerInfo) SetWatchpoint(target Watchable, initialValue uint64) {
	d.Watches = append(d.Watches, Watchpoint{Target: target, LastValue: initialValue})
}

// RemoveWatchpoint removes the watch-list entry at the index. The bool is
// false if the index is out of range.
func (d *DebuggerInfo) RemoveWatchpoint(index int) bool {
	if index < 0 || index >= len(d.Watches) {
		return false
	}
	d.Watches = append(d.Watches[:index], d.Watches[index+1:]...)
	return true
}
