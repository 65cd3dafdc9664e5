package tracee

import (
	"fmt"
	"math"
)

// DebugInfo is the resolved view of one loaded executable in one tracee:
// the symbols recovered from the object file joined with the live memory
// mappings. It is immutable after construction.
type DebugInfo struct {
	Functions []FunctionInfo
	Variables []VariableInfo
	Mappings  []MemoryMapping
	// BaseAddr is the lowest start address among the image's mappings.
	// Position-independent executables load at a kernel-chosen address, so
	// this is the relocation delta origin for link-time offsets.
	BaseAddr uint64
	// PIE tells whether link-time offsets need relocation by BaseAddr.
	PIE bool
}

// RuntimeAddr translates a link-time symbol offset to the tracee's virtual
// address space. Non-PIE images carry absolute link-time addresses.
func (d *DebugInfo) RuntimeAddr(offset uint64) uint64 {
	if !d.PIE {
		return offset
	}
	return d.BaseAddr + offset
}

// BreakpointOffset resolves a symbolic breakpoint request to the link-time
// offset of the function. The lookup is a linear scan by exact name; the
// first match wins if duplicates exist. The bool is false when no function
// has the name, which is an ordinary query outcome.
func (d *DebugInfo) BreakpointOffset(name string) (uint64, bool) {
	for _, f := range d.Functions {
		if f.Name == name {
			return f.Offset, true
		}
	}
	return 0, false
}

// ExecMaps returns the mappings with the read+exec permission class.
func (d *DebugInfo) ExecMaps() ([]MemoryMapping, error) {
	return d.filterMaps("exec", true, false, true)
}

// RodataMaps returns the mappings with the read-only permission class.
func (d *DebugInfo) RodataMaps() ([]MemoryMapping, error) {
	return d.filterMaps("rodata", true, false, false)
}

// DataMaps returns the mappings with the read+write permission class.
func (d *DebugInfo) DataMaps() ([]MemoryMapping, error) {
	return d.filterMaps("data", true, true, false)
}

func (d *DebugInfo) filterMaps(class string, read, write, exec bool) ([]MemoryMapping, error) {
	var maps []MemoryMapping
	for _, m := range d.Mappings {
		if m.Read == read && m.Write == write && m.Exec == exec {
			maps = append(maps, m)
		}
	}
	if len(maps) == 0 {
		return nil, fmt.Errorf("%w: no %s mapping", ErrMapNotFound, class)
	}
	return maps, nil
}

// computeBaseAddr returns the minimum start address among the mappings.
func computeBaseAddr(mappings []MemoryMapping) uint64 {
	baseAddr := uint64(math.MaxUint64)
	for _, m := range mappings {
		if m.Start < baseAddr {
			baseAddr = m.Start
		}
	}
	return baseAddr
}
