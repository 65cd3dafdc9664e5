package tracee

import (
	"debug/elf"
	"fmt"
)

// FunctionInfo is one executable symbol of the target image. The offset is
// a link-time virtual address, not yet relocated.
type FunctionInfo struct {
	Name   string
	Offset uint64
}

// VariableInfo is one data symbol of the target image.
type VariableInfo struct {
	Name   string
	Offset uint64
}

// IsIncluded reports whether the variable lives inside the given mapping of
// the live tracee. The link-time offset is translated by the delta between
// the mapping start and the image base address before it is checked against
// the mapping's file-offset range. The untranslated branch covers symbols
// in a mapping below the computed base when the probe observed only a
// subset of mappings.
func (v VariableInfo) IsIncluded(mapping MemoryMapping, baseAddr uint64) bool {
	baseDiff := mapping.Start - baseAddr
	varOffset := v.Offset
	if v.Offset > baseDiff {
		varOffset = v.Offset - baseDiff
	}
	return mapping.Offset <= varOffset && varOffset < mapping.Offset+mapping.Size()
}

// isPIE reports whether the image is a position-independent executable,
// which the kernel loads at a non-zero base address.
func isPIE(path string) (bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return f.Type == elf.ET_DYN, nil
}

// ListSymbols parses the on-disk executable image and yields its function
// and data symbols with their link-time addresses. Symbols without a
// readable name are dropped. A malformed or inaccessible image is an
// unrecoverable startup condition and surfaces as an error the caller is
// expected to treat as fatal.
func ListSymbols(path string) ([]FunctionInfo, []VariableInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	symbols, err := f.Symbols()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read symbol table of %s: %w", path, err)
	}

	var functions []FunctionInfo
	var variables []VariableInfo
	for _, sym := range symbols {
		if sym.Name == "" {
			continue
		}
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC:
			functions = append(functions, FunctionInfo{Name: sym.Name, Offset: sym.Value})
		case elf.STT_OBJECT:
			variables = append(variables, VariableInfo{Name: sym.Name, Offset: sym.Value})
		}
	}
	return functions, variables, nil
}
