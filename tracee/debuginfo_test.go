package tracee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBaseAddr(t *testing.T) {
	mappings := []MemoryMapping{
		{Start: 0x5000, End: 0x6000},
		{Start: 0x3000, End: 0x4000},
		{Start: 0x7000, End: 0x8000},
	}
	assert.Equal(t, uint64(0x3000), computeBaseAddr(mappings))

	// A lower mapping moves the base down.
	mappings = append(mappings, MemoryMapping{Start: 0x1000, End: 0x2000})
	assert.Equal(t, uint64(0x1000), computeBaseAddr(mappings))
}

func TestDebugInfo_BreakpointOffset(t *testing.T) {
	info := &DebugInfo{
		Functions: []FunctionInfo{
			{Name: "main", Offset: 0x1100},
			{Name: "helper", Offset: 0x1200},
			{Name: "main", Offset: 0x1300}, // duplicate: first match wins
		},
	}

	offset, ok := info.BreakpointOffset("main")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1100), offset)

	offset, ok = info.BreakpointOffset("helper")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1200), offset)

	_, ok = info.BreakpointOffset("no_such_function")
	assert.False(t, ok)
}

func TestDebugInfo_MapClasses(t *testing.T) {
	exec := MemoryMapping{Start: 0x1000, End: 0x2000, Read: true, Exec: true}
	data := MemoryMapping{Start: 0x2000, End: 0x3000, Read: true, Write: true}
	rodata := MemoryMapping{Start: 0x3000, End: 0x4000, Read: true}
	info := &DebugInfo{Mappings: []MemoryMapping{exec, data, rodata}}

	execMaps, err := info.ExecMaps()
	require.NoError(t, err)
	assert.Equal(t, []MemoryMapping{exec}, execMaps)

	dataMaps, err := info.DataMaps()
	require.NoError(t, err)
	assert.Equal(t, []MemoryMapping{data}, dataMaps)

	rodataMaps, err := info.RodataMaps()
	require.NoError(t, err)
	assert.Equal(t, []MemoryMapping{rodata}, rodataMaps)
}

func TestDebugInfo_MapClassesEmpty(t *testing.T) {
	info := &DebugInfo{
		Mappings: []MemoryMapping{
			{Start: 0x1000, End: 0x2000, Read: true, Exec: true},
		},
	}

	_, err := info.DataMaps()
	assert.ErrorIs(t, err, ErrMapNotFound)
	_, err = info.RodataMaps()
	assert.ErrorIs(t, err, ErrMapNotFound)

	empty := &DebugInfo{}
	_, err = empty.ExecMaps()
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestDebugInfo_RuntimeAddr(t *testing.T) {
	pie := &DebugInfo{BaseAddr: 0x555555554000, PIE: true}
	assert.Equal(t, uint64(0x555555555100), pie.RuntimeAddr(0x1100))

	fixed := &DebugInfo{BaseAddr: 0x400000, PIE: false}
	assert.Equal(t, uint64(0x401100), fixed.RuntimeAddr(0x401100))
}
