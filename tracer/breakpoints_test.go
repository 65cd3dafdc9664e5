package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory simulates the tracee's text for breakpoint tests.
type fakeMemory map[uint64]byte

func (m fakeMemory) read(addr uint64, out []byte) error {
	for i := range out {
		out[i] = m[addr+uint64(i)]
	}
	return nil
}

func (m fakeMemory) write(addr uint64, data []byte) error {
	for i, b := range data {
		m[addr+uint64(i)] = b
	}
	return nil
}

func TestBreakpoints_SetAndClear(t *testing.T) {
	mem := fakeMemory{0x100: 0x55} // push rbp
	bps := NewBreakpoints(mem.read, mem.write)

	require.NoError(t, bps.Set(0x100))
	assert.True(t, bps.Exist(0x100))
	assert.Equal(t, byte(0xcc), mem[0x100])

	require.NoError(t, bps.Clear(0x100))
	assert.False(t, bps.Exist(0x100))
	assert.Equal(t, byte(0x55), mem[0x100], "original instruction not restored")
}

func TestBreakpoints_SetTwice(t *testing.T) {
	mem := fakeMemory{0x100: 0x55}
	bps := NewBreakpoints(mem.read, mem.write)

	require.NoError(t, bps.Set(0x100))
	// The second set must not save the trap instruction as the original.
	require.NoError(t, bps.Set(0x100))

	require.NoError(t, bps.Clear(0x100))
	assert.Equal(t, byte(0x55), mem[0x100])
}

func TestBreakpoints_ClearNotSet(t *testing.T) {
	mem := fakeMemory{}
	bps := NewBreakpoints(mem.read, mem.write)
	assert.NoError(t, bps.Clear(0x100))
}

func TestBreakpoints_ClearAll(t *testing.T) {
	mem := fakeMemory{0x100: 0x55, 0x200: 0x48}
	bps := NewBreakpoints(mem.read, mem.write)

	require.NoError(t, bps.Set(0x100))
	require.NoError(t, bps.Set(0x200))
	assert.Len(t, bps.Addrs(), 2)

	require.NoError(t, bps.ClearAll())
	assert.Empty(t, bps.Addrs())
	assert.Equal(t, byte(0x55), mem[0x100])
	assert.Equal(t, byte(0x48), mem[0x200])
}
