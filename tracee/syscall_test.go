package tracee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyscallStack_EnterExitPair(t *testing.T) {
	stack := &SyscallStack{}
	write := SyscallInfo{Number: 1, Name: "write"}

	direction, err := stack.Record(write)
	require.NoError(t, err)
	assert.Equal(t, SyscallEnter, direction)
	assert.Equal(t, 1, stack.Depth())

	direction, err = stack.Record(write)
	require.NoError(t, err)
	assert.Equal(t, SyscallExit, direction)
	assert.Equal(t, 0, stack.Depth())
}

func TestSyscallStack_RepeatedPairsLeaveStackEmpty(t *testing.T) {
	stack := &SyscallStack{}
	read := SyscallInfo{Number: 0, Name: "read"}

	for i := 0; i < 10; i++ {
		_, err := stack.Record(read)
		require.NoError(t, err)
		_, err = stack.Record(read)
		require.NoError(t, err)
		assert.Equal(t, 0, stack.Depth())
	}
}

func TestSyscallStack_NestedPair(t *testing.T) {
	stack := &SyscallStack{}
	outer := SyscallInfo{Number: 0, Name: "read"}
	inner := SyscallInfo{Number: 13, Name: "rt_sigaction"}

	// read enters, a signal delivery re-enters the kernel via rt_sigaction.
	direction, err := stack.Record(outer)
	require.NoError(t, err)
	assert.Equal(t, SyscallEnter, direction)

	direction, err = stack.Record(inner)
	require.NoError(t, err)
	assert.Equal(t, SyscallEnter, direction)
	assert.Equal(t, 2, stack.Depth())

	direction, err = stack.Record(inner)
	require.NoError(t, err)
	assert.Equal(t, SyscallExit, direction)
	assert.Equal(t, 1, stack.Depth())

	direction, err = stack.Record(outer)
	require.NoError(t, err)
	assert.Equal(t, SyscallExit, direction)
	assert.Equal(t, 0, stack.Depth())
}

func TestSyscallStack_PopEmpty(t *testing.T) {
	stack := &SyscallStack{}
	_, ok := stack.Pop()
	assert.False(t, ok)
	_, ok = stack.Top()
	assert.False(t, ok)
}

func TestSyscallInfoByNumber_UnknownNumber(t *testing.T) {
	info := syscallInfoByNumber(1 << 40)
	assert.Equal(t, uint64(1<<40), info.Number)
	assert.NotEmpty(t, info.Name)
}
