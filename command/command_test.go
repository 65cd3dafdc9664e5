package command

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Totsugekitai/rdbg/tracee"
	"github.com/Totsugekitai/rdbg/tracer"
)

func TestParse(t *testing.T) {
	cmd, ok := Parse("break main.main")
	require.True(t, ok)
	assert.Equal(t, "break", cmd.Name)
	assert.Equal(t, []string{"main.main"}, cmd.Args)

	cmd, ok = Parse("  watch   addr  0x1000  ")
	require.True(t, ok)
	assert.Equal(t, "watch", cmd.Name)
	assert.Equal(t, []string{"addr", "0x1000"}, cmd.Args)

	cmd, ok = Parse("c")
	require.True(t, ok)
	assert.Equal(t, "c", cmd.Name)
	assert.Empty(t, cmd.Args)
}

func TestParse_BlankLine(t *testing.T) {
	_, ok := Parse("")
	assert.False(t, ok)
	_, ok = Parse("   \t ")
	assert.False(t, ok)
}

func newTestExecutor() (*Executor, *bytes.Buffer) {
	var out bytes.Buffer
	return &Executor{logger: zerolog.Nop(), out: &out}, &out
}

func testDebuggerInfo() *tracer.DebuggerInfo {
	return &tracer.DebuggerInfo{
		DebugInfo: &tracee.DebugInfo{
			Functions: []tracee.FunctionInfo{
				{Name: "main.main", Offset: 0x1100},
				{Name: "main.helper", Offset: 0x1200},
				{Name: "runtime.main", Offset: 0x2000},
			},
			Variables: []tracee.VariableInfo{
				{Name: "main.counter", Offset: 0x3000},
			},
			Mappings: []tracee.MemoryMapping{
				{Start: 0x1000, End: 0x2000, Read: true, Exec: true, Path: "/bin/target"},
				{Start: 0x2000, End: 0x3000, Read: true, Write: true, Path: "/bin/target"},
			},
		},
	}
}

func TestCmdMaps(t *testing.T) {
	e, out := newTestExecutor()
	info := testDebuggerInfo()

	e.cmdMaps(info, nil)
	assert.Equal(t, 2, strings.Count(out.String(), "/bin/target"))

	out.Reset()
	e.cmdMaps(info, []string{"exec"})
	assert.Contains(t, out.String(), "r-x")
	assert.Equal(t, 1, strings.Count(out.String(), "/bin/target"))

	out.Reset()
	e.cmdMaps(info, []string{"rodata"})
	assert.Contains(t, out.String(), "no rodata mapping")

	out.Reset()
	e.cmdMaps(info, []string{"bogus"})
	assert.Contains(t, out.String(), "usage:")
}

func TestCmdSyms(t *testing.T) {
	e, out := newTestExecutor()
	info := testDebuggerInfo()

	e.cmdSyms(info, nil)
	assert.Contains(t, out.String(), "main.main")
	assert.Contains(t, out.String(), "runtime.main")
	assert.Contains(t, out.String(), "main.counter")

	out.Reset()
	e.cmdSyms(info, []string{"main."})
	assert.Contains(t, out.String(), "main.helper")
	assert.NotContains(t, out.String(), "runtime.main")
}

func TestCmdSyms_Limit(t *testing.T) {
	e, out := newTestExecutor()
	info := &tracer.DebuggerInfo{DebugInfo: &tracee.DebugInfo{}}
	for i := 0; i < 60; i++ {
		info.DebugInfo.Functions = append(info.DebugInfo.Functions, tracee.FunctionInfo{
			Name:   "fn",
			Offset: uint64(i),
		})
	}

	e.cmdSyms(info, nil)
	assert.Equal(t, 51, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), "more symbols")
}
