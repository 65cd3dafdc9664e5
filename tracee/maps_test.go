package tracee

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapsLine(t *testing.T) {
	line := "55d0c948b000-55d0c948c000 r-xp 00001000 fd:01 1706156                    /usr/bin/target"
	mapping, err := parseMapsLine(line)
	require.NoError(t, err)

	assert.Equal(t, uint64(0x55d0c948b000), mapping.Start)
	assert.Equal(t, uint64(0x55d0c948c000), mapping.End)
	assert.Equal(t, uint64(0x1000), mapping.Size())
	assert.Equal(t, uint64(0x1000), mapping.Offset)
	assert.True(t, mapping.Read)
	assert.False(t, mapping.Write)
	assert.True(t, mapping.Exec)
	assert.Equal(t, "/usr/bin/target", mapping.Path)
}

func TestParseMapsLine_AnonymousMapping(t *testing.T) {
	line := "7ffd5a4b1000-7ffd5a4d2000 rw-p 00000000 00:00 0"
	mapping, err := parseMapsLine(line)
	require.NoError(t, err)

	assert.Empty(t, mapping.Path)
	assert.True(t, mapping.Read)
	assert.True(t, mapping.Write)
	assert.False(t, mapping.Exec)
}

func TestParseMapsLine_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"not a maps line",
		"zzzz-55d0c948c000 r-xp 00001000 fd:01 0 /usr/bin/target",
	} {
		_, err := parseMapsLine(line)
		assert.Error(t, err, "line: %q", line)
	}
}

func TestLoadMappings_Self(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	mappings, err := LoadMappings(os.Getpid(), exe)
	require.NoError(t, err)
	require.NotEmpty(t, mappings)

	for _, m := range mappings {
		assert.Equal(t, exe, m.Path)
		assert.Less(t, m.Start, m.End)
	}
}

func TestLoadMappings_NoMatch(t *testing.T) {
	_, err := LoadMappings(os.Getpid(), "/no/such/image")
	assert.ErrorIs(t, err, ErrMapNotFound)
}
