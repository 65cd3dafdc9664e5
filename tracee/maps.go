package tracee

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMapNotFound indicates no memory mapping matched the query. It is an
// ordinary query outcome, not a broken session.
var ErrMapNotFound = errors.New("memory mapping not found")

// MemoryMapping is one contiguous mapped region of the tracee's address
// space. A value is never mutated after it is parsed; re-probing produces
// a fresh snapshot.
type MemoryMapping struct {
	Start  uint64
	End    uint64
	Offset uint64
	Read   bool
	Write  bool
	Exec   bool
	Path   string
}

// Size returns the length of the mapped region in bytes.
func (m MemoryMapping) Size() uint64 {
	return m.End - m.Start
}

// String renders the mapping in the /proc/PID/maps layout.
func (m MemoryMapping) String() string {
	perms := []byte("---")
	if m.Read {
		perms[0] = 'r'
	}
	if m.Write {
		perms[1] = 'w'
	}
	if m.Exec {
		perms[2] = 'x'
	}
	return fmt.Sprintf("%012x-%012x %s %08x %s", m.Start, m.End, perms, m.Offset, m.Path)
}

// LoadMappings enumerates the live mappings of the process whose backing
// file matches the given path. It returns ErrMapNotFound if the image has
// no mappings yet, which happens before the loader of a freshly exec'd
// tracee has run.
func LoadMappings(pid int, path string) ([]MemoryMapping, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("failed to open maps of %d: %w", pid, err)
	}
	defer f.Close()

	var mappings []MemoryMapping
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		mapping, err := parseMapsLine(scanner.Text())
		if err != nil {
			return nil, err
		}
		if mapping.Path != path {
			continue
		}
		mappings = append(mappings, mapping)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read maps of %d: %w", pid, err)
	}

	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: %s in process %d", ErrMapNotFound, path, pid)
	}
	return mappings, nil
}

// parseMapsLine parses one line of /proc/PID/maps:
// 55d0c948b000-55d0c948c000 r-xp 00001000 fd:01 1706156  /usr/bin/target
func parseMapsLine(line string) (MemoryMapping, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return MemoryMapping{}, fmt.Errorf("malformed maps line: %q", line)
	}

	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return MemoryMapping{}, fmt.Errorf("malformed address range: %q", fields[0])
	}
	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return MemoryMapping{}, fmt.Errorf("malformed start address: %w", err)
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return MemoryMapping{}, fmt.Errorf("malformed end address: %w", err)
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return MemoryMapping{}, fmt.Errorf("malformed file offset: %w", err)
	}

	perms := fields[1]
	mapping := MemoryMapping{
		Start:  start,
		End:    end,
		Offset: offset,
		Read:   strings.Contains(perms, "r"),
		Write:  strings.Contains(perms, "w"),
		Exec:   strings.Contains(perms, "x"),
	}
	if len(fields) >= 6 {
		mapping.Path = fields[5]
	}
	return mapping, nil
}
