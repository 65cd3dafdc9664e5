package tracee

import (
	"errors"
	"fmt"
)

// SyscallInfo is one syscall occurrence observed at a syscall-trace-stop.
type SyscallInfo struct {
	Number uint64
	Name   string
}

// SyscallDirection tells whether a syscall-trace-stop was classified as an
// entry or as the matching exit.
type SyscallDirection int

const (
	// SyscallEnter means a new syscall entry was pushed.
	SyscallEnter SyscallDirection = iota
	// SyscallExit means the matching entry was popped.
	SyscallExit
)

// SyscallStack records in-flight syscalls per nested trace-stop. The depth
// reflects syscalls re-entered via signal delivery while another syscall is
// pending, so the structure is a true LIFO.
type SyscallStack struct {
	infos []SyscallInfo
}

// Push records a new in-flight syscall.
func (s *SyscallStack) Push(info SyscallInfo) {
	s.infos = append(s.infos, info)
}

// Pop removes the most recent in-flight syscall. The bool is false if the
// stack is empty.
func (s *SyscallStack) Pop() (SyscallInfo, bool) {
	if len(s.infos) == 0 {
		return SyscallInfo{}, false
	}
	info := s.infos[len(s.infos)-1]
	s.infos = s.infos[:len(s.infos)-1]
	return info, true
}

// Top returns the most recent in-flight syscall without removing it.
func (s *SyscallStack) Top() (SyscallInfo, bool) {
	if len(s.infos) == 0 {
		return SyscallInfo{}, false
	}
	return s.infos[len(s.infos)-1], true
}

// Depth returns the number of in-flight syscalls.
func (s *SyscallStack) Depth() int {
	return len(s.infos)
}

// Record classifies a syscall-trace-stop. A stop for the same number as the
// top of the stack is the matching exit and pops it; any other stop is a new
// entry and pushes. The classification is correct because syscalls on one
// thread cannot interleave except via re-entrant nesting.
//
// An error is returned only when the entry/exit pairing invariant is
// violated, which the caller must treat as fatal.
func (s *SyscallStack) Record(info SyscallInfo) (SyscallDirection, error) {
	top, ok := s.Top()
	if !ok || top.Number != info.Number {
		s.Push(info)
		return SyscallEnter, nil
	}
	if _, ok := s.Pop(); !ok {
		return 0, errors.New("syscall stack: expected a pending entry to pop")
	}
	return SyscallExit, nil
}

// syscallInfoByNumber resolves the syscall name for the number. Numbers the
// host does not know keep a numeric placeholder name.
func syscallInfoByNumber(number uint64) SyscallInfo {
	name, err := syscallName(number)
	if err != nil {
		name = fmt.Sprintf("syscall_%d", number)
	}
	return SyscallInfo{Number: number, Name: name}
}
