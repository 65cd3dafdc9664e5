package tracee

import (
	seccomp "github.com/seccomp/libseccomp-golang"

	"github.com/Totsugekitai/rdbg/debugapi"
)

// syscallName resolves the host-native name of the syscall number.
func syscallName(number uint64) (string, error) {
	return seccomp.ScmpSyscall(number).GetName()
}

// NewSyscallInfo derives the syscall occurrence from the register state at
// a syscall-trace-stop.
func NewSyscallInfo(regs debugapi.Registers) SyscallInfo {
	return syscallInfoByNumber(regs.SyscallNumber())
}

// CatchSyscall resolves the syscall-trace-stop the tracee is currently
// suspended at: it derives the syscall from the register state, records it
// on the stack, and resumes the tracee in syscall-tracing mode. It is
// usable outside the main dispatch loop; the memory-map probe depends on it
// to keep the tracee schedulable while polling.
func CatchSyscall(client *debugapi.Client, pid int, stack *SyscallStack) (SyscallDirection, error) {
	regs, err := client.ReadRegisters(pid)
	if err != nil {
		return 0, err
	}

	direction, err := stack.Record(NewSyscallInfo(regs))
	if err != nil {
		return 0, err
	}

	if err := client.Syscall(pid, 0); err != nil {
		return 0, err
	}
	return direction, nil
}
