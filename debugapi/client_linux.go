package debugapi

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// syscallStopBit marks a syscall-trace-stop when PTRACE_O_TRACESYSGOOD is set.
const syscallStopBit = 0x80

// traceOptions are set once the tracee reports its first stop.
const traceOptions = unix.PTRACE_O_TRACEEXEC | unix.PTRACE_O_TRACESYSGOOD

// Client is the kernel tracing control channel. All operations are keyed by
// the tracee's process id and must be called from the thread that attached.
type Client struct{}

// NewClient returns the new tracing control client which depends on ptrace.
func NewClient() *Client {
	return &Client{}
}

// LaunchProcess launches the new tracee with ptrace enabled. The tracee stops
// before executing its first instruction; the stop is reported by the next Wait.
func (c *Client) LaunchProcess(name string, arg ...string) (int, error) {
	cmd := exec.Command(name, arg...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace: true,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to launch %s: %w", name, err)
	}
	return cmd.Process.Pid, nil
}

// AttachProcess attaches to the existing process. The SIGSTOP the kernel
// injects is reported by the next Wait.
func (c *Client) AttachProcess(pid int) error {
	if err := unix.PtraceAttach(pid); err != nil {
		return fmt.Errorf("failed to attach to %d: %w", pid, err)
	}
	return nil
}

// SetOptions enables auto-trace-on-exec and syscall-stop marking.
// The tracee must be stopped.
func (c *Client) SetOptions(pid int) error {
	if err := unix.PtraceSetOptions(pid, traceOptions); err != nil {
		return fmt.Errorf("failed to set ptrace options: %w", err)
	}
	return nil
}

// DetachProcess detaches from the tracee and lets it run freely.
func (c *Client) DetachProcess(pid int) error {
	return unix.PtraceDetach(pid)
}

// Cont resumes the tracee, delivering the signal if it is not zero.
func (c *Client) Cont(pid int, sig syscall.Signal) error {
	return unix.PtraceCont(pid, int(sig))
}

// Syscall resumes the tracee in syscall-tracing mode so that the next stop
// is at a syscall entry or exit boundary.
func (c *Client) Syscall(pid int, sig syscall.Signal) error {
	return unix.PtraceSyscall(pid, int(sig))
}

// Step executes the single instruction of the tracee.
func (c *Client) Step(pid int) error {
	return unix.PtraceSingleStep(pid)
}

// Wait blocks until the tracee changes state and classifies the wait status.
func (c *Client) Wait(pid int) (Event, error) {
	var status unix.WaitStatus
	wpid, err := unix.Wait4(pid, &status, unix.WUNTRACED|unix.WCONTINUED, nil)
	if err != nil {
		return Event{}, fmt.Errorf("wait failed: %w", err)
	}
	if wpid == 0 {
		return Event{Type: EventStillAlive}, nil
	}

	event := Event{Pid: wpid}
	switch {
	case status.Continued():
		event.Type = EventContinued
	case status.Exited():
		event.Type = EventExited
		event.ExitStatus = status.ExitStatus()
	case status.Signaled():
		event.Type = EventSignaled
		event.Signal = status.Signal()
		event.CoreDumped = status.CoreDump()
	case status.Stopped():
		sig := status.StopSignal()
		if sig&syscallStopBit != 0 {
			event.Type = EventSyscallStop
		} else if cause := status.TrapCause(); cause > 0 {
			event.Type = EventTraceEvent
			event.Signal = sig
			event.TrapCause = cause
		} else {
			event.Type = EventStopped
			event.Signal = sig
		}
	default:
		return Event{}, fmt.Errorf("unrecognized wait status: %#x", status)
	}
	return event, nil
}

// ReadRegisters reads the full register set of the tracee.
func (c *Client) ReadRegisters(pid int) (Registers, error) {
	var rawRegs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &rawRegs); err != nil {
		return Registers{}, fmt.Errorf("failed to read registers: %w", err)
	}
	return Registers{PtraceRegs: rawRegs}, nil
}

// WriteRegisters changes the registers of the tracee.
func (c *Client) WriteRegisters(pid int, regs Registers) error {
	rawRegs := regs.PtraceRegs
	if err := unix.PtraceSetRegs(pid, &rawRegs); err != nil {
		return fmt.Errorf("failed to write registers: %w", err)
	}
	return nil
}

// ReadMemory reads the specified memory region in the tracee.
func (c *Client) ReadMemory(pid int, addr uint64, out []byte) error {
	count, err := unix.PtracePeekData(pid, uintptr(addr), out)
	if err != nil {
		return fmt.Errorf("failed to read memory at %#x: %w", addr, err)
	}
	if count != len(out) {
		return fmt.Errorf("the number of data read is invalid: %d", count)
	}
	return nil
}

// WriteMemory writes the data to the specified memory region in the tracee.
func (c *Client) WriteMemory(pid int, addr uint64, data []byte) error {
	count, err := unix.PtracePokeData(pid, uintptr(addr), data)
	if err != nil {
		return fmt.Errorf("failed to write memory at %#x: %w", addr, err)
	}
	if count != len(data) {
		return fmt.Errorf("the number of data written is invalid: %d", count)
	}
	return nil
}

// Registers represents the tracee's register set.
type Registers struct {
	unix.PtraceRegs
}

// PC returns the instruction pointer.
func (r Registers) PC() uint64 {
	return r.Rip
}

// SetPC changes the instruction pointer.
func (r *Registers) SetPC(pc uint64) {
	r.Rip = pc
}

// SyscallNumber returns the syscall number at a syscall-trace-stop.
func (r Registers) SyscallNumber() uint64 {
	return r.Orig_rax
}

// ByName returns the value of the named register. The bool is false if the
// name does not identify a register.
func (r Registers) ByName(name string) (uint64, bool) {
	regs := map[string]uint64{
		"rip": r.Rip, "rsp": r.Rsp, "rbp": r.Rbp,
		"rax": r.Rax, "rbx": r.Rbx, "rcx": r.Rcx, "rdx": r.Rdx,
		"rsi": r.Rsi, "rdi": r.Rdi, "orig_rax": r.Orig_rax,
		"r8": r.R8, "r9": r.R9, "r10": r.R10, "r11": r.R11,
		"r12": r.R12, "r13": r.R13, "r14": r.R14, "r15": r.R15,
		"eflags": r.Eflags, "cs": r.Cs, "ss": r.Ss, "ds": r.Ds,
		"es": r.Es, "fs": r.Fs, "gs": r.Gs,
		"fs_base": r.Fs_base, "gs_base": r.Gs_base,
	}
	v, ok := regs[name]
	return v, ok
}
