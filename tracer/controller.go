package tracer

import (
	"encoding/binary"
	"errors"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/Totsugekitai/rdbg/debugapi"
	"github.com/Totsugekitai/rdbg/tracee"
)

// ErrDetached is returned by the command executor when the user asked to
// end the session.
var ErrDetached = errors.New("detach requested")

// CommandExecutor is the external command layer. It is invoked synchronously
// between trace-stops with exclusive access to the debugger state.
type CommandExecutor interface {
	Execute(c *Controller, info *DebuggerInfo) error
}

// Controller drives the tracee: it waits for state transitions, classifies
// them and invokes the matching reaction. Losing the ability to control the
// tracee is unrecoverable, so every failing resume call aborts the process.
type Controller struct {
	client   *debugapi.Client
	pid      int
	path     string
	info     *DebuggerInfo
	executor CommandExecutor
	logger   zerolog.Logger
}

// NewController returns the new controller. The executor may be nil, in
// which case the tracee free-runs under tracing without user interaction.
func NewController(executor CommandExecutor, logger zerolog.Logger) *Controller {
	return &Controller{
		client:   debugapi.NewClient(),
		executor: executor,
		logger:   logger,
	}
}

// LaunchTracee launches the target executable under tracing and builds the
// debug-info snapshot for it.
func (c *Controller) LaunchTracee(path string, arg ...string) error {
	pid, err := c.client.LaunchProcess(path, arg...)
	if err != nil {
		return err
	}
	return c.initialize(path, pid)
}

// AttachTracee attaches to the running process and builds the debug-info
// snapshot for its executable image.
func (c *Controller) AttachTracee(pid int, path string) error {
	if err := c.client.AttachProcess(pid); err != nil {
		return err
	}
	return c.initialize(path, pid)
}

func (c *Controller) initialize(path string, pid int) error {
	syscallStack := &tracee.SyscallStack{}
	debugInfo, _, err := tracee.NewDebugInfo(c.client, path, pid, syscallStack, c.logger)
	if err != nil {
		return err
	}

	c.pid = pid
	c.path = path
	c.info = &DebuggerInfo{
		SyscallStack: syscallStack,
		Breakpoints:  NewBreakpoints(c.readMemoryAt, c.writeMemoryAt),
		DebugInfo:    debugInfo,
	}
	return nil
}

func (c *Controller) readMemoryAt(addr uint64, out []byte) error {
	return c.client.ReadMemory(c.pid, addr, out)
}

func (c *Controller) writeMemoryAt(addr uint64, data []byte) error {
	return c.client.WriteMemory(c.pid, addr, data)
}

// Info returns the aggregate debugger state of the session.
func (c *Controller) Info() *DebuggerInfo {
	return c.info
}

// Pid returns the tracee's process id.
func (c *Controller) Pid() int {
	return c.pid
}

// ReadRegisters reads the tracee's current register set.
func (c *Controller) ReadRegisters() (debugapi.Registers, error) {
	return c.client.ReadRegisters(c.pid)
}

// ReadMemory reads the tracee's memory at the runtime address.
func (c *Controller) ReadMemory(addr uint64, out []byte) error {
	return c.client.ReadMemory(c.pid, addr, out)
}

// RuntimeAddr translates a link-time offset to the tracee's virtual address
// space using the load base of the image.
func (c *Controller) RuntimeAddr(offset uint64) uint64 {
	return c.info.DebugInfo.RuntimeAddr(offset)
}

// SetBreakpoint resolves the function name and arms a breakpoint at its
// runtime address. The bool is false when the symbol does not exist, which
// leaves the session alive.
func (c *Controller) SetBreakpoint(name string) (uint64, bool, error) {
	offset, ok := c.info.DebugInfo.BreakpointOffset(name)
	if !ok {
		return 0, false, nil
	}
	addr := c.RuntimeAddr(offset)
	if err := c.info.Breakpoints.Set(addr); err != nil {
		return 0, true, err
	}
	return addr, true, nil
}

// Detach clears every breakpoint and releases the tracee.
func (c *Controller) Detach() error {
	if err := c.info.Breakpoints.ClearAll(); err != nil {
		return err
	}
	return c.client.DetachProcess(c.pid)
}

// MainLoop hands control to the command layer once, resumes the tracee and
// then dispatches trace-stop events until the tracee exits. It returns the
// tracee's exit code so the caller can propagate it as its own.
func (c *Controller) MainLoop() (int, error) {
	if err := c.execCommands(); err != nil {
		if errors.Is(err, ErrDetached) {
			return 0, c.Detach()
		}
		return 0, err
	}
	c.resume(c.pid)

	for {
		event, err := c.client.Wait(c.pid)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}

		done, exitCode, err := c.handleEvent(event)
		if errors.Is(err, ErrDetached) {
			return 0, c.Detach()
		}
		if err != nil {
			return 0, err
		}
		if done {
			return exitCode, nil
		}
	}
}

// handleEvent reacts to one trace-stop event. It reports done together with
// the tracee's exit code when the session is over.
func (c *Controller) handleEvent(event debugapi.Event) (done bool, exitCode int, err error) {
	switch event.Type {
	case debugapi.EventContinued:
		c.logger.Info().Int("pid", event.Pid).Msg("continued")
		c.mustResume(c.client.Cont(event.Pid, 0))

	case debugapi.EventExited:
		c.logger.Info().Int("pid", event.Pid).Int("exit_code", event.ExitStatus).Msg("exited")
		return true, event.ExitStatus, nil

	case debugapi.EventTraceEvent:
		c.logger.Info().
			Int("pid", event.Pid).
			Str("signal", event.Signal.String()).
			Int("event", event.TrapCause).
			Msg("trace event")
		c.mustResume(c.client.Cont(event.Pid, event.Signal))

	case debugapi.EventSyscallStop:
		c.handleSyscallStop(event.Pid)

	case debugapi.EventSignaled:
		c.logger.Info().
			Int("pid", event.Pid).
			Str("signal", event.Signal.String()).
			Bool("core_dumped", event.CoreDumped).
			Msg("signaled")
		c.mustResume(c.client.Cont(event.Pid, event.Signal))

	case debugapi.EventStillAlive:
		c.logger.Info().Msg("still alive")

	case debugapi.EventStopped:
		return c.handleStop(event)
	}
	return false, 0, nil
}

func (c *Controller) handleSyscallStop(pid int) {
	regs, err := c.client.ReadRegisters(pid)
	if err != nil {
		c.logger.Fatal().Err(err).Msg("failed to inspect the syscall stop")
	}

	info := tracee.NewSyscallInfo(regs)
	direction, err := c.info.SyscallStack.Record(info)
	if err != nil {
		c.logger.Fatal().Err(err).Msg("syscall entry/exit pairing broken")
	}

	if direction == tracee.SyscallEnter {
		c.logger.Info().
			Int("pid", pid).
			Uint64("number", info.Number).
			Str("name", info.Name).
			Msg("syscall enter")
	} else {
		c.logger.Info().Str("name", info.Name).Msg("syscall exit")
	}

	c.checkWatchpoints()
	c.mustResume(c.client.Syscall(pid, 0))
}

func (c *Controller) handleStop(event debugapi.Event) (done bool, exitCode int, err error) {
	if event.Signal == syscall.SIGTRAP {
		regs, regsErr := c.client.ReadRegisters(event.Pid)
		if regsErr == nil {
			trapped := regs.PC() - uint64(len(breakpointInsts))
			if c.info.Breakpoints.Exist(trapped) {
				return false, 0, c.handleBreakpoint(event.Pid, regs, trapped)
			}
			if c.info.Step {
				return false, 0, c.handleStepStop(event.Pid)
			}
		}
	}

	c.logger.Info().
		Int("pid", event.Pid).
		Str("signal", event.Signal.String()).
		Msg("stopped")
	c.mustResume(c.client.Cont(event.Pid, event.Signal))
	return false, 0, nil
}

// handleBreakpoint rewinds the tracee over the trap instruction, restores
// the original text, hands control to the command layer and re-arms the
// breakpoint after stepping over it.
func (c *Controller) handleBreakpoint(pid int, regs debugapi.Registers, addr uint64) error {
	c.logger.Info().Int("pid", pid).Uint64("addr", addr).Msg("breakpoint hit")

	regs.SetPC(addr)
	if err := c.client.WriteRegisters(pid, regs); err != nil {
		c.logger.Fatal().Err(err).Msg("failed to rewind over the breakpoint")
	}
	if err := c.info.Breakpoints.Clear(addr); err != nil {
		c.logger.Fatal().Err(err).Msg("failed to restore the original instruction")
	}

	c.checkWatchpoints()
	if err := c.execCommands(); err != nil {
		return err
	}

	// Step over the restored instruction before re-arming, otherwise the
	// tracee would trap on its own breakpoint again immediately.
	c.mustResume(c.client.Step(pid))
	if _, err := c.client.Wait(pid); err != nil {
		c.logger.Fatal().Err(err).Msg("failed to wait for the step over the breakpoint")
	}
	if err := c.info.Breakpoints.Set(addr); err != nil {
		c.logger.Fatal().Err(err).Msg("failed to re-arm the breakpoint")
	}

	c.resume(pid)
	return nil
}

// handleStepStop is reached in single-instruction mode: every step trap
// hands control back to the command layer.
func (c *Controller) handleStepStop(pid int) error {
	regs, err := c.client.ReadRegisters(pid)
	if err == nil {
		c.logger.Info().Int("pid", pid).Uint64("pc", regs.PC()).Msg("step")
	}

	c.checkWatchpoints()
	if err := c.execCommands(); err != nil {
		return err
	}
	c.resume(pid)
	return nil
}

// resume resumes the tracee according to the step flag: single-instruction
// mode or free-run in syscall-tracing mode.
func (c *Controller) resume(pid int) {
	if c.info.Step {
		c.mustResume(c.client.Step(pid))
		return
	}
	c.mustResume(c.client.Syscall(pid, 0))
}

// mustResume aborts the whole debugger when a resume call fails: without it
// the tracee is out of control and continuing would be undefined.
func (c *Controller) mustResume(err error) {
	if err != nil {
		c.logger.Fatal().Err(err).Msg("failed to resume the tracee")
	}
}

func (c *Controller) execCommands() error {
	if c.executor == nil {
		return nil
	}
	return c.executor.Execute(c, c.info)
}

// checkWatchpoints re-reads every monitored location through the accessor
// matching its kind and reports the entries whose value changed since the
// previous stop.
func (c *Controller) checkWatchpoints() {
	if len(c.info.Watches) == 0 {
		return
	}

	var regs debugapi.Registers
	var regsLoaded bool
	for i := range c.info.Watches {
		w := &c.info.Watches[i]

		var current uint64
		switch w.Target.Kind() {
		case WatchAddress:
			addr, _ := w.Target.Addr()
			var buf [8]byte
			if err := c.client.ReadMemory(c.pid, addr, buf[:]); err != nil {
				c.logger.Debug().Err(err).Str("watch", w.Target.String()).Msg("failed to read watched address")
				continue
			}
			current = binary.LittleEndian.Uint64(buf[:])
		case WatchRegister:
			if !regsLoaded {
				var err error
				regs, err = c.client.ReadRegisters(c.pid)
				if err != nil {
					c.logger.Debug().Err(err).Msg("failed to read registers for watchpoints")
					continue
				}
				regsLoaded = true
			}
			name, _ := w.Target.Reg()
			value, ok := regs.ByName(name)
			if !ok {
				continue
			}
			current = value
		}

		if current != w.LastValue {
			c.logger.Info().
				Str("watch", w.Target.String()).
				Uint64("old", w.LastValue).
				Uint64("new", current).
				Msg("watchpoint changed")
			w.LastValue = current
		}
	}
}
