package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"golang.org/x/arch/x86/x86asm"

	"github.com/Totsugekitai/rdbg/tracee"
	"github.com/Totsugekitai/rdbg/tracer"
)

const defaultDisasmLen = 32

// Executor runs the interactive command loop. It satisfies
// tracer.CommandExecutor and keeps one readline instance with history for
// the whole session.
type Executor struct {
	logger zerolog.Logger
	out    io.Writer
	rl     *readline.Instance
}

// New returns the executor writing to stdout.
func New(logger zerolog.Logger) *Executor {
	return &Executor{logger: logger, out: os.Stdout}
}

// Execute reads commands until one of them resumes the tracee or ends the
// session. An empty input line repeats the previously issued command.
func (e *Executor) Execute(c *tracer.Controller, info *tracer.DebuggerInfo) error {
	if e.rl == nil {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:      "(rdbg) ",
			HistoryFile: filepath.Join(os.TempDir(), "rdbg_history"),
		})
		if err != nil {
			return fmt.Errorf("failed to open the command line: %w", err)
		}
		e.rl = rl
	}

	for {
		line, err := e.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if errors.Is(err, io.EOF) {
			return tracer.ErrDetached
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			line = info.PrevCommand
			if line == "" {
				continue
			}
		}
		cmd, _ := Parse(line)
		info.PrevCommand = line

		switch cmd.Name {
		case "continue", "c":
			info.Step = false
			return nil
		case "step", "s":
			info.Step = true
			return nil
		case "quit", "q":
			return tracer.ErrDetached
		case "break", "b":
			e.cmdBreak(c, cmd.Args)
		case "watch", "w":
			e.cmdWatch(c, info, cmd.Args)
		case "maps", "m":
			e.cmdMaps(info, cmd.Args)
		case "disasm", "d":
			e.cmdDisasm(c, info, cmd.Args)
		case "regs", "r":
			e.cmdRegs(c)
		case "syms":
			e.cmdSyms(info, cmd.Args)
		case "help", "h":
			e.printHelp()
		default:
			fmt.Fprintf(e.out, "unknown command: %s (try 'help')\n", cmd.Name)
		}
	}
}

func (e *Executor) cmdBreak(c *tracer.Controller, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(e.out, "usage: break FUNCTION")
		return
	}

	addr, ok, err := c.SetBreakpoint(args[0])
	if !ok {
		fmt.Fprintf(e.out, "no such symbol: %s\n", args[0])
		return
	}
	if err != nil {
		fmt.Fprintf(e.out, "failed to set breakpoint: %v\n", err)
		return
	}
	fmt.Fprintf(e.out, "breakpoint set at %#x (%s)\n", addr, args[0])
}

func (e *Executor) cmdWatch(c *tracer.Controller, info *tracer.DebuggerInfo, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(e.out, "usage: watch addr ADDRESS | watch reg NAME")
		return
	}

	switch args[0] {
	case "addr":
		addr, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			fmt.Fprintf(e.out, "bad address: %s\n", args[1])
			return
		}
		var buf [8]byte
		if err := c.ReadMemory(addr, buf[:]); err != nil {
			fmt.Fprintf(e.out, "failed to read %#x: %v\n", addr, err)
			return
		}
		initial := binary.LittleEndian.Uint64(buf[:])
		info.SetWatchpoint(tracer.WatchAddr(addr), initial)
		fmt.Fprintf(e.out, "watching *%#x (now %#x)\n", addr, initial)
	case "reg":
		regs, err := c.ReadRegisters()
		if err != nil {
			fmt.Fprintf(e.out, "failed to read registers: %v\n", err)
			return
		}
		name := strings.ToLower(args[1])
		initial, ok := regs.ByName(name)
		if !ok {
			fmt.Fprintf(e.out, "no such register: %s\n", args[1])
			return
		}
		info.SetWatchpoint(tracer.WatchReg(name), initial)
		fmt.Fprintf(e.out, "watching %%%s (now %#x)\n", name, initial)
	default:
		fmt.Fprintln(e.out, "usage: watch addr ADDRESS | watch reg NAME")
	}
}

func (e *Executor) cmdMaps(info *tracer.DebuggerInfo, args []string) {
	var maps []tracee.MemoryMapping
	var err error
	class := "all"
	if len(args) > 0 {
		class = args[0]
	}

	switch class {
	case "exec":
		maps, err = info.DebugInfo.ExecMaps()
	case "rodata":
		maps, err = info.DebugInfo.RodataMaps()
	case "data":
		maps, err = info.DebugInfo.DataMaps()
	case "all":
		maps = info.DebugInfo.Mappings
	default:
		fmt.Fprintln(e.out, "usage: maps [exec|rodata|data]")
		return
	}
	if errors.Is(err, tracee.ErrMapNotFound) {
		fmt.Fprintf(e.out, "no %s mapping\n", class)
		return
	}

	for _, m := range maps {
		fmt.Fprintln(e.out, m.String())
	}
}

func (e *Executor) cmdDisasm(c *tracer.Controller, info *tracer.DebuggerInfo, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(e.out, "usage: disasm FUNCTION [BYTES]")
		return
	}

	offset, ok := info.DebugInfo.BreakpointOffset(args[0])
	if !ok {
		fmt.Fprintf(e.out, "no such symbol: %s\n", args[0])
		return
	}

	length := defaultDisasmLen
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(e.out, "bad length: %s\n", args[1])
			return
		}
		length = n
	}

	addr := c.RuntimeAddr(offset)
	code := make([]byte, length)
	if err := c.ReadMemory(addr, code); err != nil {
		fmt.Fprintf(e.out, "failed to read %#x: %v\n", addr, err)
		return
	}

	pc := addr
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			break
		}
		fmt.Fprintf(e.out, "%#x:\t%s\n", pc, x86asm.GNUSyntax(inst, pc, nil))
		pc += uint64(inst.Len)
		code = code[inst.Len:]
	}
}

func (e *Executor) cmdRegs(c *tracer.Controller) {
	regs, err := c.ReadRegisters()
	if err != nil {
		fmt.Fprintf(e.out, "failed to read registers: %v\n", err)
		return
	}

	names := []string{
		"rip", "rsp", "rbp", "rax", "rbx", "rcx", "rdx",
		"rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
		"eflags",
	}
	for _, name := range names {
		value, _ := regs.ByName(name)
		fmt.Fprintf(e.out, "%-8s %#018x\n", name, value)
	}
}

func (e *Executor) cmdSyms(info *tracer.DebuggerInfo, args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	const limit = 50
	printed := 0
	for _, f := range info.DebugInfo.Functions {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		if printed == limit {
			fmt.Fprintln(e.out, "... (more symbols, narrow with a prefix)")
			return
		}
		fmt.Fprintf(e.out, "%#012x T %s\n", f.Offset, f.Name)
		printed++
	}
	for _, v := range info.DebugInfo.Variables {
		if !strings.HasPrefix(v.Name, prefix) {
			continue
		}
		if printed == limit {
			fmt.Fprintln(e.out, "... (more symbols, narrow with a prefix)")
			return
		}
		fmt.Fprintf(e.out, "%#012x D %s\n", v.Offset, v.Name)
		printed++
	}
}

func (e *Executor) printHelp() {
	fmt.Fprint(e.out, `commands:
  break FUNCTION            arm a breakpoint at the function
  watch addr ADDRESS        watch an address for changes
  watch reg NAME            watch a register for changes
  maps [exec|rodata|data]   show the image's memory mappings
  disasm FUNCTION [BYTES]   disassemble at the function
  regs                      show the register set
  syms [PREFIX]             list symbols
  continue                  resume the tracee
  step                      single-instruction mode
  quit                      detach and exit
`)
}
