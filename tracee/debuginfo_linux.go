package tracee

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/Totsugekitai/rdbg/debugapi"
)

// NewDebugInfo builds the debug-info snapshot for the tracee: it extracts
// the symbols from the on-disk image, probes the live mappings of the image
// and computes the base address. It returns together the wait event that
// produced the mappings, so the caller knows the trace-stop the tracee is
// currently suspended at.
//
// The probe blocks until the image's mappings appear; an unresponsive
// tracee stalls startup indefinitely.
func NewDebugInfo(client *debugapi.Client, path string, pid int, stack *SyscallStack, logger zerolog.Logger) (*DebugInfo, debugapi.Event, error) {
	functions, variables, err := ListSymbols(path)
	if err != nil {
		return nil, debugapi.Event{}, err
	}
	pie, err := isPIE(path)
	if err != nil {
		return nil, debugapi.Event{}, err
	}

	mappings, event, err := probeMappings(client, path, pid, stack, logger)
	if err != nil {
		return nil, event, err
	}

	info := &DebugInfo{
		Functions: functions,
		Variables: variables,
		Mappings:  mappings,
		BaseAddr:  computeBaseAddr(mappings),
		PIE:       pie,
	}
	logger.Debug().
		Int("functions", len(functions)).
		Int("variables", len(variables)).
		Int("mappings", len(mappings)).
		Uint64("base_addr", info.BaseAddr).
		Msg("debug info snapshot built")
	return info, event, nil
}

// probeMappings waits for the tracee's next state change and queries the
// mapping table for entries backed by the target image. A freshly launched
// or exec'd tracee has not completed its loader mapping step yet, so on a
// miss exactly one pending syscall-trace-stop is resolved through the
// syscall stack, keeping the tracee schedulable, and the probe retries.
func probeMappings(client *debugapi.Client, path string, pid int, stack *SyscallStack, logger zerolog.Logger) ([]MemoryMapping, debugapi.Event, error) {
	optionsSet := false
	for {
		event, err := client.Wait(pid)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, event, err
		}
		if event.IsExitEvent() {
			return nil, event, fmt.Errorf("tracee %d is gone before its mappings appeared", pid)
		}

		if !optionsSet {
			// The tracee is known to be stopped now, which the option
			// request requires.
			if err := client.SetOptions(pid); err != nil {
				return nil, event, err
			}
			optionsSet = true
		}

		mappings, err := LoadMappings(pid, path)
		if err == nil {
			return mappings, event, nil
		}
		if !errors.Is(err, ErrMapNotFound) {
			return nil, event, err
		}

		logger.Debug().Str("path", path).Msg("image not mapped yet, resolving one syscall stop")
		if _, err := CatchSyscall(client, pid, stack); err != nil {
			return nil, event, err
		}
	}
}
