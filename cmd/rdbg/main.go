package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/Totsugekitai/rdbg/command"
	"github.com/Totsugekitai/rdbg/tracer"
)

var verbose bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rdbg",
		Short:         "A ptrace-based debugger for native executables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newRunCmd(), newAttachCmd())
	return root
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	// Trace and event lines are the debugger's output format, so they go
	// to stdout, not stderr.
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(level).
		With().Timestamp().Logger()
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE [ARGS...]",
		Short: "Launch the executable under the debugger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			// The mapping table reports the resolved absolute path of the
			// image, so the target must be launched by that same path.
			path, err := resolveTarget(args[0])
			if err != nil {
				return err
			}

			controller := tracer.NewController(command.New(logger), logger)
			if err := controller.LaunchTracee(path, args[1:]...); err != nil {
				logger.Fatal().Err(err).Str("path", path).Msg("failed to launch the tracee")
			}

			exitTraced(logger, controller)
			return nil
		},
	}
}

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach PID",
		Short: "Attach the debugger to a running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad pid: %s", args[0])
			}
			logger := newLogger()

			proc, err := process.NewProcess(int32(pid))
			if err != nil {
				return fmt.Errorf("no such process: %d", pid)
			}
			path, err := proc.Exe()
			if err != nil {
				return fmt.Errorf("failed to resolve the executable of %d: %w", pid, err)
			}

			controller := tracer.NewController(command.New(logger), logger)
			if err := controller.AttachTracee(pid, path); err != nil {
				logger.Fatal().Err(err).Int("pid", pid).Msg("failed to attach to the tracee")
			}

			exitTraced(logger, controller)
			return nil
		},
	}
}

// exitTraced runs the dispatch loop and propagates the tracee's exit code
// as the debugger's own.
func exitTraced(logger zerolog.Logger, controller *tracer.Controller) {
	code, err := controller.MainLoop()
	if err != nil {
		logger.Fatal().Err(err).Msg("debug session failed")
	}
	os.Exit(code)
}

func resolveTarget(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("no such executable: %s", path)
	}
	return resolved, nil
}
