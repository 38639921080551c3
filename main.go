package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sqweek/dialog"

	"github.com/okatryn/chip8/internal/disasm"
	"github.com/okatryn/chip8/internal/driver"
	"github.com/okatryn/chip8/internal/hal"
	"github.com/okatryn/chip8/internal/tui"
	"github.com/okatryn/chip8/internal/vm"
)

func main() {
	cmd := newRootCommand()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		verbose bool
		cycles  int
		watch   bool
		debug   bool
	)

	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s [PATH_TO_ROM_FILE]", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	cmd.Flags().IntVar(&cycles, "cycles", driver.DefaultCyclesPerFrame, "CPU instructions per frame")
	cmd.Flags().BoolVar(&watch, "watch", false, "reboot with the ROM file whenever it changes on disk")
	cmd.Flags().BoolVar(&debug, "debug", false, "run in the terminal debugger instead of the SDL window")

	cmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		setupLogging(verbose, os.Stderr)
	}

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		path, err := romPath(args)
		if err != nil {
			return err
		}
		if path == "" {
			slog.Info("no ROM file chosen")
			return nil
		}

		return run(path, cycles, watch, debug, verbose)
	}

	cmd.AddCommand(newDisasmCommand())

	return cmd
}

func newDisasmCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "disasm PATH_TO_ROM_FILE",
		Short:         "Print a ROM file as an assembly listing",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]
			bs, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("unable to load file %q: %w", path, err)
			}

			return disasm.Fprint(os.Stdout, bs)
		},
	}
}

// romPath returns the ROM file to run: the command line argument when
// given, the result of a file picker otherwise. An empty path means
// the picker was cancelled.
func romPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	path, err := dialog.File().
		Title("Choose a CHIP-8 ROM").
		Filter("CHIP-8 ROM", "ch8").
		Load()
	if err != nil {
		if errors.Is(err, dialog.ErrCancelled) {
			return "", nil
		}
		return "", fmt.Errorf("unable to choose a ROM file: %w", err)
	}

	return path, nil
}

func run(path string, cycles int, watch, debug, verbose bool) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to load file %q: %w", path, err)
	}

	var reload <-chan []byte
	if watch {
		images, stop, err := driver.Watch(path)
		if err != nil {
			return fmt.Errorf("unable to watch %q: %w", path, err)
		}
		defer stop()
		reload = images
	}

	machine := vm.New()

	if debug {
		dbg := tui.New(machine, bs, tui.Config{
			CyclesPerFrame: cycles,
			Reload:         reload,
		})

		// The debugger owns the terminal; route logging into its pane.
		setupLogging(verbose, dbg.LogWriter())
		return dbg.Run()
	}

	h, err := hal.New()
	if err != nil {
		return fmt.Errorf("unable to initialize hal: %w", err)
	}
	defer h.Shutdown()

	d := driver.New(machine, h, driver.Config{
		CyclesPerFrame: cycles,
		Reload:         reload,
	})

	for {
		err = d.Run(bs)

		if errors.Is(err, hal.ErrQuit) {
			return nil
		}

		if errors.Is(err, hal.ErrReboot) {
			// Reboot from disk, so a rebuilt ROM comes back fresh.
			bs, err = os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("unable to load file %q: %w", path, err)
			}
			continue
		}

		return err
	}
}

func setupLogging(verbose bool, w io.Writer) {
	loggerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if verbose {
		loggerOpts.Level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, loggerOpts)))
}
