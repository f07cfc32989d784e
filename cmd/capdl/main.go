// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/capdl/lib/capdl/kernel"
	"github.com/bureau-foundation/capdl/lib/config"
	"github.com/bureau-foundation/capdl/lib/version"
)

const program = "capdl"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// command is one subcommand.
type command struct {
	name    string
	usage   string
	summary string

	// register adds the command's flags and returns the function that
	// runs it with the remaining arguments.
	register func(flagSet *pflag.FlagSet) func(s *session, args []string) error
}

var commands = []command{
	validateCommand,
	inspectCommand,
	embedCommand,
	planCommand,
	convertCommand,
}

// session carries what every command needs.
type session struct {
	config *config.Config
	target kernel.Target
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// usageError is reported with exit code 2.
type usageError struct {
	message string
}

func (e *usageError) Error() string { return e.message }

func usagef(format string, args ...any) error {
	return &usageError{message: fmt.Sprintf(format, args...)}
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	switch args[0] {
	case "--version", "version":
		version.Print(stdout, program)
		return 0
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	}

	var selected *command
	for i := range commands {
		if commands[i].name == args[0] {
			selected = &commands[i]
		}
	}
	if selected == nil {
		fmt.Fprintf(stderr, "error: unknown command %q\n", args[0])
		printUsage(stderr)
		return 2
	}

	flagSet := pflag.NewFlagSet(program+" "+selected.name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s %s\n\n%s\n\nFlags:\n%s", program, selected.usage, selected.summary, flagSet.FlagUsages())
	}
	var common commonFlags
	common.register(flagSet)
	runCommand := selected.register(flagSet)

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	s, err := common.session(flagSet, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	if err := runCommand(s, flagSet.Args()); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		var usage *usageError
		if errors.As(err, &usage) {
			flagSet.Usage()
			return 2
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags] [arguments]\n\nCommands:\n", program)
	sorted := make([]command, len(commands))
	copy(sorted, commands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	for _, c := range sorted {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nRun '%s <command> --help' for command flags.\n", program)
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath    string
	arch          string
	mcs           bool
	armHypervisor bool
	x86HugePages  bool
	logLevel      string
}

func (c *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "configuration file (default: $CAPDL_CONFIG, else built-in defaults)")
	flagSet.StringVar(&c.arch, "arch", "", "target architecture, overriding the configuration")
	flagSet.BoolVar(&c.mcs, "mcs", false, "target an MCS kernel")
	flagSet.BoolVar(&c.armHypervisor, "arm-hypervisor", false, "target an aarch64 kernel with hypervisor support")
	flagSet.BoolVar(&c.x86HugePages, "x86-huge-pages", false, "target an x86_64 kernel with 1 GiB pages")
	flagSet.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func (c *commonFlags) session(flagSet *pflag.FlagSet, stdout, stderr io.Writer) (*session, error) {
	cfg, err := config.Resolve(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if flagSet.Changed("arch") {
		cfg.Target.Arch = c.arch
	}
	if flagSet.Changed("mcs") {
		cfg.Target.MCS = c.mcs
	}
	if flagSet.Changed("arm-hypervisor") {
		cfg.Target.ARMHypervisor = c.armHypervisor
	}
	if flagSet.Changed("x86-huge-pages") {
		cfg.Target.X86HugePages = c.x86HugePages
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	target, err := cfg.KernelTarget()
	if err != nil {
		return nil, err
	}
	return &session{
		config: cfg,
		target: target,
		logger: newLogger(stderr, cfg.LogLevel()).With("command", flagSet.Name()),
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// newLogger writes human-readable text to a terminal and JSON
// otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
