// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/fill"
	"github.com/bureau-foundation/capdl/lib/capdl/plan"
	"github.com/bureau-foundation/capdl/lib/contentstore"
)

var planCommand = command{
	name:    "plan",
	usage:   "plan [flags] SPEC",
	summary: "Print the realization steps for a spec, optionally simulating them.",
	register: func(flagSet *pflag.FlagSet) func(*session, []string) error {
		var (
			simulate bool
			quiet    bool
			bootInfo []string
		)
		flagSet.BoolVar(&simulate, "simulate", false, "execute the plan against an in-memory kernel model")
		flagSet.BoolVarP(&quiet, "quiet", "q", false, "print phase counts instead of every step")
		flagSet.StringArrayVar(&bootInfo, "boot-info", nil, "boot info block for simulation, as ID=PATH (repeatable)")
		return func(s *session, args []string) error {
			if len(args) != 1 {
				return usagef("plan takes exactly one spec")
			}
			blocks, err := parseBootInfo(bootInfo)
			if err != nil {
				return err
			}

			loaded, err := loadSpec(args[0])
			if err != nil {
				return err
			}
			defer loaded.Close()

			built, err := plan.Build(loaded.spec, s.target, s.logger)
			if err != nil {
				return err
			}
			if quiet {
				for phase := plan.PhaseCreate; phase <= plan.PhaseResume; phase++ {
					fmt.Fprintf(s.stdout, "%-24s %d\n", phase, built.Count(phase))
				}
			} else {
				for step := range built.Steps() {
					fmt.Fprintln(s.stdout, step)
				}
			}
			if !simulate {
				return nil
			}

			resolver := &fill.Resolver{
				Store:    contentstore.NewDirStore(s.config.Content.Store),
				BootInfo: blocks,
			}
			simulator := newSimulator(s.target, s.logger)
			if err := plan.Execute(context.Background(), built, simulator, resolver, s.logger); err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}
			simulator.report()
			return nil
		}
	},
}

// parseBootInfo reads ID=PATH flags into boot info blocks.
func parseBootInfo(flags []string) (map[capdl.BootInfoID][]byte, error) {
	blocks := make(map[capdl.BootInfoID][]byte, len(flags))
	for _, flag := range flags {
		name, path, ok := strings.Cut(flag, "=")
		if !ok || path == "" {
			return nil, usagef("--boot-info %q: expected ID=PATH", flag)
		}
		id, err := capdl.ParseBootInfoID(name)
		if err != nil {
			return nil, usagef("--boot-info: %v", err)
		}
		if _, repeated := blocks[id]; repeated {
			return nil, usagef("--boot-info %s given twice", id)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading boot info: %w", err)
		}
		blocks[id] = data
	}
	return blocks, nil
}
