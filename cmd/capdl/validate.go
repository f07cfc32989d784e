// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/kernel"
)

var validateCommand = command{
	name:    "validate",
	usage:   "validate [flags] SPEC...",
	summary: "Check specs for structural errors and target compatibility.",
	register: func(flagSet *pflag.FlagSet) func(*session, []string) error {
		var structural bool
		flagSet.BoolVar(&structural, "structural", false, "skip target checks")
		return func(s *session, args []string) error {
			if len(args) == 0 {
				return usagef("validate needs at least one spec")
			}
			failed := 0
			for _, path := range args {
				if err := validatePath(s, path, structural); err != nil {
					failed++
					fmt.Fprintf(s.stdout, "%s: invalid\n", path)
					for _, line := range flatten(err) {
						fmt.Fprintf(s.stdout, "  %v\n", line)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d specs invalid", failed, len(args))
			}
			return nil
		}
	},
}

func validatePath(s *session, path string, structural bool) error {
	spec, err := loadSpec(path)
	if err != nil {
		return err
	}
	defer spec.Close()

	if err := checkSpec(s, spec.spec, structural); err != nil {
		return err
	}
	fmt.Fprintf(s.stdout, "%s: ok (%s, %d objects)\n", path, spec.format, spec.spec.NumObjects())
	return nil
}

// checkSpec runs structural validation and, unless structural is set,
// the target checks.
func checkSpec(s *session, spec *capdl.Spec, structural bool) error {
	if err := capdl.Validate(spec); err != nil {
		return err
	}
	if structural {
		return nil
	}
	if err := kernel.ValidateSpec(s.target, spec); err != nil {
		return fmt.Errorf("target %s: %w", s.target, err)
	}
	return nil
}

// flatten expands joined errors into their members.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var all []error
		for _, member := range joined.Unwrap() {
			all = append(all, flatten(member)...)
		}
		return all
	}
	return []error{err}
}
