// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/image"
)

var inspectCommand = command{
	name:    "inspect",
	usage:   "inspect [flags] SPEC",
	summary: "Print a spec in human-readable form.",
	register: func(flagSet *pflag.FlagSet) func(*session, []string) error {
		var headerOnly bool
		flagSet.BoolVar(&headerOnly, "header", false, "print only the image header")
		return func(s *session, args []string) error {
			if len(args) != 1 {
				return usagef("inspect takes exactly one spec")
			}
			spec, err := loadSpec(args[0])
			if err != nil {
				return err
			}
			defer spec.Close()

			if spec.mapped != nil {
				printHeader(s.stdout, spec.mapped)
			} else if headerOnly {
				return fmt.Errorf("%s is %s, not an image", args[0], spec.format)
			}
			if headerOnly {
				return nil
			}
			return capdl.Dump(s.stdout, spec.spec)
		}
	},
}

func printHeader(w io.Writer, mapped *image.Mapped) {
	header := mapped.Header
	fmt.Fprintf(w, "image version %d", header.Version)
	if mapped.Packed {
		fmt.Fprint(w, " (packed)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  names:    %t\n", header.HasNames())
	fmt.Fprintf(w, "  objects:  %d\n", header.Objects)
	fmt.Fprintf(w, "  irqs:     %d\n", header.IRQs)
	fmt.Fprintf(w, "  asids:    %d\n", header.ASIDs)
	fmt.Fprintf(w, "  covers:   %d\n", header.Covers)
	fmt.Fprintf(w, "  heap:     %d bytes\n", header.HeapSize)
	fmt.Fprintf(w, "  checksum: %x\n", header.Checksum)
}
