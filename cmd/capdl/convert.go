// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/capdl/lib/capdl/wire"
)

var convertCommand = command{
	name:    "convert",
	usage:   "convert [flags] SPEC",
	summary: "Rewrite a spec as JSON or CBOR.",
	register: func(flagSet *pflag.FlagSet) func(*session, []string) error {
		var (
			output string
			format string
		)
		flagSet.StringVarP(&output, "output", "o", "-", "file to write (- for stdout)")
		flagSet.StringVar(&format, "format", string(wire.FormatJSON), "output format: json or cbor")
		return func(s *session, args []string) error {
			if len(args) != 1 {
				return usagef("convert takes exactly one spec")
			}
			if format != string(wire.FormatJSON) && format != string(wire.FormatCBOR) {
				return usagef("unsupported output format %q", format)
			}

			loaded, err := loadSpec(args[0])
			if err != nil {
				return err
			}
			defer loaded.Close()

			document, err := wire.FromSpec(loaded.spec)
			if err != nil {
				return fmt.Errorf("converting %s: %w", args[0], err)
			}
			var data []byte
			if format == string(wire.FormatCBOR) {
				data, err = wire.EncodeCBOR(document)
			} else {
				data, err = wire.EncodeJSON(document)
			}
			if err != nil {
				return err
			}
			s.logger.Debug("spec converted", "from", string(loaded.format), "to", format)
			return writeOutput(s, output, data, format == string(wire.FormatCBOR))
		}
	},
}
