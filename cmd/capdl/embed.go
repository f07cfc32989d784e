// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/capdl/lib/capdl/fill"
	"github.com/bureau-foundation/capdl/lib/capdl/image"
	"github.com/bureau-foundation/capdl/lib/contentstore"
)

var embedCommand = command{
	name:    "embed",
	usage:   "embed [flags] SPEC",
	summary: "Resolve file content and write a spec image.",
	register: func(flagSet *pflag.FlagSet) func(*session, []string) error {
		var (
			output      string
			compression string
			omitNames   bool
			noStore     bool
		)
		flagSet.StringVarP(&output, "output", "o", "", "image file to write (- for stdout)")
		flagSet.StringVar(&compression, "compression", "", "envelope compression: none, lz4, zstd (default from configuration)")
		flagSet.BoolVar(&omitNames, "omit-names", false, "drop object names from the image")
		flagSet.BoolVar(&noStore, "no-store", false, "embed all file content instead of writing large content to the store")
		return func(s *session, args []string) error {
			if len(args) != 1 {
				return usagef("embed takes exactly one spec")
			}
			if output == "" {
				return usagef("--output is required")
			}
			if flagSet.Changed("compression") {
				s.config.Image.Compression = compression
			}
			if flagSet.Changed("omit-names") {
				s.config.Image.OmitNames = omitNames
			}
			packing, err := s.config.Compression()
			if err != nil {
				return usagef("%v", err)
			}

			loaded, err := loadSpec(args[0])
			if err != nil {
				return err
			}
			defer loaded.Close()
			if err := checkSpec(s, loaded.spec, false); err != nil {
				return err
			}

			options := fill.EmbedOptions{
				FileRoot:    s.config.Content.FileRoot,
				InlineLimit: s.config.Content.InlineLimit,
				Deflate:     s.config.Content.Deflate,
			}
			if !noStore {
				if err := s.config.EnsurePaths(); err != nil {
					return err
				}
				options.Store = contentstore.NewDirStore(s.config.Content.Store)
			}
			embedded, err := fill.EmbedFiles(loaded.spec, options)
			if err != nil {
				return fmt.Errorf("embedding file content: %w", err)
			}
			if err := checkSpec(s, embedded, true); err != nil {
				return fmt.Errorf("embedded spec: %w", err)
			}

			encoded, err := image.Encode(embedded, image.Options{OmitNames: s.config.Image.OmitNames})
			if err != nil {
				return err
			}
			data := encoded
			if packing != image.CompressionNone {
				if data, err = image.Pack(encoded, packing); err != nil {
					return err
				}
			}
			if err := writeOutput(s, output, data, true); err != nil {
				return err
			}
			s.logger.Info("image written",
				"output", output,
				"objects", embedded.NumObjects(),
				"image_bytes", len(encoded),
				"written_bytes", len(data),
				"compression", packing.String(),
			)
			return nil
		}
	},
}
