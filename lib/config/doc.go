// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the capdl
// tools.
//
// Configuration is loaded from a single file specified by either the
// CAPDL_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search. Unknown keys are errors.
//
// The file has four sections: target (architecture and kernel
// features), content (build-time fill resolution), image (embedding),
// and logging. Environment-specific sections (development, production)
// override content, image, and logging values when [Config].Environment
// matches. Production defaults strip object names and compress images
// with zstd.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CAPDL_ROOT}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Target, Content, Image, Logging
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
