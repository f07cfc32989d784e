// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Capdl is the build and inspection tool for capability-distribution
// specs.
//
// Subcommands:
//
//	validate SPEC...   check structure and target compatibility
//	inspect SPEC       print every object, capability, and fill entry
//	embed SPEC -o OUT  resolve file content and write a spec image
//	plan SPEC          print the realization steps for the target;
//	                   --simulate runs them against an in-memory kernel
//	convert SPEC -o OUT --format json|cbor
//
// SPEC may be JSON or JSONC, CBOR (by .cbor extension), a spec image,
// or a packed image; images are memory-mapped. The target comes from
// the configuration file (--config or CAPDL_CONFIG) and may be
// overridden with --arch and the feature flags.
//
// Exit codes:
//
//	0  success
//	1  the spec is invalid or a command failed
//	2  usage error
package main
