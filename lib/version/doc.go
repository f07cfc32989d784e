// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the capdl
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// When GitCommit is not injected, the VCS revision, modification flag,
// and commit time the go command stamps into the binary are used
// instead. Test binaries carry neither and report "unknown".
//
//	go build -ldflags "-X github.com/bureau-foundation/capdl/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
