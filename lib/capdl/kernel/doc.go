// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel maps the architecture-independent capdl model onto the
// object-creation ABI of a specific kernel build.
//
// A [Target] names the CPU architecture and the kernel configuration
// flags that change which object types exist and how they are numbered
// (MCS scheduling, ARM hypervisor support, x86 huge pages). Given a
// target, [BlueprintFor] turns an object into the exact creation
// parameters the kernel expects, and the capability helpers
// ([RightsWord], [BadgeFor], [VMAttributes]) derive the words passed
// when a capability is minted or a frame is mapped.
//
// The mapping is total over the variants legal for a target and fails
// loudly on everything else: an illegal variant is a
// [*ConfigMismatchError], an unknown frame size an
// [*UnsupportedFrameSizeError], and an inconsistent page-table root
// flag a [*RootLevelError]. Nothing is rounded or defaulted.
//
// Only 64-bit targets are supported.
package kernel
