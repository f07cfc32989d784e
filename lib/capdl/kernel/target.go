// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"errors"
	"fmt"
	"strings"
)

// Arch is a CPU architecture family.
type Arch uint8

const (
	AArch64 Arch = iota + 1
	RISCV64
	X86_64
)

// String returns the canonical architecture name.
func (a Arch) String() string {
	switch a {
	case AArch64:
		return "aarch64"
	case RISCV64:
		return "riscv64"
	case X86_64:
		return "x86_64"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseArch accepts the canonical names plus the common aliases used by
// toolchains ("arm64", "amd64", "x86-64").
func ParseArch(name string) (Arch, error) {
	switch strings.ToLower(name) {
	case "aarch64", "arm64":
		return AArch64, nil
	case "riscv64":
		return RISCV64, nil
	case "x86_64", "x86-64", "amd64":
		return X86_64, nil
	default:
		return 0, fmt.Errorf("unknown architecture %q", name)
	}
}

// Features are the kernel configuration flags that change the object
// ABI.
type Features struct {
	// MCS enables the mixed-criticality scheduler, which adds
	// scheduling-context and reply objects.
	MCS bool `yaml:"mcs"`

	// ARMHypervisor enables EL2 support and the VCPU object on aarch64.
	ARMHypervisor bool `yaml:"arm_hypervisor"`

	// X86HugePages enables 1 GiB pages on x86_64.
	X86HugePages bool `yaml:"x86_huge_pages"`
}

// Target is one kernel build: an architecture plus its features.
type Target struct {
	Arch     Arch
	Features Features
}

// String renders the target as "arch[+feature...]".
func (t Target) String() string {
	parts := []string{t.Arch.String()}
	if t.Features.MCS {
		parts = append(parts, "mcs")
	}
	if t.Features.ARMHypervisor {
		parts = append(parts, "hyp")
	}
	if t.Features.X86HugePages {
		parts = append(parts, "huge")
	}
	return strings.Join(parts, "+")
}

// Validate rejects unknown architectures and features enabled on an
// architecture that does not have them.
func (t Target) Validate() error {
	var errs []error
	switch t.Arch {
	case AArch64, RISCV64, X86_64:
	default:
		errs = append(errs, fmt.Errorf("unsupported architecture %s", t.Arch))
	}
	if t.Features.ARMHypervisor && t.Arch != AArch64 {
		errs = append(errs, fmt.Errorf("arm_hypervisor requires aarch64, target is %s", t.Arch))
	}
	if t.Features.X86HugePages && t.Arch != X86_64 {
		errs = append(errs, fmt.Errorf("x86_huge_pages requires x86_64, target is %s", t.Arch))
	}
	return errors.Join(errs...)
}
