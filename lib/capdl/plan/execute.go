// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/fill"
)

// Realizer performs kernel operations. Implementations own the kernel
// boundary (system calls on a booted system, or a simulator in
// tooling). Each method is called at most once per step, in plan
// order, and must not retain data beyond the call.
type Realizer interface {
	CreateObject(ctx context.Context, step CreateStep) error
	BindIRQ(ctx context.Context, step IRQStep) error
	AssignASID(ctx context.Context, step ASIDStep) error
	WriteFill(ctx context.Context, object capdl.ObjectID, offset uint64, data []byte) error
	InstallCap(ctx context.Context, step CapStep) error
	ConfigureSchedContext(ctx context.Context, step SchedContextStep) error
	ConfigureTCB(ctx context.Context, step TCBStep) error
	ResumeThread(ctx context.Context, step ResumeStep) error
}

// StepError is the first failure of [Execute].
type StepError struct {
	// Index is the position of the failed step in the plan.
	Index int
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step.identity(), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type execution struct {
	realizer Realizer
	resolver *fill.Resolver
}

// Execute issues every step of plan against realizer in order. Fill
// content is resolved through resolver immediately before it is
// written; a nil resolver handles inline and deflated content only.
// Execution stops at the first failure, including cancellation of ctx
// between steps. Nothing is retried or rolled back.
func Execute(ctx context.Context, plan *Plan, realizer Realizer, resolver *fill.Resolver, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if resolver == nil {
		resolver = &fill.Resolver{}
	}
	run := &execution{realizer: realizer, resolver: resolver}

	logger.Info("realizing spec", "target", plan.Target.String(), "steps", plan.Len())
	for index, step := range plan.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Index: index, Step: step, Err: err}
		}
		if err := step.apply(ctx, run); err != nil {
			logger.Error("realization step failed",
				"index", index,
				"phase", step.Phase().String(),
				"step", step.String(),
				"error", err,
			)
			return &StepError{Index: index, Step: step, Err: err}
		}
		logger.Debug("step complete", "index", index, "step", step.String())
	}
	logger.Info("spec realized", "steps", plan.Len())
	return nil
}
