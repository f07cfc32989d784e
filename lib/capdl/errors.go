// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"errors"
	"fmt"
	"strings"
)

// Structural validation failures. Every [ValidationError] wraps one of
// these so callers can classify with errors.Is.
var (
	ErrInvalidObject      = errors.New("invalid object")
	ErrDanglingObjectID   = errors.New("dangling object id")
	ErrDuplicateSlot      = errors.New("duplicate slot")
	ErrSlotOutOfRange     = errors.New("slot out of range")
	ErrSlotsUnsupported   = errors.New("object kind holds no capabilities")
	ErrCapKindMismatch    = errors.New("capability kind does not match target object")
	ErrFillOverlap        = errors.New("overlapping fill entries")
	ErrFillOutOfBounds    = errors.New("fill entry exceeds object size")
	ErrFillUnsupported    = errors.New("object kind has no fillable memory")
	ErrFillContent        = errors.New("invalid fill content")
	ErrDuplicateIRQ       = errors.New("duplicate irq")
	ErrCoverConflict      = errors.New("object covered by more than one untyped")
	ErrCoverCycle         = errors.New("untyped cover cycle")
	ErrTableKindMismatch  = errors.New("table entry targets wrong object kind")
	ErrInvalidCoverBounds = errors.New("invalid untyped cover range")
)

// ValidationError locates one structural violation. Object-level
// errors have Table empty and identify the object by ID and name;
// table-level errors name the table ("irq", "asid", "cover") and the
// entry index.
type ValidationError struct {
	Object ObjectID
	Name   string
	Table  string
	Index  int
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	var builder strings.Builder
	if e.Table != "" {
		fmt.Fprintf(&builder, "%s table entry %d", e.Table, e.Index)
	} else {
		fmt.Fprintf(&builder, "object %s", e.Object)
		if e.Name != "" {
			fmt.Fprintf(&builder, " (%q)", e.Name)
		}
	}
	if e.Detail != "" {
		builder.WriteString(": ")
		builder.WriteString(e.Detail)
	}
	builder.WriteString(": ")
	builder.WriteString(e.Err.Error())
	return builder.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
