// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interpreter

import (
	"fmt"
	"io"

	"github.com/holiman/uint256"
)

// StackView is a read-only view of a frame's operand stack handed to
// tracers. Index 0 is the bottom of the stack.
type StackView interface {
	Len() int
	Get(i int) uint256.Int
}

func (s *stack) Len() int {
	return s.stackPointer
}

func (s *stack) Get(i int) uint256.Int {
	return s.get(i)
}

// Tracer observes each instruction before it is dispatched. The stack view
// is only valid for the duration of the call.
type Tracer interface {
	CaptureState(pc uint64, op OpCode, depth int, stack StackView)
}

// loggingTracer writes one line per executed instruction.
type loggingTracer struct {
	out io.Writer
}

// NewLoggingTracer creates a tracer that writes an instruction log to the
// given writer.
func NewLoggingTracer(out io.Writer) Tracer {
	return loggingTracer{out: out}
}

func (t loggingTracer) CaptureState(pc uint64, op OpCode, depth int, stack StackView) {
	top := "-empty-"
	if stack.Len() > 0 {
		value := stack.Get(stack.Len() - 1)
		top = value.String()
	}
	fmt.Fprintf(t.out, "%4d: %-12v depth=%d top=%v\n", pc, op, depth, top)
}
