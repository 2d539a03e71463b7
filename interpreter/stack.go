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
	"strings"
	"sync"

	"github.com/holiman/uint256"

	"github.com/ember-vm/ember/ember"
)

// maxStackSize is the maximum operand stack depth allowed by the EVM.
const maxStackSize = 1024

// stack is the 1024-element 256-bit word-wide operand stack of one frame.
// It is a fixed-size array to prevent memory reallocation during execution.
// Boundaries are not checked by the individual operations; the dispatch loop
// validates the per-opcode stack usage before executing it (see
// checkStackLimits).
//
// Each stack consumes 1024 * 32 bytes = 32KB of memory, so stacks are
// recycled through a pool. Obtain one with newStack() and return it with
// returnStack(s) once the owning frame is popped.
type stack struct {
	data         [maxStackSize]uint256.Int
	stackPointer int
}

// push adds a copy of the given value to the top of the stack.
func (s *stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushUndefined adds a value with an undefined content to the top of the
// stack and returns a pointer to this element, to be set by the caller.
func (s *stack) pushUndefined() *uint256.Int {
	s.stackPointer++
	return &s.data[s.stackPointer-1]
}

// pop removes the top element and returns a pointer to it. The pointer is
// only valid until the next push operation.
func (s *stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

// popUint64 pops the top element and range-checks it into [0, 2^64). Values
// beyond that range fault; offsets and sizes are uint64 quantities.
func (s *stack) popUint64() (uint64, error) {
	value := s.pop()
	if !value.IsUint64() {
		return 0, ember.Errorf(ember.OutOfBounds,
			"value on stack (%v) is larger than 2^64", value)
	}
	return value.Uint64(), nil
}

// peek returns a pointer to the top element without removing it.
func (s *stack) peek() *uint256.Int {
	return &s.data[s.len()-1]
}

// peekN returns a pointer to the n-th element from the top, with the top at
// index 0.
func (s *stack) peekN(n int) *uint256.Int {
	return &s.data[s.len()-n-1]
}

// len returns the number of elements on the stack.
func (s *stack) len() int {
	return s.stackPointer
}

// swap exchanges the top element with the n-th element below it.
func (s *stack) swap(n int) {
	s.data[s.len()-n-1], s.data[s.len()-1] = s.data[s.len()-1], s.data[s.len()-n-1]
}

// dup duplicates the n-th element from the top, with the top at index 0, and
// pushes the copy onto the stack.
func (s *stack) dup(n int) {
	s.data[s.stackPointer] = s.data[s.stackPointer-n-1]
	s.stackPointer++
}

// get returns the element at the given index, with the bottom at index 0.
func (s *stack) get(i int) uint256.Int {
	return s.data[i]
}

func (s *stack) String() string {
	b := strings.Builder{}
	for i := 0; i < s.len(); i++ {
		value := s.peekN(i)
		b.WriteString(fmt.Sprintf("    [%4d] 0x%x\n", s.len()-i-1, value.Bytes32()))
	}
	return b.String()
}

// ------------------ Stack Pool ------------------

var stackPool = sync.Pool{
	New: func() any {
		return &stack{}
	},
}

// newStack returns an empty stack instance from the reuse pool.
// This function is thread-safe.
func newStack() *stack {
	return stackPool.Get().(*stack)
}

// returnStack returns the stack to the reuse pool. Any stack may only be
// returned once; this is not checked internally.
// This function is thread-safe.
func returnStack(s *stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}
