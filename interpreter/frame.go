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
	"github.com/ember-vm/ember/ember"
)

// Frames signal their completion upwards through small tagged continuation
// records instead of captured closures: each action names what the
// interpreter performs on the parent frame, identified by arena index, when
// the child returns, halts, or faults.

// returnAction is performed when a frame ends through RETURN.
type returnAction byte

const (
	// returnAtRoot records the returned bytes in the execution result.
	returnAtRoot returnAction = iota
	// returnCopyOutputAndPushOne copies the returned bytes into the parent's
	// memory at the captured output region and pushes 1 (CALL family).
	returnCopyOutputAndPushOne
	// returnSetCodeAndPushAddress installs the returned bytes as the created
	// account's code and pushes the new address (CREATE).
	returnSetCodeAndPushAddress
)

// haltAction is performed when a frame ends through STOP, SELFDESTRUCT, or
// by running off the end of its code.
type haltAction byte

const (
	haltAtRoot haltAction = iota
	haltPushZero
)

// errorAction is performed when dispatch in a frame faults.
type errorAction byte

const (
	errorAtRoot errorAction = iota
	errorPushZero
)

// frame is the execution state of one call: its program, program counter,
// operand stack, memory, the account it runs against, and the continuation
// records wiring it to its parent. Memory and stack belong exclusively to
// one frame; the account state is referenced, not owned, and may be shared
// along a CALLCODE/DELEGATECALL chain.
type frame struct {
	caller    ember.Address
	account   ember.AccountState
	input     []byte
	callValue uint64
	program   *Program

	pc      uint64
	pcDirty bool
	stack   *stack
	memory  *Memory

	// parent is the arena index of the parent frame, -1 at the root.
	parent   int
	onReturn returnAction
	onHalt   haltAction
	onError  errorAction

	// Output region in the parent's memory for returnCopyOutputAndPushOne.
	outOffset uint64
	outSize   uint64

	// Created account for returnSetCodeAndPushAddress.
	created ember.AccountState

	// Journal position taken when the frame was set up; reverted to when the
	// frame halts or faults below the root.
	snapshot int
}

// step advances the program counter by one unless the executed instruction
// moved it itself (JUMP, JUMPI, PUSHn), in which case only the dirty flag is
// cleared. Frames pushed by CALL, CALLCODE, DELEGATECALL, or CREATE start
// with the flag set: the step that follows the calling instruction lands on
// the new frame, so its first instruction executes at offset 0. The root
// frame starts with the flag clear.
func (f *frame) step() {
	if f.pcDirty {
		f.pcDirty = false
	} else {
		f.pc++
	}
}

// setPC moves the program counter and suppresses the automatic advance of
// the current step.
func (f *frame) setPC(pc uint64) {
	f.pc = pc
	f.pcDirty = true
}

// release returns the frame's pooled resources.
func (f *frame) release() {
	returnStack(f.stack)
	f.stack = nil
}
