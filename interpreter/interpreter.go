// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package interpreter implements the Ember execution engine: a sequential,
// single-threaded fetch-decode-execute loop over a stack of call frames.
// Gas is not metered.
package interpreter

import (
	"github.com/holiman/uint256"

	"github.com/ember-vm/ember/ember"
)

// maxCallDepth is the maximum number of nested call frames.
const maxCallDepth = 1024

// defaultProgramCacheCapacity bounds the number of memoized jump-destination
// analyses kept across runs.
const defaultProgramCacheCapacity = 1 << 12

// Config contains the set of configuration options for an Interpreter.
type Config struct {
	// ProgramCacheCapacity is the maximum number of analyzed programs kept
	// across runs. If set to 0, a default is used; if negative, no cache is
	// used.
	ProgramCacheCapacity int
}

// Interpreter executes EVM bytecode against a world state. A single
// Interpreter may serve many sequential runs; each run owns its frame stack,
// memories, and operand stacks exclusively.
type Interpreter struct {
	world    ember.WorldState
	programs *ProgramCache
}

// New creates an interpreter bound to the given world state.
func New(world ember.WorldState, config Config) *Interpreter {
	if config.ProgramCacheCapacity == 0 {
		config.ProgramCacheCapacity = defaultProgramCacheCapacity
	}
	return &Interpreter{
		world:    world,
		programs: NewProgramCache(config.ProgramCacheCapacity),
	}
}

// Run executes the callee's code. It never raises through its boundary;
// every fault is captured in the returned ExecResult. After the root frame
// completes, the addresses accumulated on the transaction's destroy list are
// swept from the world state.
func (in *Interpreter) Run(
	tx *ember.Transaction,
	caller ember.Address,
	callee ember.AccountState,
	input []byte,
	callValue uint64,
	tracer Tracer,
) ember.ExecResult {
	e := &execution{
		world:    in.world,
		tx:       tx,
		programs: in.programs,
		tracer:   tracer,
	}
	return e.run(caller, callee, input, callValue)
}

// execution is the state of one run: the frame arena, the journal, and the
// result the root frame's continuations record into.
type execution struct {
	world    ember.WorldState
	tx       *ember.Transaction
	programs *ProgramCache
	tracer   Tracer

	frames  []*frame
	journal journal
	result  ember.ExecResult
}

func (e *execution) run(
	caller ember.Address,
	callee ember.AccountState,
	input []byte,
	callValue uint64,
) ember.ExecResult {
	root := &frame{
		caller:    caller,
		account:   callee,
		input:     input,
		callValue: callValue,
		program:   e.programs.Get(callee.Code()),
		stack:     newStack(),
		memory:    NewMemory(),
		parent:    -1,
		onReturn:  returnAtRoot,
		onHalt:    haltAtRoot,
		onError:   errorAtRoot,
	}
	// The root frame always fits; depth checking starts with nested calls.
	e.frames = append(e.frames, root)

	for len(e.frames) > 0 {
		f := e.current()

		// Running off the end of the code halts the frame.
		if f.pc >= f.program.Length() {
			e.haltFrame(f)
			e.stepCurrent()
			continue
		}

		op := OpCode(f.program.code[f.pc])
		if e.tracer != nil {
			e.tracer.CaptureState(f.pc, op, e.depth(), f.stack)
		}

		err := checkStackLimits(f.stack.len(), op)
		if err == nil {
			err = e.dispatch(f, op)
		}
		if err != nil {
			// A faulting handler never pops its frame, so f is still the
			// active one.
			e.failFrame(f, err)
		}
		e.stepCurrent()
	}

	for _, addr := range e.tx.DestroyList {
		e.world.Remove(addr)
	}
	return e.result
}

func (e *execution) current() *frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

func (e *execution) depth() int {
	return len(e.frames)
}

func (e *execution) stepCurrent() {
	if f := e.current(); f != nil {
		f.step()
	}
}

// pushFrame makes the given frame the active one. It fails when the maximum
// call depth is reached; the fault is raised in the frame that attempted the
// call.
func (e *execution) pushFrame(f *frame) error {
	if e.depth() >= maxCallDepth {
		f.release()
		return ember.Errorf(ember.OutOfBounds,
			"reached max call depth (%d)", maxCallDepth)
	}
	e.frames = append(e.frames, f)
	return nil
}

func (e *execution) popFrame() {
	f := e.frames[len(e.frames)-1]
	e.frames = e.frames[:len(e.frames)-1]
	f.release()
}

// --- continuation application ---

// finishReturn ends the top frame through RETURN and applies its return
// behavior to the parent. State changes of a returning frame are kept.
func (e *execution) finishReturn(f *frame, output []byte) {
	e.popFrame()
	switch f.onReturn {
	case returnAtRoot:
		e.result = ember.ExecResult{Reason: ember.Returned, Output: output}
	case returnCopyOutputAndPushOne:
		parent := e.frames[f.parent]
		// The output region was expanded when the call was made; copying
		// into it cannot fail. Short outputs zero-fill the region.
		_ = parent.memory.copyIn(f.outOffset, output, 0, f.outSize, 0)
		parent.stack.pushUndefined().SetOne()
	case returnSetCodeAndPushAddress:
		f.created.SetCode(output)
		parent := e.frames[f.parent]
		addr := f.created.Address()
		parent.stack.pushUndefined().SetBytes20(addr[:])
	}
}

// haltFrame ends the top frame through STOP, SELFDESTRUCT, or end-of-code.
// Below the root a halting frame reports failure to its parent and its state
// changes are rolled back; only a frame that returns makes its effects
// stick.
func (e *execution) haltFrame(f *frame) {
	e.popFrame()
	switch f.onHalt {
	case haltAtRoot:
		e.result = ember.ExecResult{Reason: ember.Halted}
	case haltPushZero:
		e.journal.revertTo(e.world, e.tx, f.snapshot)
		e.frames[f.parent].stack.pushUndefined().Clear()
	}
}

// failFrame ends the top frame with a fault, rolling its state changes back
// and reporting failure to the parent, or recording the fault in the result
// at the root.
func (e *execution) failFrame(f *frame, err error) {
	fault := ember.AsError(err)
	e.popFrame()
	switch f.onError {
	case errorAtRoot:
		e.result = ember.ExecResult{Reason: ember.Threw, Err: fault}
	case errorPushZero:
		e.journal.revertTo(e.world, e.tx, f.snapshot)
		e.frames[f.parent].stack.pushUndefined().Clear()
	}
}

// --- journaled state mutation ---

func (e *execution) setBalance(account ember.Account, balance ember.Value) {
	e.journal.record(balanceChange{account: account, prev: account.Balance()})
	account.SetBalance(balance)
}

func (e *execution) incrementNonce(account ember.Account) {
	nonce := account.Nonce()
	e.journal.record(nonceChange{account: account, prev: nonce})
	account.SetNonce(nonce + 1)
}

func (e *execution) storageSet(storage ember.Storage, key ember.Key, value ember.Word) {
	e.journal.record(storageChange{
		storage: storage,
		key:     key,
		prev:    storage.Load(key),
		existed: storage.Exists(key),
	})
	if value.IsZero() {
		storage.Remove(key)
	} else {
		storage.Store(key, value)
	}
}

func (e *execution) createAccount(addr ember.Address, balance ember.Value, code ember.Code) ember.AccountState {
	created := e.world.Create(addr, balance, code)
	e.journal.record(accountCreated{address: addr})
	return created
}

func (e *execution) appendDestroyed(addr ember.Address) {
	e.journal.record(destroyListAppend{})
	e.tx.DestroyList = append(e.tx.DestroyList, addr)
}

// transfer moves amount from one account to another, faulting when the payer
// lacks funds or the recipient's balance would overflow. Both balance
// updates are journaled.
func (e *execution) transfer(from, to ember.Account, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	fromBalance := from.Balance().ToUint256()
	if fromBalance.Lt(amount) {
		return ember.Errorf(ember.OutOfFunds,
			"insufficient funds to pay (%v > %v)", amount, fromBalance)
	}
	if from == to {
		return nil
	}
	toBalance, overflowed := new(uint256.Int).AddOverflow(to.Balance().ToUint256(), amount)
	if overflowed {
		return ember.Errorf(ember.Overflow, "balance of %v overflows", to.Address())
	}
	e.setBalance(from, ember.ValueFromUint256(fromBalance.Sub(fromBalance, amount)))
	e.setBalance(to, ember.ValueFromUint256(toBalance))
	return nil
}

// --- dispatch ---

func (e *execution) dispatch(c *frame, op OpCode) error {
	if op.IsPush() {
		return opPush(c, op.PushSize())
	}
	if DUP1 <= op && op <= DUP16 {
		opDup(c, int(op-DUP1)+1)
		return nil
	}
	if SWAP1 <= op && op <= SWAP16 {
		opSwap(c, int(op-SWAP1)+1)
		return nil
	}
	if LOG0 <= op && op <= LOG4 {
		return opLog(e, c, int(op-LOG0))
	}

	var err error
	switch op {
	case STOP:
		e.haltFrame(c)
	case ADD:
		opAdd(c)
	case MUL:
		opMul(c)
	case SUB:
		opSub(c)
	case DIV:
		opDiv(c)
	case SDIV:
		opSDiv(c)
	case MOD:
		opMod(c)
	case SMOD:
		opSMod(c)
	case ADDMOD:
		opAddMod(c)
	case MULMOD:
		opMulMod(c)
	case EXP:
		err = opExp(c)
	case SIGNEXTEND:
		opSignExtend(c)
	case LT:
		opLt(c)
	case GT:
		opGt(c)
	case SLT:
		opSlt(c)
	case SGT:
		opSgt(c)
	case EQ:
		opEq(c)
	case ISZERO:
		opIsZero(c)
	case AND:
		opAnd(c)
	case OR:
		opOr(c)
	case XOR:
		opXor(c)
	case NOT:
		opNot(c)
	case BYTE:
		opByte(c)
	case SHA3:
		err = opSha3(c)
	case ADDRESS:
		opAddress(c)
	case BALANCE:
		opBalance(e, c)
	case ORIGIN:
		opOrigin(e, c)
	case CALLER:
		opCaller(c)
	case CALLVALUE:
		opCallValue(c)
	case CALLDATALOAD:
		err = opCallDataLoad(c)
	case CALLDATASIZE:
		opCallDataSize(c)
	case CALLDATACOPY:
		err = opCallDataCopy(c)
	case CODESIZE:
		opCodeSize(c)
	case CODECOPY:
		err = opCodeCopy(c)
	case GASPRICE:
		opGasPrice(e, c)
	case EXTCODESIZE:
		opExtCodeSize(e, c)
	case EXTCODECOPY:
		err = opExtCodeCopy(e, c)
	case BLOCKHASH:
		err = opBlockHash(e, c)
	case COINBASE:
		opCoinbase(e, c)
	case TIMESTAMP:
		opTimestamp(e, c)
	case NUMBER:
		opNumber(e, c)
	case DIFFICULTY:
		opDifficulty(e, c)
	case GASLIMIT:
		opGasLimit(e, c)
	case POP:
		opPop(c)
	case MLOAD:
		err = opMload(c)
	case MSTORE:
		err = opMstore(c)
	case MSTORE8:
		err = opMstore8(c)
	case SLOAD:
		opSload(c)
	case SSTORE:
		opSstore(e, c)
	case JUMP:
		err = opJump(c)
	case JUMPI:
		err = opJumpi(c)
	case PC:
		opPc(c)
	case MSIZE:
		opMsize(c)
	case GAS:
		opGas(e, c)
	case JUMPDEST:
		// nothing
	case CREATE:
		err = opCreate(e, c)
	case CALL, CALLCODE, DELEGATECALL:
		err = opCall(e, c, op)
	case RETURN:
		err = opReturn(e, c)
	case SELFDESTRUCT:
		err = opSelfDestruct(e, c)
	default:
		err = ember.Errorf(ember.IllegalInstruction,
			"unknown/unsupported opcode 0x%02x seen at position %d in %v, at call depth %d, called by %v",
			byte(op), c.pc, c.account.Address(), e.depth(), c.caller)
	}
	return err
}
