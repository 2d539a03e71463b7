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
	"github.com/holiman/uint256"

	"github.com/ember-vm/ember/ember"
)

// Handlers that only touch the frame's own stack and memory take the frame;
// handlers that reach into the world state, the transaction, or the frame
// arena take the execution as well.

// --- arithmetic ---

func opAdd(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
}

func opSub(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
}

func opMul(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
}

func opDiv(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
}

func opSDiv(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
}

func opMod(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
}

func opSMod(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
}

func opAddMod(c *frame) {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.AddMod(a, b, n)
}

func opMulMod(c *frame) {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.MulMod(a, b, n)
}

// opExp pops the exponent through the 64-bit range check; exponents beyond
// that range fault rather than being reduced.
func opExp(c *frame) error {
	base := c.stack.pop()
	exponent, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	c.stack.pushUndefined().Exp(base, uint256.NewInt(exponent))
	return nil
}

func opSignExtend(c *frame) {
	back, num := c.stack.pop(), c.stack.peek()
	num.ExtendSign(num, back)
}

func opByte(c *frame) {
	th, val := c.stack.pop(), c.stack.peek()
	val.Byte(th)
}

// --- comparison and bitwise ---

func opLt(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opGt(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSlt(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSgt(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opEq(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opIsZero(c *frame) {
	top := c.stack.peek()
	if top.IsZero() {
		top.SetOne()
	} else {
		top.Clear()
	}
}

func opAnd(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
}

func opOr(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
}

func opXor(c *frame) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
}

func opNot(c *frame) {
	a := c.stack.peek()
	a.Not(a)
}

// --- hashing ---

func opSha3(c *frame) error {
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	size, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset, size)
	if err != nil {
		return err
	}
	hash := ember.Keccak256(data)
	c.stack.pushUndefined().SetBytes32(hash[:])
	return nil
}

// --- environment ---

func opAddress(c *frame) {
	addr := c.account.Address()
	c.stack.pushUndefined().SetBytes20(addr[:])
}

func opBalance(e *execution, c *frame) {
	slot := c.stack.peek()
	addr := ember.AddressFromWord(slot)
	balance := e.world.Get(addr).Balance()
	slot.SetBytes32(balance[:])
}

func opOrigin(e *execution, c *frame) {
	origin := e.tx.Origin
	c.stack.pushUndefined().SetBytes20(origin[:])
}

func opCaller(c *frame) {
	c.stack.pushUndefined().SetBytes20(c.caller[:])
}

func opCallValue(c *frame) {
	c.stack.pushUndefined().SetUint64(c.callValue)
}

func opCallDataLoad(c *frame) error {
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	if offset+wordSize < offset {
		return ember.Errorf(ember.OutOfBounds,
			"integer overflow in call data access (%d)", offset)
	}

	var value [wordSize]byte
	for i := 0; i < wordSize; i++ {
		if j := offset + uint64(i); j < uint64(len(c.input)) {
			value[i] = c.input[j]
		}
	}
	c.stack.pushUndefined().SetBytes(value[:])
	return nil
}

func opCallDataSize(c *frame) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.input)))
}

func opCallDataCopy(c *frame) error {
	return genericDataCopy(c, c.input, 0)
}

func opCodeSize(c *frame) {
	c.stack.pushUndefined().SetUint64(c.program.Length())
}

func opCodeCopy(c *frame) error {
	return genericDataCopy(c, c.program.code, byte(STOP))
}

// genericDataCopy copies a slice of the given source into memory, padding
// reads beyond the source with the given pad byte.
func genericDataCopy(c *frame, src []byte, pad byte) error {
	memOffset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	srcOffset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	size, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	return c.memory.copyIn(memOffset, src, srcOffset, size, pad)
}

func opExtCodeSize(e *execution, c *frame) {
	slot := c.stack.peek()
	addr := ember.AddressFromWord(slot)
	slot.SetUint64(uint64(len(e.world.Get(addr).Code())))
}

func opExtCodeCopy(e *execution, c *frame) error {
	addr := ember.AddressFromWord(c.stack.pop())
	return genericDataCopy(c, e.world.Get(addr).Code(), byte(STOP))
}

// --- block ---

func opBlockHash(e *execution, c *frame) error {
	number, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	target := c.stack.pushUndefined()
	if number >= 256 {
		target.Clear()
	} else {
		hash := e.world.BlockHash(number)
		target.SetBytes32(hash[:])
	}
	return nil
}

func opCoinbase(e *execution, c *frame) {
	coinbase := e.world.CurrentBlock().Coinbase
	c.stack.pushUndefined().SetBytes20(coinbase[:])
}

func opTimestamp(e *execution, c *frame) {
	c.stack.pushUndefined().SetUint64(e.world.CurrentBlock().Timestamp)
}

func opNumber(e *execution, c *frame) {
	c.stack.pushUndefined().SetUint64(e.world.CurrentBlock().Number)
}

func opDifficulty(e *execution, c *frame) {
	c.stack.pushUndefined().SetUint64(e.world.CurrentBlock().Difficulty)
}

func opGasLimit(e *execution, c *frame) {
	c.stack.pushUndefined().SetUint64(e.world.CurrentBlock().GasLimit)
}

func opGasPrice(e *execution, c *frame) {
	c.stack.pushUndefined().SetUint64(e.tx.GasPrice)
}

// opGas pushes the transaction's initial gas value; gas is not tracked.
func opGas(e *execution, c *frame) {
	c.stack.pushUndefined().SetUint64(e.tx.GasLimit)
}

// --- stack, memory, storage, flow ---

func opPop(c *frame) {
	c.stack.pop()
}

func opMload(c *frame) error {
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	return c.memory.readWord(offset, c.stack.pushUndefined())
}

func opMstore(c *frame) error {
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	value := c.stack.pop()
	return c.memory.setWord(offset, value)
}

func opMstore8(c *frame) error {
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	value := c.stack.pop()
	return c.memory.setByte(offset, byte(value.Uint64()))
}

func opMsize(c *frame) {
	c.stack.pushUndefined().SetUint64(c.memory.sizeWords() * wordSize)
}

func opSload(c *frame) {
	top := c.stack.peek()
	key := ember.Key(top.Bytes32())
	value := c.account.Load(key)
	top.SetBytes32(value[:])
}

func opSstore(e *execution, c *frame) {
	key := ember.Key(c.stack.pop().Bytes32())
	value := ember.Word(c.stack.pop().Bytes32())
	e.storageSet(c.account.Storage, key, value)
}

func jumpTo(c *frame, target uint64) error {
	if !c.program.IsJumpDest(target) {
		return ember.Errorf(ember.IllegalInstruction,
			"%d is not a jump destination", target)
	}
	c.setPC(target)
	return nil
}

func opJump(c *frame) error {
	target, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	return jumpTo(c, target)
}

func opJumpi(c *frame) error {
	target, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	condition := c.stack.pop()
	if condition.IsZero() {
		return nil
	}
	return jumpTo(c, target)
}

func opPc(c *frame) {
	c.stack.pushUndefined().SetUint64(c.pc)
}

// --- push, dup, swap ---

func opPush(c *frame, n int) error {
	end := c.pc + uint64(n)
	if end >= c.program.Length() {
		return ember.Errorf(ember.OutOfBounds,
			"push immediate exceeds size of program (%d >= %d)", end, c.program.Length())
	}
	c.stack.pushUndefined().SetBytes(c.program.code[c.pc+1 : c.pc+1+uint64(n)])
	c.setPC(end + 1)
	return nil
}

func opDup(c *frame, pos int) {
	c.stack.dup(pos - 1)
}

func opSwap(c *frame, pos int) {
	c.stack.swap(pos)
}

// --- logging ---

func opLog(e *execution, c *frame, n int) error {
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	size, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	topics := make([]ember.Hash, n)
	for i := 0; i < n; i++ {
		topics[i] = ember.Hash(c.stack.pop().Bytes32())
	}

	data, err := c.memory.read(offset, size)
	if err != nil {
		return err
	}
	e.tx.Logs.Handle(ember.Log{
		Address: c.account.Address(),
		Topics:  topics,
		Data:    data,
	})
	return nil
}

// --- system ---

func opCreate(e *execution, c *frame) error {
	value := *c.stack.pop()
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	size, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	initCode, err := c.memory.read(offset, size)
	if err != nil {
		return err
	}

	snapshot := e.journal.snapshot()

	balance := c.account.Balance().ToUint256()
	if balance.Lt(&value) {
		return ember.Errorf(ember.OutOfFunds,
			"insufficient funds to pay (%v > %v)", &value, balance)
	}
	e.setBalance(c.account.Account, ember.ValueFromUint256(balance.Sub(balance, &value)))

	newAddress := ember.CreateAddress(c.account.Address(), c.account.Nonce())
	e.incrementNonce(c.account.Account)
	created := e.createAccount(newAddress, ember.ValueFromUint256(&value), nil)

	// Init code is one-shot; it bypasses the program cache.
	child := &frame{
		caller:   c.account.Address(),
		account:  created,
		program:  NewProgram(initCode),
		pcDirty:  true,
		stack:    newStack(),
		memory:   NewMemory(),
		parent:   e.depth() - 1,
		onReturn: returnSetCodeAndPushAddress,
		onHalt:   haltPushZero,
		onError:  errorPushZero,
		created:  created,
		snapshot: snapshot,
	}
	return e.pushFrame(child)
}

// isPrecompile reports whether the address is one of the precompiled
// contracts at addresses 1..4 (ecrecover, sha256, ripemd160, identity).
func isPrecompile(addr ember.Address) bool {
	for _, b := range addr[:19] {
		if b != 0 {
			return false
		}
	}
	return 1 <= addr[19] && addr[19] <= 4
}

func opCall(e *execution, c *frame, op OpCode) error {
	c.stack.pop() // gas limit not used
	addr := ember.AddressFromWord(c.stack.pop())

	var value uint64
	if op != DELEGATECALL {
		var err error
		if value, err = c.stack.popUint64(); err != nil {
			return err
		}
	}
	inOffset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	inSize, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	outOffset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	outSize, err := c.stack.popUint64()
	if err != nil {
		return err
	}

	if isPrecompile(addr) {
		return ember.NewError(ember.NotImplemented,
			"precompiled contracts are not available")
	}

	callee := e.world.Get(addr)
	snapshot := e.journal.snapshot()

	if op != DELEGATECALL {
		if err := e.transfer(c.account.Account, callee.Account, uint256.NewInt(value)); err != nil {
			return err
		}
	}

	// A callee without code has nothing to run; the call succeeds in place.
	if !callee.HasCode() {
		c.stack.pushUndefined().SetOne()
		return nil
	}

	if err := c.memory.expand(outOffset, outSize); err != nil {
		return err
	}
	input, err := c.memory.read(inOffset, inSize)
	if err != nil {
		return err
	}

	child := &frame{
		input:     input,
		program:   e.programs.Get(callee.Code()),
		pcDirty:   true,
		stack:     newStack(),
		memory:    NewMemory(),
		parent:    e.depth() - 1,
		onReturn:  returnCopyOutputAndPushOne,
		onHalt:    haltPushZero,
		onError:   errorPushZero,
		outOffset: outOffset,
		outSize:   outSize,
		snapshot:  snapshot,
	}

	switch op {
	case CALL:
		child.caller = c.account.Address()
		child.account = callee
		child.callValue = value
	case CALLCODE:
		// Foreign code runs against this frame's account and storage; only
		// the value transfer targets the logical callee.
		child.caller = c.account.Address()
		child.account = c.account
		child.callValue = value
	case DELEGATECALL:
		// The child fully impersonates this frame: same account, same
		// caller, same call value, and no transfer.
		child.caller = c.caller
		child.account = c.account
		child.callValue = c.callValue
	}
	return e.pushFrame(child)
}

func opReturn(e *execution, c *frame) error {
	offset, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	size, err := c.stack.popUint64()
	if err != nil {
		return err
	}
	output, err := c.memory.read(offset, size)
	if err != nil {
		return err
	}
	e.finishReturn(c, output)
	return nil
}

func opSelfDestruct(e *execution, c *frame) error {
	addr := ember.AddressFromWord(c.stack.pop())
	beneficiary := e.world.Get(addr)

	amount := c.account.Balance().ToUint256()
	sum, overflowed := new(uint256.Int).AddOverflow(beneficiary.Balance().ToUint256(), amount)
	if overflowed {
		return ember.Errorf(ember.Overflow,
			"balance of %v overflows", beneficiary.Address())
	}
	e.setBalance(beneficiary.Account, ember.ValueFromUint256(sum))
	e.appendDestroyed(c.account.Address())

	e.haltFrame(c)
	return nil
}
