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
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rand"

	"github.com/ember-vm/ember/ember"
)

func newTestFrame() *frame {
	return &frame{
		program: NewProgram(nil),
		stack:   newStack(),
		memory:  NewMemory(),
	}
}

// runBinaryOp pushes the right then the left operand, so that the handler
// pops the left operand first, and returns the result.
func runBinaryOp(t *testing.T, handler func(*frame), left, right *uint256.Int) uint256.Int {
	t.Helper()
	f := newTestFrame()
	defer returnStack(f.stack)
	f.stack.push(right)
	f.stack.push(left)
	handler(f)
	if f.stack.len() != 1 {
		t.Fatalf("binary op left %d elements on the stack", f.stack.len())
	}
	return *f.stack.peek()
}

func u256FromHex(t *testing.T, hex string) *uint256.Int {
	t.Helper()
	value, err := uint256.FromHex(hex)
	if err != nil {
		t.Fatalf("invalid literal %s: %v", hex, err)
	}
	return value
}

func TestInstructions_ArithmeticContracts(t *testing.T) {
	maxValue := new(uint256.Int).SetAllOne()
	minSigned := u256FromHex(t, "0x8000000000000000000000000000000000000000000000000000000000000000")

	tests := map[string]struct {
		handler     func(*frame)
		left, right *uint256.Int
		want        *uint256.Int
	}{
		"add wraps":              {opAdd, maxValue, uint256.NewInt(2), uint256.NewInt(1)},
		"sub wraps":              {opSub, uint256.NewInt(0), uint256.NewInt(1), maxValue},
		"mul wraps":              {opMul, maxValue, uint256.NewInt(2), new(uint256.Int).Sub(maxValue, uint256.NewInt(1))},
		"div":                    {opDiv, uint256.NewInt(7), uint256.NewInt(2), uint256.NewInt(3)},
		"div by zero":            {opDiv, uint256.NewInt(7), uint256.NewInt(0), uint256.NewInt(0)},
		"mod":                    {opMod, uint256.NewInt(7), uint256.NewInt(4), uint256.NewInt(3)},
		"mod by zero":            {opMod, uint256.NewInt(7), uint256.NewInt(0), uint256.NewInt(0)},
		"sdiv":                   {opSDiv, maxValue, uint256.NewInt(2), uint256.NewInt(0)}, // -1 / 2 == 0
		"sdiv by zero":           {opSDiv, maxValue, uint256.NewInt(0), uint256.NewInt(0)},
		"sdiv overflow case":     {opSDiv, minSigned, maxValue, minSigned},        // MIN / -1 == MIN
		"smod sign of dividend":  {opSMod, maxValue, uint256.NewInt(2), maxValue}, // -1 % 2 == -1
		"smod by zero":           {opSMod, maxValue, uint256.NewInt(0), uint256.NewInt(0)},
		"lt true":                {opLt, uint256.NewInt(1), uint256.NewInt(2), uint256.NewInt(1)},
		"lt false":               {opLt, uint256.NewInt(2), uint256.NewInt(1), uint256.NewInt(0)},
		"gt":                     {opGt, uint256.NewInt(2), uint256.NewInt(1), uint256.NewInt(1)},
		"slt negative less":      {opSlt, maxValue, uint256.NewInt(0), uint256.NewInt(1)},
		"sgt zero greater":       {opSgt, uint256.NewInt(0), maxValue, uint256.NewInt(1)},
		"eq true":                {opEq, uint256.NewInt(5), uint256.NewInt(5), uint256.NewInt(1)},
		"eq false":               {opEq, uint256.NewInt(5), uint256.NewInt(6), uint256.NewInt(0)},
		"and":                    {opAnd, uint256.NewInt(0b1100), uint256.NewInt(0b1010), uint256.NewInt(0b1000)},
		"or":                     {opOr, uint256.NewInt(0b1100), uint256.NewInt(0b1010), uint256.NewInt(0b1110)},
		"xor":                    {opXor, uint256.NewInt(0b1100), uint256.NewInt(0b1010), uint256.NewInt(0b0110)},
		"byte extracts":          {opByte, uint256.NewInt(31), uint256.NewInt(0xab), uint256.NewInt(0xab)},
		"byte beyond width":      {opByte, uint256.NewInt(32), maxValue, uint256.NewInt(0)},
		"signextend small":       {opSignExtend, uint256.NewInt(0), uint256.NewInt(0x80), new(uint256.Int).Sub(maxValue, uint256.NewInt(0x7f))},
		"signextend passthrough": {opSignExtend, uint256.NewInt(31), uint256.NewInt(0x80), uint256.NewInt(0x80)},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := runBinaryOp(t, test.handler, test.left, test.right)
			if !got.Eq(test.want) {
				t.Errorf("got %v, want %v", &got, test.want)
			}
		})
	}
}

func TestInstructions_ModArithmeticWithZeroModulus(t *testing.T) {
	for name, handler := range map[string]func(*frame){"addmod": opAddMod, "mulmod": opMulMod} {
		t.Run(name, func(t *testing.T) {
			f := newTestFrame()
			defer returnStack(f.stack)
			f.stack.push(uint256.NewInt(0)) // modulus
			f.stack.push(uint256.NewInt(5))
			f.stack.push(uint256.NewInt(7))
			handler(f)
			if got := f.stack.peek(); !got.IsZero() {
				t.Errorf("zero modulus must yield 0, got %v", got)
			}
		})
	}
}

func TestInstructions_AddModUses512BitIntermediate(t *testing.T) {
	// (MAX + MAX) mod 7: without a 512-bit intermediate the sum would wrap.
	maxValue := new(uint256.Int).SetAllOne()
	want := new(big.Int).Add(maxValue.ToBig(), maxValue.ToBig())
	want.Mod(want, big.NewInt(7))

	f := newTestFrame()
	defer returnStack(f.stack)
	f.stack.push(uint256.NewInt(7))
	f.stack.push(maxValue)
	f.stack.push(maxValue)
	opAddMod(f)
	if got := f.stack.peek().ToBig(); got.Cmp(want) != 0 {
		t.Errorf("addmod(MAX, MAX, 7) = %v, want %v", got, want)
	}
}

func TestInstructions_ModArithmeticMatchesBigIntReference(t *testing.T) {
	rnd := rand.New(0)
	two512 := new(big.Int).Lsh(big.NewInt(1), 512)

	for i := 0; i < 100; i++ {
		x := randomU256(rnd)
		y := randomU256(rnd)
		m := randomU256(rnd)
		if m.IsZero() {
			continue
		}

		f := newTestFrame()
		f.stack.push(m)
		f.stack.push(y)
		f.stack.push(x)
		opAddMod(f)
		want := new(big.Int).Add(x.ToBig(), y.ToBig())
		want.Mod(want, two512).Mod(want, m.ToBig())
		if got := f.stack.pop().ToBig(); got.Cmp(want) != 0 {
			t.Fatalf("addmod(%v, %v, %v) = %v, want %v", x, y, m, got, want)
		}

		f.stack.push(m)
		f.stack.push(y)
		f.stack.push(x)
		opMulMod(f)
		want = new(big.Int).Mul(x.ToBig(), y.ToBig())
		want.Mod(want, m.ToBig())
		if got := f.stack.pop().ToBig(); got.Cmp(want) != 0 {
			t.Fatalf("mulmod(%v, %v, %v) = %v, want %v", x, y, m, got, want)
		}
		returnStack(f.stack)
	}
}

func randomU256(rnd *rand.Rand) *uint256.Int {
	return &uint256.Int{rnd.Uint64(), rnd.Uint64(), rnd.Uint64(), rnd.Uint64()}
}

func TestInstructions_WrappingMatchesBigIntReference(t *testing.T) {
	rnd := rand.New(0)
	two256 := new(big.Int).Lsh(big.NewInt(1), 256)

	ops := map[string]struct {
		handler   func(*frame)
		reference func(x, y *big.Int) *big.Int
	}{
		"add": {opAdd, func(x, y *big.Int) *big.Int { return new(big.Int).Add(x, y) }},
		"sub": {opSub, func(x, y *big.Int) *big.Int { return new(big.Int).Sub(x, y) }},
		"mul": {opMul, func(x, y *big.Int) *big.Int { return new(big.Int).Mul(x, y) }},
	}

	for i := 0; i < 100; i++ {
		x := randomU256(rnd)
		y := randomU256(rnd)
		for name, op := range ops {
			got := runBinaryOp(t, op.handler, x, y)
			want := op.reference(x.ToBig(), y.ToBig())
			want.Mod(want, two256)
			if got.ToBig().Cmp(want) != 0 {
				t.Fatalf("%s(%v, %v) = %v, want %v", name, x, y, &got, want)
			}
		}
	}
}

func TestInstructions_ExpFaultsOnWideExponents(t *testing.T) {
	f := newTestFrame()
	defer returnStack(f.stack)

	f.stack.push(new(uint256.Int).Lsh(uint256.NewInt(1), 64)) // exponent
	f.stack.push(uint256.NewInt(2))                           // base
	err := opExp(f)
	if err == nil {
		t.Fatal("expected a fault for an exponent beyond 2^64")
	}
	if fault := ember.AsError(err); fault.Kind != ember.OutOfBounds {
		t.Errorf("unexpected fault kind %v", fault.Kind)
	}
}

func TestInstructions_Exp(t *testing.T) {
	tests := []struct {
		base, exponent uint64
		want           *uint256.Int
	}{
		{2, 8, uint256.NewInt(256)},
		{3, 0, uint256.NewInt(1)},
		{0, 0, uint256.NewInt(1)},
		{10, 4, uint256.NewInt(10_000)},
	}
	for _, test := range tests {
		f := newTestFrame()
		f.stack.push(uint256.NewInt(test.exponent))
		f.stack.push(uint256.NewInt(test.base))
		if err := opExp(f); err != nil {
			t.Fatalf("exp(%d, %d) failed: %v", test.base, test.exponent, err)
		}
		if got := f.stack.peek(); !got.Eq(test.want) {
			t.Errorf("exp(%d, %d) = %v, want %v", test.base, test.exponent, got, test.want)
		}
		returnStack(f.stack)
	}
}

func TestInstructions_CallDataLoadZeroPads(t *testing.T) {
	f := newTestFrame()
	defer returnStack(f.stack)
	f.input = []byte{0x01, 0x02, 0x03}

	f.stack.push(uint256.NewInt(1))
	if err := opCallDataLoad(f); err != nil {
		t.Fatalf("calldataload failed: %v", err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(0x0203), 240)
	if got := f.stack.peek(); !got.Eq(want) {
		t.Errorf("calldataload(1) = %v, want %v", got, want)
	}

	// Loading entirely past the input yields zero.
	f.stack.pop()
	f.stack.push(uint256.NewInt(100))
	if err := opCallDataLoad(f); err != nil {
		t.Fatalf("calldataload failed: %v", err)
	}
	if got := f.stack.peek(); !got.IsZero() {
		t.Errorf("calldataload(100) = %v, want 0", got)
	}
}

func TestInstructions_PushImmediateMustFitTheCode(t *testing.T) {
	f := newTestFrame()
	defer returnStack(f.stack)
	f.program = NewProgram(ember.Code{byte(PUSH2), 0x12})

	err := opPush(f, 2)
	if err == nil {
		t.Fatal("expected a fault for a truncated immediate")
	}
	if fault := ember.AsError(err); fault.Kind != ember.OutOfBounds {
		t.Errorf("unexpected fault kind %v", fault.Kind)
	}
}

func TestInstructions_PushAssemblesBigEndianImmediate(t *testing.T) {
	f := newTestFrame()
	defer returnStack(f.stack)
	f.program = NewProgram(ember.Code{byte(PUSH3), 0x01, 0x02, 0x03, byte(STOP)})

	if err := opPush(f, 3); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := f.stack.peek(); !got.Eq(uint256.NewInt(0x010203)) {
		t.Errorf("push produced %v, want 0x010203", got)
	}
	if f.pc != 4 || !f.pcDirty {
		t.Errorf("push must move the pc past the immediate, got pc=%d dirty=%t", f.pc, f.pcDirty)
	}
}

func TestInstructions_JumpRejectsNonDestinations(t *testing.T) {
	f := newTestFrame()
	defer returnStack(f.stack)
	f.program = NewProgram(ember.Code{byte(PUSH1), 0x03, byte(JUMP), byte(ADD), byte(JUMPDEST)})

	f.stack.push(uint256.NewInt(4))
	if err := opJump(f); err != nil {
		t.Fatalf("jump to a JUMPDEST failed: %v", err)
	}
	if f.pc != 4 || !f.pcDirty {
		t.Errorf("jump landed on pc=%d dirty=%t", f.pc, f.pcDirty)
	}

	f.stack.push(uint256.NewInt(3))
	err := opJump(f)
	if err == nil {
		t.Fatal("expected a fault for a non-JUMPDEST target")
	}
	if fault := ember.AsError(err); fault.Kind != ember.IllegalInstruction {
		t.Errorf("unexpected fault kind %v", fault.Kind)
	}
}

func TestInstructions_JumpiFallsThroughOnZero(t *testing.T) {
	f := newTestFrame()
	defer returnStack(f.stack)
	f.program = NewProgram(ember.Code{byte(JUMPDEST), byte(STOP)})

	f.stack.push(uint256.NewInt(0)) // condition
	f.stack.push(uint256.NewInt(0)) // target
	if err := opJumpi(f); err != nil {
		t.Fatalf("jumpi failed: %v", err)
	}
	if f.pcDirty {
		t.Error("jumpi with a false condition must not move the pc")
	}

	f.stack.push(uint256.NewInt(1))
	f.stack.push(uint256.NewInt(0))
	if err := opJumpi(f); err != nil {
		t.Fatalf("jumpi failed: %v", err)
	}
	if !f.pcDirty || f.pc != 0 {
		t.Error("jumpi with a true condition must jump")
	}
}
