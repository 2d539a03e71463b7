// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ember

// Account is a single account in the world state. Implementations hold the
// address, nonce, balance, and code of the account; storage is kept
// separately (see Storage) so that call frames can mix the two, as CALLCODE
// and DELEGATECALL require.
type Account interface {
	Address() Address

	Nonce() uint64
	SetNonce(uint64)

	Balance() Value
	SetBalance(Value)

	Code() Code
	// HasCode reports whether the account carries non-empty code. A CALL to
	// an account without code short-circuits to success.
	HasCode() bool
	// SetCode installs the given code if the account has none yet; accounts
	// that already carry code are left untouched.
	SetCode(Code)
}

// Storage is the persistent 256-bit key/value store of one account. A load
// of an absent key yields the zero word; storing the zero word removes the
// key (enforced by the SSTORE handler).
type Storage interface {
	Load(Key) Word
	Store(Key, Word)
	Remove(Key)
	Exists(Key) bool
}

// AccountState pairs an account with its storage. It is the unit handed to
// call frames; CALLCODE and DELEGATECALL run foreign code against the
// calling frame's AccountState.
type AccountState struct {
	Account
	Storage
}

// Block describes the block an execution is embedded in.
type Block struct {
	Number     uint64
	Difficulty uint64
	GasLimit   uint64
	Timestamp  uint64
	Coinbase   Address
}

// WorldState is the interface to the collection of all accounts and the
// current-block metadata. Get auto-creates: looking up an unknown address
// yields a fresh zero-valued, code-less account, which is exactly what
// BALANCE and EXTCODESIZE observe for never-seen addresses.
type WorldState interface {
	Exists(Address) bool
	Get(Address) AccountState
	Create(addr Address, balance Value, code Code) AccountState
	Remove(Address)

	CurrentBlock() Block
	// BlockHash returns the block hash for the given number. The BLOCKHASH
	// handler passes its operand through unchanged and calls BlockHash only
	// for operands below 256.
	BlockHash(number uint64) Hash
}
