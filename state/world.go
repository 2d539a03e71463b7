// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"github.com/ember-vm/ember/ember"
)

type entry struct {
	account *Account
	storage *Storage
}

// World is the in-memory implementation of ember.WorldState. Unknown
// addresses auto-create a zero-valued, code-less account on Get.
type World struct {
	accounts map[ember.Address]entry
	block    ember.Block
}

// NewWorld creates an empty world with the given current block.
func NewWorld(block ember.Block) *World {
	return &World{
		accounts: map[ember.Address]entry{},
		block:    block,
	}
}

func (w *World) Exists(addr ember.Address) bool {
	_, found := w.accounts[addr]
	return found
}

func (w *World) Get(addr ember.Address) ember.AccountState {
	if e, found := w.accounts[addr]; found {
		return ember.AccountState{Account: e.account, Storage: e.storage}
	}
	return w.Create(addr, ember.Value{}, nil)
}

func (w *World) Create(addr ember.Address, balance ember.Value, code ember.Code) ember.AccountState {
	e := entry{
		account: NewAccount(addr, balance, code),
		storage: NewStorage(),
	}
	w.accounts[addr] = e
	return ember.AccountState{Account: e.account, Storage: e.storage}
}

func (w *World) Remove(addr ember.Address) {
	delete(w.accounts, addr)
}

func (w *World) CurrentBlock() ember.Block {
	return w.block
}

func (w *World) SetCurrentBlock(block ember.Block) {
	w.block = block
}

// BlockHash returns the zero hash for all blocks. Hosts that need real block
// history supply their own ember.WorldState implementation.
func (w *World) BlockHash(number uint64) ember.Hash {
	return ember.Hash{}
}

// NumAccounts returns the number of accounts currently in the world.
func (w *World) NumAccounts() int {
	return len(w.accounts)
}
