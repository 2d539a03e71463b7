// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package state provides a map-backed, in-memory implementation of the
// ember.WorldState interface together with a JSON snapshot format, intended
// for hosts, tools, and tests that do not bring their own state backend.
package state

import (
	"github.com/ember-vm/ember/ember"
)

// Account is the in-memory implementation of ember.Account.
type Account struct {
	address ember.Address
	nonce   uint64
	balance ember.Value
	code    ember.Code
}

// NewAccount creates an account with the given initial balance and code.
func NewAccount(address ember.Address, balance ember.Value, code ember.Code) *Account {
	return &Account{
		address: address,
		balance: balance,
		code:    code,
	}
}

func (a *Account) Address() ember.Address {
	return a.address
}

func (a *Account) Nonce() uint64 {
	return a.nonce
}

func (a *Account) SetNonce(nonce uint64) {
	a.nonce = nonce
}

func (a *Account) Balance() ember.Value {
	return a.balance
}

func (a *Account) SetBalance(balance ember.Value) {
	a.balance = balance
}

func (a *Account) Code() ember.Code {
	return a.code
}

func (a *Account) HasCode() bool {
	return len(a.code) > 0
}

// SetCode installs code on a code-less account. Accounts that already carry
// code are left untouched; on-chain code is immutable.
func (a *Account) SetCode(code ember.Code) {
	if a.HasCode() {
		return
	}
	a.code = code
}
