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
	"encoding/json"
	"testing"

	"github.com/ember-vm/ember/ember"
)

func TestWorld_GetAutoCreatesAccounts(t *testing.T) {
	w := NewWorld(ember.Block{})
	addr := ember.Address{0x01}

	if w.Exists(addr) {
		t.Fatal("fresh world must not contain the address")
	}
	as := w.Get(addr)
	if !w.Exists(addr) {
		t.Error("Get must create missing accounts")
	}
	if !as.Balance().IsZero() || as.Nonce() != 0 || as.HasCode() {
		t.Error("auto-created account must be zero-valued and code-less")
	}

	// Repeated lookups observe the same account.
	as.SetNonce(7)
	if got := w.Get(addr).Nonce(); got != 7 {
		t.Errorf("second lookup returned a different account, nonce %d", got)
	}
}

func TestWorld_CreateAndRemove(t *testing.T) {
	w := NewWorld(ember.Block{})
	addr := ember.Address{0x02}

	w.Create(addr, ember.NewValue(100), ember.Code{0x00})
	if !w.Exists(addr) {
		t.Fatal("created account missing")
	}
	if w.NumAccounts() != 1 {
		t.Errorf("unexpected account count %d", w.NumAccounts())
	}
	w.Remove(addr)
	if w.Exists(addr) {
		t.Error("removed account still present")
	}
}

func TestAccount_SetCodeIsSetOnce(t *testing.T) {
	acc := NewAccount(ember.Address{}, ember.Value{}, nil)
	if acc.HasCode() {
		t.Fatal("fresh account must not have code")
	}
	acc.SetCode(ember.Code{0x60, 0x01})
	if !acc.HasCode() {
		t.Fatal("code not installed")
	}
	acc.SetCode(ember.Code{0x00})
	if string(acc.Code()) != string(ember.Code{0x60, 0x01}) {
		t.Error("code must be immutable once set")
	}
}

func TestStorage_ZeroConventions(t *testing.T) {
	s := NewStorage()
	key := ember.Key{31: 0x01}

	if !s.Load(key).IsZero() {
		t.Error("absent key must load as zero")
	}
	if s.Exists(key) {
		t.Error("absent key must not exist")
	}

	value := ember.Word{31: 0x2a}
	s.Store(key, value)
	if s.Load(key) != value || !s.Exists(key) {
		t.Error("stored value not observable")
	}

	s.Remove(key)
	if s.Exists(key) || !s.Load(key).IsZero() {
		t.Error("removed key must behave like an absent key")
	}
}

func TestWorld_JSONRoundTrip(t *testing.T) {
	block := ember.Block{
		Number:    12,
		GasLimit:  1 << 20,
		Timestamp: 1234567,
		Coinbase:  ember.Address{0xc0},
	}
	w := NewWorld(block)

	a := w.Create(ember.Address{0x0a}, ember.NewValue(1000), ember.Code{0x60, 0x01, 0x00})
	a.SetNonce(3)
	a.Store(ember.Key{31: 0x01}, ember.Word{31: 0x2a})
	a.Store(ember.Key{31: 0x02}, ember.Word{30: 0x01})
	w.Create(ember.Address{0x0b}, ember.NewValue(5), nil)

	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	restored := NewWorld(ember.Block{})
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if restored.CurrentBlock() != block {
		t.Errorf("block changed: %+v", restored.CurrentBlock())
	}
	if restored.NumAccounts() != 2 {
		t.Fatalf("account count changed: %d", restored.NumAccounts())
	}
	ra := restored.Get(ember.Address{0x0a})
	if ra.Nonce() != 3 || ra.Balance() != ember.NewValue(1000) {
		t.Error("account fields changed")
	}
	if string(ra.Code()) != string(ember.Code{0x60, 0x01, 0x00}) {
		t.Error("code changed")
	}
	if ra.Load(ember.Key{31: 0x01}) != (ember.Word{31: 0x2a}) {
		t.Error("storage slot changed")
	}
}

func TestWorld_JSONIsDeterministic(t *testing.T) {
	w := NewWorld(ember.Block{})
	for i := byte(0); i < 16; i++ {
		w.Create(ember.Address{0: i}, ember.NewValue(uint64(i)), nil)
	}
	first, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("snapshot serialization is not deterministic")
	}
}
