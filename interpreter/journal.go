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

// The journal records the inverse of every state mutation performed during a
// run. A frame snapshots the journal position when it is set up; if the
// frame halts or faults, everything after the snapshot is undone in reverse
// order, making a child's storage and balance effects atomic with respect to
// its success. Log emission is deliberately not journaled: sinks observe
// entries in program order.

// journalEntry undoes one state mutation.
type journalEntry interface {
	revert(world ember.WorldState, tx *ember.Transaction)
}

type journal struct {
	entries []journalEntry
}

// snapshot returns the current journal position.
func (j *journal) snapshot() int {
	return len(j.entries)
}

// revertTo undoes all entries recorded after the given snapshot.
func (j *journal) revertTo(world ember.WorldState, tx *ember.Transaction, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(world, tx)
	}
	j.entries = j.entries[:snapshot]
}

func (j *journal) record(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// --- entries ---

type balanceChange struct {
	account ember.Account
	prev    ember.Value
}

func (c balanceChange) revert(ember.WorldState, *ember.Transaction) {
	c.account.SetBalance(c.prev)
}

type nonceChange struct {
	account ember.Account
	prev    uint64
}

func (c nonceChange) revert(ember.WorldState, *ember.Transaction) {
	c.account.SetNonce(c.prev)
}

type storageChange struct {
	storage ember.Storage
	key     ember.Key
	prev    ember.Word
	existed bool
}

func (c storageChange) revert(ember.WorldState, *ember.Transaction) {
	if c.existed {
		c.storage.Store(c.key, c.prev)
	} else {
		c.storage.Remove(c.key)
	}
}

// accountCreated removes the whole account on revert; this also discards any
// code installed on it, which is why code changes carry no entry of their
// own.
type accountCreated struct {
	address ember.Address
}

func (c accountCreated) revert(world ember.WorldState, _ *ember.Transaction) {
	world.Remove(c.address)
}

type destroyListAppend struct{}

func (destroyListAppend) revert(_ ember.WorldState, tx *ember.Transaction) {
	tx.DestroyList = tx.DestroyList[:len(tx.DestroyList)-1]
}
