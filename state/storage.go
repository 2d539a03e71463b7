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

// Storage is the in-memory implementation of ember.Storage.
type Storage struct {
	slots map[ember.Key]ember.Word
}

func NewStorage() *Storage {
	return &Storage{slots: map[ember.Key]ember.Word{}}
}

func (s *Storage) Load(key ember.Key) ember.Word {
	return s.slots[key]
}

func (s *Storage) Store(key ember.Key, value ember.Word) {
	s.slots[key] = value
}

func (s *Storage) Remove(key ember.Key) {
	delete(s.slots, key)
}

func (s *Storage) Exists(key ember.Key) bool {
	_, found := s.slots[key]
	return found
}

func (s *Storage) size() int {
	return len(s.slots)
}
