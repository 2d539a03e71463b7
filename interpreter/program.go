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
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ember-vm/ember/ember"
)

// Program is an analyzed code vector: the raw bytes plus the set of valid
// jump destinations. Programs are immutable for the lifetime of a frame.
type Program struct {
	code      ember.Code
	jumpDests map[uint64]struct{}
}

// NewProgram analyzes the given code in a single left-to-right pass. A byte
// is a jump destination iff it is a JUMPDEST outside of any PUSHn immediate.
func NewProgram(code ember.Code) *Program {
	dests := map[uint64]struct{}{}
	for i := uint64(0); i < uint64(len(code)); i++ {
		op := OpCode(code[i])
		if op.IsPush() {
			i += uint64(op.PushSize())
		} else if op == JUMPDEST {
			dests[i] = struct{}{}
		}
	}
	return &Program{code: code, jumpDests: dests}
}

// Code returns the raw byte code of the program.
func (p *Program) Code() ember.Code {
	return p.code
}

// Length returns the code size in bytes.
func (p *Program) Length() uint64 {
	return uint64(len(p.code))
}

// IsJumpDest reports whether the given offset is a valid jump target.
func (p *Program) IsJumpDest(target uint64) bool {
	_, found := p.jumpDests[target]
	return found
}

// maxCachedCodeLength is the maximum length of a code in bytes retained in
// the program cache. The limit is the maximum size of deployed on-chain
// code; initialization codes can be longer, but their one-shot nature makes
// caching them pointless.
const maxCachedCodeLength = 24_576

// ProgramCache memoizes jump-destination analysis keyed by the Keccak-256
// hash of the code, so that repeated calls into the same contract within and
// across runs share one analysis.
type ProgramCache struct {
	cache *lru.Cache[ember.Hash, *Program]
}

// NewProgramCache creates a cache holding up to capacity analyzed programs.
// A non-positive capacity disables caching.
func NewProgramCache(capacity int) *ProgramCache {
	if capacity <= 0 {
		return &ProgramCache{}
	}
	cache, err := lru.New[ember.Hash, *Program](capacity)
	if err != nil {
		return &ProgramCache{}
	}
	return &ProgramCache{cache: cache}
}

// Get returns the analyzed program for the given code, reusing a cached
// analysis when one exists. Codes above maxCachedCodeLength bypass the cache.
func (c *ProgramCache) Get(code ember.Code) *Program {
	if c.cache == nil || len(code) > maxCachedCodeLength {
		return NewProgram(code)
	}

	key := ember.Keccak256(code)
	if prog, exists := c.cache.Get(key); exists {
		return prog
	}
	prog := NewProgram(code)
	c.cache.Add(key, prog)
	return prog
}
