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

// wordSize is the width of an EVM word in bytes.
const wordSize = 32

// maxMemorySize is the cap on a frame's linear memory: 32 MiB.
const maxMemorySize = 1 << 25

// sizeInWords returns the number of 32-byte words needed to hold size bytes.
func sizeInWords(size uint64) uint64 {
	return (size + wordSize - 1) / wordSize
}

// Memory is the byte-addressed, zero-extending linear memory of one frame.
// Within one frame its size never shrinks. Allocation is rounded up to full
// words; MSIZE observes exactly sizeWords() * 32.
type Memory struct {
	store []byte
	limit uint64
}

func NewMemory() *Memory {
	return &Memory{limit: maxMemorySize}
}

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// sizeWords returns the current memory size in 32-byte words.
func (m *Memory) sizeWords() uint64 {
	return sizeInWords(m.length())
}

// expand grows the memory so that offset+size bytes exist. It faults when
// offset+size wraps around or exceeds the memory cap. A size of zero never
// expands, independently of the offset.
func (m *Memory) expand(offset, size uint64) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset {
		return ember.Errorf(ember.OutOfBounds,
			"integer overflow in memory access (%d < %d)", needed, offset)
	}
	if needed > m.limit {
		return ember.Errorf(ember.OutOfBounds,
			"memory limit exceeded (%d > %d)", needed, m.limit)
	}
	if allocated := sizeInWords(needed) * wordSize; m.length() < allocated {
		m.store = append(m.store, make([]byte, allocated-m.length())...)
	}
	return nil
}

// getSlice obtains a slice of size bytes from the memory at the given
// offset, growing the memory as needed. The returned slice is backed by the
// memory's internal data; updates to it affect the memory state. The
// connection is invalidated by any subsequent operation that may grow the
// memory.
func (m *Memory) getSlice(offset, size uint64) ([]byte, error) {
	if err := m.expand(offset, size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return m.store[offset : offset+size], nil
}

// read copies size bytes starting at offset out of the memory, growing it
// first.
func (m *Memory) read(offset, size uint64) ([]byte, error) {
	data, err := m.getSlice(offset, size)
	if err != nil {
		return nil, err
	}
	result := make([]byte, size)
	copy(result, data)
	return result, nil
}

// readWord reads the 32-byte big-endian word at the given offset into the
// provided target, growing the memory as needed.
func (m *Memory) readWord(offset uint64, target *uint256.Int) error {
	data, err := m.getSlice(offset, wordSize)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}

// setWord writes the given value as a 32-byte big-endian word at the given
// offset, growing the memory as needed.
func (m *Memory) setWord(offset uint64, value *uint256.Int) error {
	data, err := m.getSlice(offset, wordSize)
	if err != nil {
		return err
	}
	word := value.Bytes32()
	copy(data, word[:])
	return nil
}

// setByte writes a single byte at the given offset, growing the memory as
// needed.
func (m *Memory) setByte(offset uint64, value byte) error {
	data, err := m.getSlice(offset, 1)
	if err != nil {
		return err
	}
	data[0] = value
	return nil
}

// copyIn copies size bytes from src, starting at srcOffset, into the memory
// at dstOffset, growing the memory as needed. Bytes beyond the end of src
// are filled with pad; CODECOPY-style operations pad with the STOP opcode.
func (m *Memory) copyIn(dstOffset uint64, src []byte, srcOffset, size uint64, pad byte) error {
	data, err := m.getSlice(dstOffset, size)
	if err != nil {
		return err
	}

	covered := 0
	if srcOffset < uint64(len(src)) {
		covered = copy(data, src[srcOffset:])
	}
	for i := covered; i < len(data); i++ {
		data[i] = pad
	}
	return nil
}
