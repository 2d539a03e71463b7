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

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// CreateAddress derives the address of a contract created by the given
// sender at the given nonce: the low 160 bits of
// keccak256(rlp([sender, nonce])). The nonce is RLP-encoded without leading
// zero bytes (the empty string for nonce 0).
func CreateAddress(sender Address, nonce uint64) Address {
	encoding, err := rlp.EncodeToBytes(struct {
		Sender Address
		Nonce  uint64
	}{sender, nonce})
	if err != nil {
		// Fixed-shape input; the encoder cannot fail on it.
		panic(err)
	}
	hash := Keccak256(encoding)

	var addr Address
	copy(addr[:], hash[12:])
	return addr
}
