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
	"bytes"
	"encoding/json"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ember-vm/ember/ember"
)

// The snapshot format serializes each account as a hex-encoded record and
// its storage as a key/value object, ordered by address and key so that
// snapshots diff cleanly.

type accountJSON struct {
	Address ember.Address         `json:"address"`
	Balance ember.Value           `json:"balance"`
	Nonce   uint64                `json:"nonce"`
	Code    ember.Code            `json:"code,omitempty"`
	Storage map[string]ember.Word `json:"storage,omitempty"`
}

type worldJSON struct {
	Block    ember.Block   `json:"block"`
	Accounts []accountJSON `json:"accounts"`
}

func (w *World) MarshalJSON() ([]byte, error) {
	addresses := maps.Keys(w.accounts)
	slices.SortFunc(addresses, func(a, b ember.Address) int {
		return bytes.Compare(a[:], b[:])
	})

	snapshot := worldJSON{Block: w.block}
	for _, addr := range addresses {
		e := w.accounts[addr]
		record := accountJSON{
			Address: addr,
			Balance: e.account.Balance(),
			Nonce:   e.account.Nonce(),
			Code:    e.account.Code(),
		}
		if e.storage.size() > 0 {
			record.Storage = make(map[string]ember.Word, e.storage.size())
			for key, value := range e.storage.slots {
				record.Storage[key.String()] = value
			}
		}
		snapshot.Accounts = append(snapshot.Accounts, record)
	}
	return json.Marshal(snapshot)
}

func (w *World) UnmarshalJSON(data []byte) error {
	var snapshot worldJSON
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}

	w.block = snapshot.Block
	w.accounts = make(map[ember.Address]entry, len(snapshot.Accounts))
	for _, record := range snapshot.Accounts {
		as := w.Create(record.Address, record.Balance, record.Code)
		as.SetNonce(record.Nonce)
		for text, value := range record.Storage {
			var key ember.Key
			if err := key.UnmarshalText([]byte(text)); err != nil {
				return err
			}
			as.Store(key, value)
		}
	}
	return nil
}
