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

//go:generate mockgen -source transaction.go -destination transaction_mock.go -package ember

// Log is a record emitted by the LOG0..LOG4 instructions for off-chain
// consumers.
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

// LogSink receives the log entries emitted during a transaction, in the
// program order of the emitting instructions across all frames.
type LogSink interface {
	Handle(Log)
}

// NullLogSink discards all log entries.
type NullLogSink struct{}

func (NullLogSink) Handle(Log) {}

// VectorLogSink collects all log entries in order of emission.
type VectorLogSink struct {
	Logs []Log
}

func (s *VectorLogSink) Handle(l Log) {
	s.Logs = append(s.Logs, l)
}

// Transaction carries the immutable per-transaction inputs together with the
// destroy list accumulated by SELFDESTRUCT and the sink receiving emitted
// logs. The destroy list is swept from the world state after the root run
// completes, not between frames.
type Transaction struct {
	Origin   Address
	Value    uint64
	GasPrice uint64
	GasLimit uint64

	Logs        LogSink
	DestroyList []Address
}

// NewTransaction creates a transaction with the given origin and sink. A nil
// sink is replaced by a NullLogSink.
func NewTransaction(origin Address, sink LogSink, value, gasPrice, gasLimit uint64) *Transaction {
	if sink == nil {
		sink = NullLogSink{}
	}
	return &Transaction{
		Origin:   origin,
		Value:    value,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		Logs:     sink,
	}
}
