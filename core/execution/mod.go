// Package execution defines the service that applies a transaction to a
// snapshot of the ledger state.
package execution

import (
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/txn"
)

// Step is the context of a transaction execution.
type Step struct {
	// Current is the transaction being executed.
	Current txn.Transaction

	// Day is the day index sampled once when the transition started.
	Day clock.Day
}

// Result is the result of a transaction execution.
type Result struct {
	// Accepted is the success state of the transaction.
	Accepted bool

	// Message gives a change to the execution to explain why a transaction has
	// failed.
	Message string
}

// Service is the execution service that defines the primitives to execute a
// transaction.
type Service interface {
	// Execute must apply the transaction to the snapshot and return the result
	// of it. A transaction that is not accepted must be discarded with the
	// snapshot.
	Execute(snap store.TxSnapshot, step Step) (Result, error)
}
