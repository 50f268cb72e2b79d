// Package ordering defines the interface of the ordering service. The purpose
// of the service is to decide in which order the transactions are applied to
// the ledger, and to apply each of them as one atomic transition.
package ordering

import (
	"context"

	"go.dedis.ch/forecast/core/access"
	"go.dedis.ch/forecast/core/execution"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/txn"
)

// Service is the interface of an ordering service.
type Service interface {
	// Submit applies the transaction to the ledger and returns the result of
	// the execution. A transaction that is not accepted leaves the ledger
	// untouched.
	Submit(ctx context.Context, tx txn.Transaction) (execution.Result, error)

	// GetNonce returns the next nonce expected for the identity.
	GetNonce(ident access.Identity) (uint64, error)

	// View executes the function on the latest committed state.
	View(fn func(store.Readable) error) error
}
