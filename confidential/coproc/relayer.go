package coproc

import (
	"context"

	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/core/store"
	"golang.org/x/xerrors"
)

// Viewer is the interface of a store that provides views on the latest
// committed state.
type Viewer interface {
	View(fn func(store.Readable) error) error
}

// Relayer re-encrypts values from the committed state of the ledger.
//
// - implements confidential.Relayer
type Relayer struct {
	srvc   *Service
	viewer Viewer
}

// NewRelayer returns a relayer in the same process as the co-processor.
func NewRelayer(srvc *Service, viewer Viewer) Relayer {
	return Relayer{
		srvc:   srvc,
		viewer: viewer,
	}
}

// Reencrypt implements confidential.Relayer.
func (r Relayer) Reencrypt(ctx context.Context, req confidential.ReencryptRequest) (confidential.Ciphertext, error) {
	var ct confidential.Ciphertext

	err := ctx.Err()
	if err != nil {
		return ct, xerrors.Errorf("context: %v", err)
	}

	err = r.viewer.View(func(rd store.Readable) error {
		ct, err = r.srvc.Reencrypt(rd, req)
		return err
	})

	if err != nil {
		return ct, xerrors.Errorf("failed to reencrypt: %w", err)
	}

	return ct, nil
}
