// Package signer implements the Signer capability (spec.md §4.5):
// polymorphic over LocalKey, RemoteHSM, and QueueManager backends.
package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Signed is the outcome of a Sign call: either a signed-but-unsent
// transaction envelope (caller submits), or a terminal receipt when
// the backend is auto-send.
type Signed struct {
	Tx      *ethtypes.Transaction
	Receipt *ethtypes.Receipt
}

// Signer is the uniform capability the Call Pipeline depends on.
// IsAutoSend reports whether Sign already carries the call to a
// terminal receipt, so the Call Pipeline knows whether to submit
// itself (spec.md §4.5's "the Signer reports isAutoSend").
type Signer interface {
	Sign(ctx context.Context, opts *bind.TransactOpts, tx *ethtypes.Transaction) (Signed, error)
	IsAutoSend() bool
	Address() [20]byte
}

// capability dispatches by what the backend can do, not by a string
// type tag (spec.md §9's "Mixed Redis queue + local signing + HSM"
// design note).
type capability struct {
	isAutoSend bool
}

func (c capability) IsAutoSend() bool { return c.isAutoSend }
