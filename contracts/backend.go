package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// BackendWrapper adapts a persistent *ethclient.Client into the
// bind.ContractBackend MessageProxy's read calls need, grounded on
// cmd/ethereum/contract_backend_wrapper.go's embed-and-override shape.
// Only SendTransaction is overridden; the Call Pipeline never goes
// through it (it submits via rpcclient.Client.SendRawTransaction
// instead), so this path only ever serves dry-run/read calls.
type BackendWrapper struct {
	*ethclient.Client
}

func NewBackendWrapper(client *ethclient.Client) *BackendWrapper {
	return &BackendWrapper{Client: client}
}

func (b *BackendWrapper) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return b.Client.SendTransaction(ctx, tx)
}
