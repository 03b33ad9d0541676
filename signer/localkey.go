package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	ima "github.com/skalenetwork/ima-agent/types"
)

// LocalKey signs a transaction envelope with a provided private key
// and leaves submission to the caller, grounded on ethereum/util.go's
// GetEcdsaKeyAddress.
type LocalKey struct {
	capability
	privateKey *ecdsa.PrivateKey
	chainID    *big.Int
	address    common.Address
}

func NewLocalKey(privateKeyHex string, chainID *big.Int) (*LocalKey, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("unable to parse local signer private key: %w", err)
	}
	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	return &LocalKey{
		capability: capability{isAutoSend: false},
		privateKey: key,
		chainID:    chainID,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

func (l *LocalKey) Address() [20]byte { return l.address }

// TransactOpts builds the bind.TransactOpts the Call Pipeline's
// dry-run and submit stages use, keyed on this backend's account.
func (l *LocalKey) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(l.privateKey, l.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (l *LocalKey) Sign(ctx context.Context, opts *bind.TransactOpts, tx *types.Transaction) (Signed, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), l.privateKey)
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ima.ErrSignerBackend, err)
	}
	return Signed{Tx: signed}, nil
}
