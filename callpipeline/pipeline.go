// Package callpipeline implements the Call Pipeline (spec.md §4.4):
// gas policy -> dry-run -> sign -> submit -> await receipt -> classify,
// grounded on ethereum/broadcast.go's attemptBroadcast (nonce check,
// submit, classify revert reason via JsonError).
package callpipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cosmossdk.io/log"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/skalenetwork/ima-agent/gaspolicy"
	"github.com/skalenetwork/ima-agent/relayer"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/signer"
	ima "github.com/skalenetwork/ima-agent/types"
)

// JsonError mirrors the revert-reason surface the teacher's
// ethereum/util.go JsonError interface exposes on go-ethereum RPC
// errors.
type JsonError interface {
	Error() string
	ErrorCode() int
}

// PoWHelper computes a gas price that satisfies an S-chain's free-gas
// policy when the signer's balance can't cover gasPrice*gasLimit
// (spec.md §4.4 step 4, §9's PoW sidecar design note). Implementation
// is an external program; this is only the contract.
type PoWHelper interface {
	ComputePow(ctx context.Context, address common.Address, nonce uint64, gas uint64) (*big.Int, error)
}

// Call describes one contract call to push through the pipeline.
type Call struct {
	Contract     common.Address
	CallData     []byte // ABI-encoded call data for the dry-run/estimate
	Value        *big.Int
	IgnoreDryRun bool

	// Destination classifies the target for the S-chain free-gas and
	// per-message-gas floor rules.
	IsSChainDestination bool
	MessageCount        int
}

// Result is the outcome of a successful pipeline run (spec.md §4.4
// step 5).
type Result struct {
	Receipt  *ethtypes.Receipt
	GasSpent uint64
	EthSpent *big.Int
}

// Pipeline executes Call Pipeline passes against one endpoint.
type Pipeline struct {
	Client *rpcclient.Client
	Signer signer.Signer
	Policy gaspolicy.Policy
	PoW    PoWHelper
	Logger log.Logger

	// Metrics, Chain and Direction are optional. When Metrics is set,
	// Run reports broadcast errors by category and cumulative gas
	// spent under these labels, mirroring the teacher's
	// ethereum/broadcast.go/noble/broadcast.go IncBroadcastErrors call.
	Metrics   *relayer.PromMetrics
	Chain     string
	Direction string
}

func New(client *rpcclient.Client, s signer.Signer, policy gaspolicy.Policy, pow PoWHelper, logger log.Logger) *Pipeline {
	return &Pipeline{Client: client, Signer: s, Policy: policy, PoW: pow, Logger: logger}
}

// Run executes one call through gas policy, dry-run, sign, submit,
// await, classify.
func (p *Pipeline) Run(ctx context.Context, call Call, transactOpts *bind.TransactOpts, build func(gasPrice *big.Int, gasLimit uint64, nonce uint64) (*ethtypes.Transaction, error)) (result Result, err error) {
	defer func() {
		if p.Metrics == nil {
			return
		}
		if err != nil {
			p.Metrics.RecordBroadcastError(p.Direction, errorCategory(err))
			return
		}
		p.Metrics.AddGasSpent(p.Chain, p.Direction, float64(result.GasSpent))
	}()

	rawGasPrice, err := p.Client.GetGasPrice(ctx, rpcclient.DefaultOptions(3))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ima.ErrRPCExhausted, err)
	}
	gasPrice := p.Policy.GasPrice(rawGasPrice)

	address := common.Address(p.Signer.Address())

	msg := ethereum.CallMsg{From: address, To: &call.Contract, Value: call.Value, GasPrice: gasPrice, Data: call.CallData}
	if _, err := p.Client.Call(ctx, msg, rpcclient.DefaultOptions(1)); err != nil && !call.IgnoreDryRun {
		return Result{}, fmt.Errorf("%w: %w", ima.ErrDryRun, err)
	}

	estimate, err := p.Client.EstimateGas(ctx, msg, rpcclient.DefaultOptions(1))
	if err != nil {
		estimate = 0
	}

	gasLimit := p.Policy.GasLimit(estimate)
	if call.MessageCount > 0 && !call.IsSChainDestination {
		if floor := p.Policy.PostIncomingMessagesFloor(call.MessageCount); floor > gasLimit {
			gasLimit = floor
		}
	}

	nonce, err := p.Client.GetTransactionCount(ctx, address, true, rpcclient.DefaultOptions(3))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ima.ErrRPCExhausted, err)
	}

	if call.IsSChainDestination {
		balance, err := p.Client.GetBalance(ctx, address, rpcclient.DefaultOptions(3))
		if err == nil {
			cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
			if balance.Cmp(cost) < 0 && p.PoW != nil {
				powPrice, powErr := p.PoW.ComputePow(ctx, address, nonce, gasLimit)
				if powErr == nil {
					gasPrice = powPrice
				}
			}
		}
	}

	tx, err := build(gasPrice, gasLimit, nonce)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ima.ErrContractCall, err)
	}

	signed, err := p.Signer.Sign(ctx, transactOpts, tx)
	if err != nil {
		return Result{}, err
	}

	var receipt *ethtypes.Receipt
	switch {
	case signed.Receipt != nil:
		receipt = signed.Receipt
	case p.Signer.IsAutoSend():
		return Result{}, fmt.Errorf("%w: auto-send signer returned no receipt", ima.ErrSignerBackend)
	default:
		if err := p.Client.SendRawTransaction(ctx, signed.Tx, rpcclient.DefaultOptions(3)); err != nil {
			return Result{}, classify(err)
		}
		receipt, err = p.Client.GetTransactionReceipt(ctx, signed.Tx.Hash(), rpcclient.DefaultOptions(5))
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ima.ErrRPCExhausted, err)
		}
	}

	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return Result{}, fmt.Errorf("%w: tx %s reverted", ima.ErrContractCall, receipt.TxHash)
	}

	gasSpent := receipt.GasUsed
	ethSpent := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasSpent))

	return Result{Receipt: receipt, GasSpent: gasSpent, EthSpent: ethSpent}, nil
}

func classify(err error) error {
	if jsonErr, ok := err.(JsonError); ok {
		return fmt.Errorf("%w: %s (code %d)", ima.ErrContractCall, jsonErr.Error(), jsonErr.ErrorCode())
	}
	return fmt.Errorf("%w: %w", ima.ErrContractCall, err)
}

// errorCategory labels a Run failure by its sentinel error for the
// broadcast-errors counter.
func errorCategory(err error) string {
	switch {
	case errors.Is(err, ima.ErrRPCExhausted):
		return "rpc"
	case errors.Is(err, ima.ErrDryRun):
		return "dry_run"
	case errors.Is(err, ima.ErrContractCall):
		return "contract_call"
	default:
		return "signer"
	}
}
