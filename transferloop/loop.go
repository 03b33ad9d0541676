// Package transferloop implements the Transfer Loop (spec.md §4.9):
// one per-direction pass, gated by the coordinator, formed into a
// batch, optionally S->S-verified, signed, submitted, and checked for
// a destination PostMessageError, grounded on cmd/process.go's
// Start/StartProcessor main loop and noble/listener.go's timer-driven
// flushMechanism iteration-with-cancellation shape.
package transferloop

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/skalenetwork/ima-agent/batchformer"
	"github.com/skalenetwork/ima-agent/callpipeline"
	"github.com/skalenetwork/ima-agent/contracts"
	"github.com/skalenetwork/ima-agent/coordinator"
	"github.com/skalenetwork/ima-agent/relayer"
	"github.com/skalenetwork/ima-agent/s2sverifier"
	"github.com/skalenetwork/ima-agent/sigcollector"
	ima "github.com/skalenetwork/ima-agent/types"
)

// Options bounds one Loop's pass budget (spec.md §6 process options).
type Options struct {
	TransactionsPerBlock int
	TransferSteps        int // 0 = unbounded
	MaxTransactionsCount int // 0 = unbounded
	PassBudget           time.Duration

	// WaitForNextBlockOnSChain, when the destination is an S-chain,
	// pauses the loop until the destination's block number advances
	// past the submission's block before the next iteration begins,
	// rather than racing a same-block resubmission (spec.md §6).
	WaitForNextBlockOnSChain bool

	// SleepBetweenTxOnSChain paces successive S-chain submissions when
	// WaitForNextBlockOnSChain is off (spec.md §6's
	// sleepBetweenTxOnSChainMs).
	SleepBetweenTxOnSChain time.Duration
}

func DefaultOptions() Options {
	return Options{TransactionsPerBlock: 5, PassBudget: 10 * time.Minute}
}

// Loop drives one (source,destination) direction end to end.
type Loop struct {
	DirectionKey string
	SourceChain  string
	DestChain    string
	IsSChainToS  bool
	DestIsMain   bool
	Roster       []ima.Node

	Former      *batchformer.Former
	Verifier    *s2sverifier.Verifier
	SigCollect  sigcollector.Collector
	Pipeline    *callpipeline.Pipeline
	DestProxy   *contracts.MessageProxy
	Coordinator coordinator.Coordinator

	State   *ima.TransferLoopState
	Errors  *ima.ErrorRegistry
	Options Options
	Logger  log.Logger

	// Metrics is optional; when set, a successful submission records
	// one batch against the direction's counter (spec.md §4 ambient
	// observability supplement).
	Metrics *relayer.PromMetrics
}

// Run performs one pass for the loop's direction (spec.md §4.9 steps
// 1-11). It returns nil both on a clean "nothing to do" pass and on a
// time-budget-exceeded break; only genuine failures return an error.
func (l *Loop) Run(ctx context.Context, transactOpts *bind.TransactOpts) error {
	if !l.Coordinator.TryStart(l.DirectionKey) {
		return nil
	}
	l.State.Begin()
	defer func() {
		l.Coordinator.NotifyEnd(l.DirectionKey)
		l.State.End()
	}()

	deadline := time.Now().Add(l.Options.PassBudget)
	steps, submitted := 0, 0

	for {
		if l.Options.TransferSteps > 0 && steps >= l.Options.TransferSteps {
			break
		}
		if l.Options.MaxTransactionsCount > 0 && submitted >= l.Options.MaxTransactionsCount {
			break
		}
		if time.Now().After(deadline) {
			break
		}

		batch, err := l.Former.Form(ctx, l.SourceChain, l.DestChain)
		if err != nil {
			l.Errors.Record(l.DirectionKey, l.DirectionKey, err)
			return err
		}
		if len(batch.Messages) == 0 {
			break
		}

		if l.IsSChainToS && l.Verifier != nil {
			batch, err = l.Verifier.VerifyBatch(ctx, l.Roster, batch)
			if err != nil {
				l.Errors.Record(l.DirectionKey, l.DirectionKey, err)
				return err
			}
			if len(batch.Messages) == 0 {
				l.Errors.Record(l.DirectionKey, l.DirectionKey, ima.ErrS2SQuorum)
				break
			}
		}

		sig, err := l.SigCollect.Sign(ctx, batch, l.SourceChain)
		if err != nil {
			l.Errors.Record(l.DirectionKey, l.DirectionKey, err)
			return err
		}
		batch.Signature = sig

		receipt, err := l.submit(ctx, transactOpts, batch)
		if err != nil {
			l.Errors.Record(l.DirectionKey, l.DirectionKey, err)
			return err
		}

		if l.DestIsMain {
			if postErr := l.checkPostMessageError(ctx, receipt); postErr != nil {
				l.Errors.Record(l.DirectionKey, l.DirectionKey, postErr)
				return postErr
			}
		}

		l.Errors.Clear(l.DirectionKey)
		if l.Metrics != nil {
			l.Metrics.RecordBatchSubmitted(l.DirectionKey)
		}
		l.State.Step()
		steps++
		submitted += len(batch.Messages)

		if !l.DestIsMain {
			l.paceSChainSubmission(ctx, receipt)
		}
	}

	return nil
}

func (l *Loop) submit(ctx context.Context, transactOpts *bind.TransactOpts, batch ima.OutgoingBatch) (*ethtypes.Receipt, error) {
	messages := make([]contracts.MessageArg, len(batch.Messages))
	for i, m := range batch.Messages {
		messages[i] = contracts.MessageArg{Sender: m.Sender, DestinationContract: m.DestinationContract, Data: m.Data}
	}
	sigArg := contracts.SignatureArg{
		BLSSignature: batch.Signature.BLSSignature,
		HashA:        batch.Signature.HashA,
		HashB:        batch.Signature.HashB,
		Counter:      batch.Signature.Counter,
	}

	data, err := l.DestProxy.PackPostIncomingMessages(batch.SourceChain, new(big.Int).SetUint64(batch.StartCounter), messages, sigArg)
	if err != nil {
		return nil, err
	}

	contractAddr := l.DestProxy.Address()
	call := callpipeline.Call{
		Contract:            contractAddr,
		CallData:            data,
		IsSChainDestination: !l.DestIsMain,
		MessageCount:        len(batch.Messages),
	}

	result, err := l.Pipeline.Run(ctx, call, transactOpts, func(gasPrice *big.Int, gasLimit uint64, nonce uint64) (*ethtypes.Transaction, error) {
		return ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			To:       &contractAddr,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			Data:     data,
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return result.Receipt, nil
}

// paceSChainSubmission implements spec.md §6's post-submission pacing
// for S-chain destinations: either wait for the destination's block
// number to advance past the submission, or sleep a fixed interval,
// rather than racing a same-block resubmission. Errors are logged and
// otherwise ignored since a failed pace is not a pass failure.
func (l *Loop) paceSChainSubmission(ctx context.Context, receipt *ethtypes.Receipt) {
	if l.Options.WaitForNextBlockOnSChain && receipt != nil && l.Pipeline != nil && l.Pipeline.Client != nil {
		if _, err := l.Pipeline.Client.WaitForNextBlock(ctx, receipt.BlockNumber.Uint64()); err != nil {
			l.Logger.Debug("wait for next block failed", "direction", l.DirectionKey, "error", err)
		}
		return
	}
	if l.Options.SleepBetweenTxOnSChain > 0 {
		timer := time.NewTimer(l.Options.SleepBetweenTxOnSChain)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

// checkPostMessageError implements spec.md §4.9 step 9: scan the
// submission receipt's own logs for a PostMessageError event and fail
// the pass if any appear.
func (l *Loop) checkPostMessageError(ctx context.Context, receipt *ethtypes.Receipt) error {
	if receipt == nil {
		return nil
	}
	event, err := l.DestProxy.EventID("PostMessageError")
	if err != nil {
		return nil
	}
	for _, entry := range receipt.Logs {
		if len(entry.Topics) > 0 && entry.Topics[0] == event.ID {
			return fmt.Errorf("%w: msgCounter/reason in log at block %d", ima.ErrPostMessage, entry.BlockNumber)
		}
	}
	return nil
}
