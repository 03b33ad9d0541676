// Package s2sverifier implements the S->S Verifier (spec.md §4.8): for
// an S-chain source, each message is independently re-confirmed against
// a quorum of the source chain's own node roster before it is trusted
// for submission to the destination. New: the teacher has no
// multi-node confirmation step of its own; the quorum arithmetic and
// short-circuit shape below follow spec.md §4.8 directly, reusing the
// scanner package's per-node log query rather than introducing a
// parallel implementation.
package s2sverifier

import (
	"context"
	"sync"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/scanner"
	ima "github.com/skalenetwork/ima-agent/types"
)

// Verifier confirms OutgoingMessage events against a source S-chain's
// node roster.
type Verifier struct {
	Contract     common.Address
	DstChainHash common.Hash
	Decoder      scanner.Decoder
	Logger       log.Logger
}

func New(contract common.Address, dstChainHash common.Hash, decoder scanner.Decoder, logger log.Logger) *Verifier {
	return &Verifier{Contract: contract, DstChainHash: dstChainHash, Decoder: decoder, Logger: logger}
}

// Confirm queries every node of roster in parallel and short-circuits
// as soon as either outcome is decided: pass >= quorum(n), or
// fail > n-quorum(n) (quorum can no longer be reached). An empty
// roster means the source chain runs no independent witnesses, so the
// message is trusted as-is.
func (v *Verifier) Confirm(ctx context.Context, roster []ima.Node, msg ima.Message) (bool, error) {
	n := len(roster)
	if n == 0 {
		return true, nil
	}
	need := ima.Quorum(n)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan bool, n)
	var wg sync.WaitGroup
	for _, node := range roster {
		wg.Add(1)
		go func(node ima.Node) {
			defer wg.Done()
			results <- v.confirmOnNode(ctx, node, msg)
		}(node)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pass, fail := 0, 0
	for ok := range results {
		if ok {
			pass++
		} else {
			fail++
		}
		if pass >= need {
			return true, nil
		}
		if fail > n-need {
			return false, nil
		}
	}
	return pass >= need, nil
}

func (v *Verifier) confirmOnNode(ctx context.Context, node ima.Node, msg ima.Message) bool {
	endpoint := ima.ChainEndpoint{Name: node.Name, RPCURL: node.URL}
	client := rpcclient.New(endpoint, v.Logger)
	s := scanner.New(client, v.Contract, v.DstChainHash, v.Decoder)

	events, _, err := s.Iterative(ctx, msg.SavedBlockNumber, msg.SavedBlockNumber)
	if err != nil {
		v.Logger.Debug("s2s confirmation query failed", "node", node.Name, "error", err)
		return false
	}
	for _, ev := range events {
		if ev.MsgCounter == msg.MsgCounter && ev.SrcContract == msg.Sender && ev.DstContract == msg.DestinationContract {
			return true
		}
	}
	return false
}

// VerifyBatch confirms each message of a batch in order, truncating at
// the first message that fails quorum so only a confirmed, contiguous
// prefix is ever submitted.
func (v *Verifier) VerifyBatch(ctx context.Context, roster []ima.Node, batch ima.OutgoingBatch) (ima.OutgoingBatch, error) {
	confirmed := make([]ima.Message, 0, len(batch.Messages))
	for _, msg := range batch.Messages {
		ok, err := v.Confirm(ctx, roster, msg)
		if err != nil {
			return ima.OutgoingBatch{}, err
		}
		if !ok {
			break
		}
		confirmed = append(confirmed, msg)
	}

	batch.Messages = confirmed
	return batch, nil
}
