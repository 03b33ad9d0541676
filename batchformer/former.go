// Package batchformer implements the Batch Former (spec.md §4.7):
// reads source outgoing/incoming counters, scans for each missing
// message, enforces block-depth and block-age security checks, and
// assembles a bounded batch, grounded on cmd/process.go's
// counter-then-filter pipeline shape.
package batchformer

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/scanner"
	ima "github.com/skalenetwork/ima-agent/types"
)

const defaultBatchSize = 5

// SecurityChecks are the optional per-message gates (spec.md §4.7
// step 3). Depth/Age of zero disables the respective check.
type SecurityChecks struct {
	BlockAwaitDepth uint64
	BlockAge        time.Duration
}

// CounterReader exposes the proxy's outgoing/incoming counters.
type CounterReader interface {
	OutgoingCounter(ctx context.Context, destChain string) (uint64, error)
	IncomingCounter(ctx context.Context, srcChain string) (uint64, error)
}

// Former assembles batches for one (source,destination) direction.
type Former struct {
	Client    *rpcclient.Client
	Scanner   *scanner.Scanner
	Counters  CounterReader
	BatchSize int
	Checks    SecurityChecks
	Logger    log.Logger

	// LiveFollower, when set, is consulted before Progressive's
	// poll-and-getLogs loop: a websocket subscription (spec.md §4.2)
	// may already have the message buffered, saving a round trip.
	LiveFollower *scanner.LiveFollower
}

func New(client *rpcclient.Client, s *scanner.Scanner, counters CounterReader, checks SecurityChecks, logger log.Logger) *Former {
	return &Former{Client: client, Scanner: s, Counters: counters, BatchSize: defaultBatchSize, Checks: checks, Logger: logger}
}

// Form runs one pass of §4.7 for the given source/destination chain
// names. An empty batch (no error) means there is nothing to submit
// this pass.
func (f *Former) Form(ctx context.Context, srcChain, destChain string) (ima.OutgoingBatch, error) {
	outCnt, err := f.Counters.OutgoingCounter(ctx, destChain)
	if err != nil {
		return ima.OutgoingBatch{}, fmt.Errorf("%w: outgoing counter: %w", ima.ErrRPCExhausted, err)
	}
	inCnt, err := f.Counters.IncomingCounter(ctx, srcChain)
	if err != nil {
		return ima.OutgoingBatch{}, fmt.Errorf("%w: incoming counter: %w", ima.ErrRPCExhausted, err)
	}
	if inCnt >= outCnt {
		return ima.OutgoingBatch{}, nil
	}

	latest, err := f.Client.GetBlockNumber(ctx, rpcclient.DefaultOptions(3))
	if err != nil {
		return ima.OutgoingBatch{}, fmt.Errorf("%w: %w", ima.ErrRPCExhausted, err)
	}

	bound := inCnt + uint64(f.BatchSize)
	if bound > outCnt {
		bound = outCnt
	}

	refBlocks, refOK, err := f.Scanner.WalkBackByReference(ctx, latest, inCnt, bound)
	if err != nil {
		f.Logger.Debug("walk-back-by-reference failed, falling back", "error", err)
		refOK = false
	}

	var messages []ima.Message
	for counter := inCnt; counter < bound; counter++ {
		msg, found, err := f.findMessage(ctx, counter, refOK, refBlocks, destChain, latest)
		if err != nil {
			return ima.OutgoingBatch{}, err
		}
		if !found {
			break
		}

		if blocked, checkErr := f.securityCheck(latest, msg); blocked {
			break
		} else if checkErr != nil {
			return ima.OutgoingBatch{}, checkErr
		}

		messages = append(messages, msg)
	}

	if len(messages) == 0 {
		return ima.OutgoingBatch{}, nil
	}

	return ima.OutgoingBatch{
		SourceChain:  srcChain,
		DestChain:    destChain,
		StartCounter: inCnt,
		Messages:     messages,
	}, nil
}

func (f *Former) findMessage(ctx context.Context, counter uint64, refOK bool, refBlocks map[uint64]uint64, destChain string, latest uint64) (ima.Message, bool, error) {
	var events []scanner.OutgoingMessageEvent
	var err error

	if refOK {
		if block, ok := refBlocks[counter]; ok {
			events, _, err = f.Scanner.Iterative(ctx, block, block)
		}
	}
	if len(events) == 0 && f.LiveFollower != nil {
		events = f.LiveFollower.Events()
	}
	if len(events) == 0 {
		events, _, err = f.Scanner.Progressive(ctx, latest)
	}
	if err != nil {
		return ima.Message{}, false, err
	}

	// Tie-break: newest matching event wins (spec.md §4.7's
	// "prevents replay of superseded logs in unlikely reorg").
	var best *scanner.OutgoingMessageEvent
	for i := range events {
		ev := events[i]
		if ev.MsgCounter != counter {
			continue
		}
		if best == nil || ev.BlockNumber >= best.BlockNumber {
			best = &events[i]
		}
	}
	if best == nil {
		return ima.Message{}, false, nil
	}

	return ima.Message{
		Sender:              best.SrcContract,
		DestinationContract: best.DstContract,
		Data:                best.Data,
		SavedBlockNumber:    best.BlockNumber,
		MsgCounter:          best.MsgCounter,
	}, true, nil
}

// securityCheck returns blocked=true when a check fails (stop forming
// further messages, submit what was already formed).
func (f *Former) securityCheck(latest uint64, msg ima.Message) (bool, error) {
	if f.Checks.BlockAwaitDepth > 0 {
		if latest < msg.SavedBlockNumber || latest-msg.SavedBlockNumber < f.Checks.BlockAwaitDepth {
			return true, nil
		}
	}
	if f.Checks.BlockAge > 0 {
		blockTime, err := f.Client.GetBlock(context.Background(), msg.SavedBlockNumber, rpcclient.DefaultOptions(3))
		if err != nil {
			return false, fmt.Errorf("%w: %w", ima.ErrBlockAge, err)
		}
		age := time.Since(time.Unix(int64(blockTime.Time), 0))
		if age < f.Checks.BlockAge {
			return true, nil
		}
	}
	return false, nil
}
