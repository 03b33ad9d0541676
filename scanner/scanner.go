// Package scanner implements the Event Scanner: progressive and
// iterative historical log scans with an optional walk-back-by-reference
// optimization, grounded on ethereum/listener.go's chunked history
// queries.
package scanner

import (
	"context"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pascaldekloe/etherstream"
	"github.com/skalenetwork/ima-agent/rpcclient"
)

const (
	// defaultWindow is the block-count width of one Iterative window,
	// the default for Scanner.Window (spec.md §6's
	// countOfBlocksInIterativeStep).
	defaultWindow = uint64(1000)
	// maxWindows bounds how many windows Iterative will issue before
	// falling through to a single full-range query, the default for
	// Scanner.MaxWindows (spec.md §6's maxIterationsInAllRange).
	maxWindows = uint64(5000)
	// blocksPerMinute approximates SKALE's ~6 blocks/minute cadence,
	// used only to size Progressive's look-back windows.
	blocksPerMinute = uint64(6)
)

var progressiveLookbacks = []uint64{
	blocksPerMinute * 60 * 24,       // 1 day
	blocksPerMinute * 60 * 24 * 7,   // 1 week
	blocksPerMinute * 60 * 24 * 30,  // 1 month
	blocksPerMinute * 60 * 24 * 365, // 1 year
	blocksPerMinute * 60 * 24 * 365 * 3,
}

// OutgoingMessageEvent is one decoded OutgoingMessage log (spec.md §6).
type OutgoingMessageEvent struct {
	DstChainHash common.Hash
	MsgCounter   uint64
	SrcContract  common.Address
	DstContract  common.Address
	Data         []byte
	BlockNumber  uint64
	TxHash       common.Hash
}

// ReferenceEvent is one decoded PreviousMessageReference log.
type ReferenceEvent struct {
	CurrentMessage               uint64
	PreviousOutgoingMessageBlock uint64
	BlockNumber                  uint64
}

// Decoder turns a raw log into the scanner's typed events. Supplied by
// the caller (the contracts package owns the ABI).
type Decoder interface {
	DecodeOutgoingMessage(log ethtypes.Log) (OutgoingMessageEvent, error)
	DecodeReference(log ethtypes.Log) (ReferenceEvent, bool, error)
}

// Scanner scans one source chain's message-proxy logs for a single
// destination, identified by its dstChainHash topic.
type Scanner struct {
	Client       *rpcclient.Client
	Contract     common.Address
	DstChainHash common.Hash
	Decoder      Decoder

	// Window and MaxWindows default to defaultWindow/maxWindows but are
	// selectable per spec.md §4.2/§6 via
	// countOfBlocksInIterativeStep/maxIterationsInAllRange.
	Window     uint64
	MaxWindows uint64
}

func New(client *rpcclient.Client, contract common.Address, dstChainHash common.Hash, decoder Decoder) *Scanner {
	return &Scanner{
		Client:       client,
		Contract:     contract,
		DstChainHash: dstChainHash,
		Decoder:      decoder,
		Window:       defaultWindow,
		MaxWindows:   maxWindows,
	}
}

func (s *Scanner) filterQuery(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{s.Contract},
		Topics:    [][]common.Hash{nil, {s.DstChainHash}},
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
	}
}

func (s *Scanner) decodeAll(logs []ethtypes.Log) []OutgoingMessageEvent {
	out := make([]OutgoingMessageEvent, 0, len(logs))
	for _, l := range logs {
		ev, err := s.Decoder.DecodeOutgoingMessage(l)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Iterative splits [from, to] into windows of Window blocks and
// queries each in turn. A window-level error is absorbed and scanning
// moves on to the next window (spec.md §4.2.1). If the range would
// require more than MaxWindows windows, it falls through to a single
// full-range query instead.
func (s *Scanner) Iterative(ctx context.Context, from, to uint64) ([]OutgoingMessageEvent, uint64, error) {
	window := s.Window
	if window == 0 {
		window = defaultWindow
	}
	maxWin := s.MaxWindows
	if maxWin == 0 {
		maxWin = maxWindows
	}
	if window == 0 || to < from {
		return s.singleWindow(ctx, from, to)
	}

	span := to - from + 1
	windows := span / window
	if span%window != 0 {
		windows++
	}
	if windows > maxWin {
		return s.singleWindow(ctx, from, to)
	}

	var all []OutgoingMessageEvent
	lastObserved := from
	for start := from; start <= to; start += window {
		end := start + window - 1
		if end > to {
			end = to
		}

		logs, err := s.Client.GetLogs(ctx, s.filterQuery(start, end), rpcclient.DefaultOptions(3))
		if err != nil {
			continue
		}
		all = append(all, s.decodeAll(logs)...)
		lastObserved = end
	}
	return all, lastObserved, nil
}

func (s *Scanner) singleWindow(ctx context.Context, from, to uint64) ([]OutgoingMessageEvent, uint64, error) {
	logs, err := s.Client.GetLogs(ctx, s.filterQuery(from, to), rpcclient.DefaultOptions(3))
	if err != nil {
		return nil, from, err
	}
	return s.decodeAll(logs), to, nil
}

// Progressive tries progressively larger look-back windows centered on
// latest, returning the first window that yields any hits, then the
// full range if none do (spec.md §4.2.2). Only meaningful for the
// full-range query (from=0).
func (s *Scanner) Progressive(ctx context.Context, latest uint64) ([]OutgoingMessageEvent, uint64, error) {
	for _, lookback := range progressiveLookbacks {
		from := uint64(0)
		if latest > lookback {
			from = latest - lookback
		}
		events, _, err := s.singleWindow(ctx, from, latest)
		if err != nil {
			continue
		}
		if len(events) > 0 {
			return events, latest, nil
		}
	}
	return s.Iterative(ctx, 0, latest)
}

// WalkBackByReference starts from the newest outgoing message's block
// and walks the PreviousMessageReference chain backward, producing one
// exact block number per message in [fromCounter, toCounter) (spec.md
// §4.2.3). Returns ok=false when the reference chain is absent
// (pre-reference-log contracts), signalling the caller to fall back
// to Iterative.
func (s *Scanner) WalkBackByReference(ctx context.Context, newestBlock uint64, fromCounter, toCounter uint64) (map[uint64]uint64, bool, error) {
	blocksByCounter := map[uint64]uint64{}
	if toCounter <= fromCounter {
		return blocksByCounter, true, nil
	}

	currentBlock := newestBlock
	remaining := toCounter - fromCounter

	for remaining > 0 {
		logs, err := s.Client.GetLogs(ctx, ethereum.FilterQuery{
			Addresses: []common.Address{s.Contract},
			FromBlock: new(big.Int).SetUint64(currentBlock),
			ToBlock:   new(big.Int).SetUint64(currentBlock),
		}, rpcclient.DefaultOptions(3))
		if err != nil {
			return nil, false, err
		}

		found := false
		for _, l := range logs {
			ref, ok, err := s.Decoder.DecodeReference(l)
			if err != nil || !ok {
				continue
			}
			blocksByCounter[ref.CurrentMessage] = currentBlock
			currentBlock = ref.PreviousOutgoingMessageBlock
			found = true
			remaining--
			break
		}
		if !found {
			if len(blocksByCounter) == 0 {
				return nil, false, nil
			}
			break
		}
		if currentBlock == 0 {
			break
		}
	}

	return blocksByCounter, true, nil
}

// LiveFollower accumulates OutgoingMessage events observed over a
// websocket subscription, serving as an optional fast path ahead of
// Iterative/Progressive's poll-and-getLogs loop (spec.md §4.2). It is
// unrelated to the waitForNextBlockOnSChain option. Safe for
// concurrent use.
type LiveFollower struct {
	mu     sync.Mutex
	events []OutgoingMessageEvent
}

func NewLiveFollower() *LiveFollower {
	return &LiveFollower{}
}

func (f *LiveFollower) record(ev OutgoingMessageEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

// Events returns a snapshot of every event observed so far.
func (f *LiveFollower) Events() []OutgoingMessageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OutgoingMessageEvent, len(f.events))
	copy(out, f.events)
	return out
}

// Run subscribes to the scanner's OutgoingMessage logs over backend (a
// websocket-dialed bind.ContractBackend) from block from onward,
// feeding every observed event into follower, until ctx is cancelled
// or the subscription drops. Grounded on
// github.com/pascaldekloe/etherstream's atomic history+subscribe call,
// the same one the teacher's ethereum/listener.go queryAndConsume
// uses to avoid the gap a plain getLogs-then-subscribe sequence has
// between the history snapshot and the subscription's start.
func (s *Scanner) Run(ctx context.Context, backend bind.ContractBackend, from uint64, follower *LiveFollower) error {
	query := s.filterQuery(from, 0)
	query.ToBlock = nil

	reader := etherstream.Reader{Backend: backend}
	stream, sub, history, err := reader.QueryWithHistory(ctx, &query)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for _, l := range history {
		if ev, decErr := s.Decoder.DecodeOutgoingMessage(l); decErr == nil {
			follower.record(ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case l := <-stream:
			if ev, decErr := s.Decoder.DecodeOutgoingMessage(l); decErr == nil {
				follower.record(ev)
			}
		}
	}
}
