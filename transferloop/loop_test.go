package transferloop_test

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/skalenetwork/ima-agent/batchformer"
	"github.com/skalenetwork/ima-agent/coordinator"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/scanner"
	"github.com/skalenetwork/ima-agent/transferloop"
	"github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

type fakeCounters struct {
	out uint64
	in  uint64
}

func (f fakeCounters) OutgoingCounter(ctx context.Context, destChain string) (uint64, error) {
	return f.out, nil
}
func (f fakeCounters) IncomingCounter(ctx context.Context, srcChain string) (uint64, error) {
	return f.in, nil
}

type noopDecoder struct{}

func (noopDecoder) DecodeOutgoingMessage(l ethtypes.Log) (scanner.OutgoingMessageEvent, error) {
	return scanner.OutgoingMessageEvent{}, nil
}
func (noopDecoder) DecodeReference(l ethtypes.Log) (scanner.ReferenceEvent, bool, error) {
	return scanner.ReferenceEvent{}, false, nil
}

func newIdleLoop(t *testing.T, c coordinator.Coordinator) *transferloop.Loop {
	t.Helper()
	client := rpcclient.New(types.ChainEndpoint{Name: "dest", RPCURL: "http://127.0.0.1:1"}, log.NewNopLogger())
	s := scanner.New(client, common.HexToAddress("0x1"), common.Hash{}, noopDecoder{})
	former := batchformer.New(client, s, fakeCounters{out: 3, in: 3}, batchformer.SecurityChecks{}, log.NewNopLogger())

	return &transferloop.Loop{
		DirectionKey: "mainnet->schain-a",
		SourceChain:  "mainnet",
		DestChain:    "schain-a",
		Former:       former,
		Coordinator:  c,
		State:        &types.TransferLoopState{},
		Errors:       types.NewErrorRegistry(),
		Options:      transferloop.DefaultOptions(),
		Logger:       log.NewNopLogger(),
	}
}

func TestRunReturnsImmediatelyWhenCoordinatorDenies(t *testing.T) {
	c := coordinator.New()
	c.NotifyStart("mainnet->schain-a")

	loop := newIdleLoop(t, c)
	err := loop.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, loop.State.Snapshot().StepsDone)
}

func TestRunCompletesNoOpPassWhenNothingToDo(t *testing.T) {
	c := coordinator.New()
	loop := newIdleLoop(t, c)

	err := loop.Run(context.Background(), nil)
	require.NoError(t, err)

	snapshot := loop.State.Snapshot()
	require.False(t, snapshot.IsInProgress)
	require.Equal(t, 0, snapshot.StepsDone)
	require.True(t, c.CheckStart("mainnet->schain-a"), "coordinator must release the key after the pass ends")
}
