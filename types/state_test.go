package types_test

import (
	"errors"
	"testing"

	"github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

func TestTransferLoopStateSingleInFlight(t *testing.T) {
	state := &types.TransferLoopState{}

	serial, ok := state.Begin()
	require.True(t, ok)
	require.Equal(t, uint64(1), serial)

	_, ok = state.Begin()
	require.False(t, ok, "a second Begin while a pass is in flight must fail")

	state.Step()
	state.Step()
	state.End()

	snap := state.Snapshot()
	require.False(t, snap.IsInProgress)
	require.Equal(t, 2, snap.StepsDone)

	serial, ok = state.Begin()
	require.True(t, ok)
	require.Equal(t, uint64(2), serial, "serial increments across passes")
}

func TestErrorRegistryBoundedRing(t *testing.T) {
	reg := types.NewErrorRegistry()

	for i := 0; i < 25; i++ {
		reg.Record("rpc", "m-to-s", errors.New("boom"))
	}

	recent := reg.Recent("rpc")
	require.Len(t, recent, 20, "registry must drop the oldest entries past the bound")
	require.Empty(t, reg.Recent("unknown-category"))
}

func TestErrorRegistryCategories(t *testing.T) {
	reg := types.NewErrorRegistry()
	reg.Record("rpc", "m-to-s", errors.New("a"))
	reg.Record("signer", "s-to-m", errors.New("b"))

	cats := reg.Categories()
	require.ElementsMatch(t, []string{"rpc", "signer"}, cats)
}

func TestErrorRegistryClearDropsCategory(t *testing.T) {
	reg := types.NewErrorRegistry()
	reg.Record("rpc", "m-to-s", errors.New("a"))
	require.NotEmpty(t, reg.Recent("rpc"))

	reg.Clear("rpc")
	require.Empty(t, reg.Recent("rpc"))
	require.NotContains(t, reg.Categories(), "rpc")

	reg.Clear("never-recorded")
}
