package types_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

func TestEncodeForSigningDeterministic(t *testing.T) {
	messages := []types.Message{
		{
			Sender:              common.HexToAddress("0x1111111111111111111111111111111111111111"),
			DestinationContract: common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Data:                []byte("payload-one"),
		},
		{
			Sender:              common.HexToAddress("0x3333333333333333333333333333333333333333"),
			DestinationContract: common.HexToAddress("0x4444444444444444444444444444444444444444"),
			Data:                []byte("payload-two"),
		},
	}

	hashA := types.EncodeForSigning(messages)
	hashB := types.EncodeForSigning(messages)
	require.Equal(t, hashA, hashB, "encoding must be deterministic for the same batch")
	require.Len(t, hashA, 32)

	reordered := []types.Message{messages[1], messages[0]}
	require.NotEqual(t, hashA, types.EncodeForSigning(reordered), "message order is part of the digest")
}

func TestQuorumTable(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 4: 3, 16: 11}
	for n, want := range cases {
		require.Equal(t, want, types.Quorum(n), "quorum for %d nodes", n)
	}
	require.Equal(t, 4, types.Quorum(5), "falls back to ceil(2n/3) outside the named table")
}
