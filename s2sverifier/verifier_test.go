package s2sverifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/skalenetwork/ima-agent/s2sverifier"
	"github.com/skalenetwork/ima-agent/scanner"
	"github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

type rpcReq struct {
	Method string `json:"method"`
	ID     int    `json:"id"`
}

type matchDecoder struct {
	msg types.Message
}

func (d matchDecoder) DecodeOutgoingMessage(l ethtypes.Log) (scanner.OutgoingMessageEvent, error) {
	return scanner.OutgoingMessageEvent{
		MsgCounter:  d.msg.MsgCounter,
		SrcContract: d.msg.Sender,
		DstContract: d.msg.DestinationContract,
		BlockNumber: l.BlockNumber,
	}, nil
}

func (matchDecoder) DecodeReference(l ethtypes.Log) (scanner.ReferenceEvent, bool, error) {
	return scanner.ReferenceEvent{}, false, nil
}

func nodeReturningOneLog(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		var result interface{}
		if req.Method == "eth_getLogs" {
			result = []map[string]interface{}{{
				"address":          "0x0000000000000000000000000000000000000001",
				"topics":           []string{},
				"data":             "0x",
				"blockNumber":      "0xa",
				"transactionHash":  "0x" + "1111111111111111111111111111111111111111111111111111111111111111",
				"logIndex":         "0x0",
				"transactionIndex": "0x0",
				"blockHash":        "0x" + "2222222222222222222222222222222222222222222222222222222222222222",
				"removed":          false,
			}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func nodeReturningNoLogs(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		var result interface{} = []map[string]interface{}{}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func TestConfirmEmptyRosterPassesThrough(t *testing.T) {
	v := s2sverifier.New(common.HexToAddress("0x1"), common.Hash{}, matchDecoder{}, log.NewNopLogger())
	ok, err := v.Confirm(context.Background(), nil, types.Message{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConfirmReachesQuorumFromFourNodes(t *testing.T) {
	msg := types.Message{MsgCounter: 7, Sender: common.HexToAddress("0xaa"), DestinationContract: common.HexToAddress("0xbb"), SavedBlockNumber: 10}

	confirmSrv := nodeReturningOneLog(t)
	defer confirmSrv.Close()
	denySrv := nodeReturningNoLogs(t)
	defer denySrv.Close()

	roster := []types.Node{
		{Name: "n1", URL: confirmSrv.URL},
		{Name: "n2", URL: confirmSrv.URL},
		{Name: "n3", URL: confirmSrv.URL},
		{Name: "n4", URL: denySrv.URL},
	}

	v := s2sverifier.New(common.HexToAddress("0x1"), common.Hash{}, matchDecoder{msg: msg}, log.NewNopLogger())
	ok, err := v.Confirm(context.Background(), roster, msg)
	require.NoError(t, err)
	require.True(t, ok, "3 of 4 nodes confirm, quorum(4)=3")
}

func TestConfirmFailsWhenQuorumUnreachable(t *testing.T) {
	msg := types.Message{MsgCounter: 7, Sender: common.HexToAddress("0xaa"), DestinationContract: common.HexToAddress("0xbb"), SavedBlockNumber: 10}

	denySrv := nodeReturningNoLogs(t)
	defer denySrv.Close()

	roster := []types.Node{
		{Name: "n1", URL: denySrv.URL},
		{Name: "n2", URL: denySrv.URL},
		{Name: "n3", URL: denySrv.URL},
		{Name: "n4", URL: denySrv.URL},
	}

	v := s2sverifier.New(common.HexToAddress("0x1"), common.Hash{}, matchDecoder{msg: msg}, log.NewNopLogger())
	ok, err := v.Confirm(context.Background(), roster, msg)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyBatchTruncatesAtFirstFailure(t *testing.T) {
	okMsg := types.Message{MsgCounter: 1, Sender: common.HexToAddress("0xaa"), DestinationContract: common.HexToAddress("0xbb"), SavedBlockNumber: 10}
	badMsg := types.Message{MsgCounter: 2, Sender: common.HexToAddress("0xcc"), DestinationContract: common.HexToAddress("0xdd"), SavedBlockNumber: 11}

	confirmSrv := nodeReturningOneLog(t)
	defer confirmSrv.Close()

	roster := []types.Node{{Name: "n1", URL: confirmSrv.URL}}

	v := s2sverifier.New(common.HexToAddress("0x1"), common.Hash{}, matchDecoder{msg: okMsg}, log.NewNopLogger())
	batch := types.OutgoingBatch{Messages: []types.Message{okMsg, badMsg}}

	out, err := v.VerifyBatch(context.Background(), roster, batch)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1, "badMsg never matches the stub decoder's fixed okMsg shape")
}
