package scanner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/scanner"
	"github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

type stubDecoder struct{}

func (stubDecoder) DecodeOutgoingMessage(l ethtypes.Log) (scanner.OutgoingMessageEvent, error) {
	return scanner.OutgoingMessageEvent{
		MsgCounter:  l.BlockNumber,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}, nil
}

func (stubDecoder) DecodeReference(l ethtypes.Log) (scanner.ReferenceEvent, bool, error) {
	return scanner.ReferenceEvent{}, false, nil
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     int               `json:"id"`
}

// logsAtBlock520 returns one synthetic log whenever a getLogs query is
// asked for a window, to exercise Iterative's cross-window aggregation.
func logsAtBlock520(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_getLogs":
			resp := map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result": []map[string]interface{}{
					{
						"address":     "0x0000000000000000000000000000000000000001",
						"topics":      []string{},
						"data":        "0x",
						"blockNumber": "0x208",
						"transactionHash": "0x" + "11" +
							strings.Repeat("22", 31),
						"logIndex":         "0x0",
						"transactionIndex": "0x0",
						"blockHash":        "0x" + strings.Repeat("33", 32),
						"removed":          false,
					},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": nil})
		}
	}))
}

func TestIterativeAggregatesAcrossWindows(t *testing.T) {
	srv := logsAtBlock520(t)
	defer srv.Close()

	endpoint := types.ChainEndpoint{Name: "test", RPCURL: srv.URL}
	client := rpcclient.New(endpoint, log.NewNopLogger())
	s := scanner.New(client, common.HexToAddress("0x1"), common.Hash{}, stubDecoder{})

	events, lastObserved, err := s.Iterative(context.Background(), 0, 2500)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, uint64(2500), lastObserved)
}

func TestProgressiveReturnsFirstLookbackWithHits(t *testing.T) {
	srv := logsAtBlock520(t)
	defer srv.Close()

	endpoint := types.ChainEndpoint{Name: "test", RPCURL: srv.URL}
	client := rpcclient.New(endpoint, log.NewNopLogger())
	s := scanner.New(client, common.HexToAddress("0x1"), common.Hash{}, stubDecoder{})

	events, _, err := s.Progressive(context.Background(), 1000)
	require.NoError(t, err)
	require.NotEmpty(t, events, "the 1-day lookback window should already find the synthetic event")
}

func TestWalkBackByReferenceAbsentFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": []map[string]interface{}{}})
	}))
	defer srv.Close()

	endpoint := types.ChainEndpoint{Name: "test", RPCURL: srv.URL}
	client := rpcclient.New(endpoint, log.NewNopLogger())
	s := scanner.New(client, common.HexToAddress("0x1"), common.Hash{}, stubDecoder{})

	_, ok, err := s.WalkBackByReference(context.Background(), 1000, 0, 5)
	require.NoError(t, err)
	require.False(t, ok, "no reference logs observed must signal fallback to Iterative")
}
