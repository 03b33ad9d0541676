package signer_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/signer"
	ima "github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

func TestLocalKeySignProducesValidSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	privHex := common.Bytes2Hex(crypto.FromECDSA(key))

	chainID := big.NewInt(1337)
	local, err := signer.NewLocalKey(privHex, chainID)
	require.NoError(t, err)
	require.False(t, local.IsAutoSend())

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &common.Address{},
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	signed, err := local.Sign(context.Background(), nil, tx)
	require.NoError(t, err)
	require.NotNil(t, signed.Tx)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed.Tx)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)
}

func TestQueueManagerIsAutoSend(t *testing.T) {
	var statusCalls int
	var rpcReq struct {
		Method string `json:"method"`
		ID     int    `json:"id"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/enqueue":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "queue-item-1"})
		case r.URL.Path == "/status/queue-item-1":
			statusCalls++
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS", "txHash": "0x" + strings.Repeat("ab", 32)})
		default:
			_ = json.NewDecoder(r.Body).Decode(&rpcReq)
			receipt := map[string]interface{}{
				"transactionHash":   "0x" + strings.Repeat("ab", 32),
				"status":            "0x1",
				"gasUsed":           "0x5208",
				"blockNumber":       "0x1",
				"cumulativeGasUsed": "0x5208",
				"logs":              []interface{}{},
				"logsBloom":         "0x" + strings.Repeat("00", 256),
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": rpcReq.ID, "result": receipt})
		}
	}))
	defer srv.Close()

	rpc := rpcclient.New(ima.ChainEndpoint{Name: "test", RPCURL: srv.URL}, log.NewNopLogger())
	q := signer.NewQueueManager(signer.QueueManagerConfig{
		URL:          srv.URL,
		Address:      common.HexToAddress("0x1"),
		RPC:          rpc,
		PollInterval: 10 * time.Millisecond,
	})
	require.True(t, q.IsAutoSend())

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, To: &common.Address{}, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := q.Sign(context.Background(), nil, tx)
	require.NoError(t, err)
	require.NotNil(t, signed.Tx)
	require.NotNil(t, signed.Receipt)
	require.GreaterOrEqual(t, statusCalls, 1)
}
