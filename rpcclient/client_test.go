package rpcclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"cosmossdk.io/log"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

type rpcReq struct {
	Method string `json:"method"`
	ID     int    `json:"id"`
}

func jsonRPCServer(t *testing.T, result string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + strconv.Itoa(req.ID) + `,"result":"` + result + `"}`))
	}))
}

func TestGetBlockNumberSuccess(t *testing.T) {
	srv := jsonRPCServer(t, "0x2a")
	defer srv.Close()

	endpoint := types.ChainEndpoint{Name: "test", RPCURL: srv.URL}
	client := rpcclient.New(endpoint, log.NewNopLogger())

	n, err := client.GetBlockNumber(context.Background(), rpcclient.DefaultOptions(1))
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)
}

func TestGetBlockNumberExhaustsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	endpoint := types.ChainEndpoint{Name: "test", RPCURL: srv.URL}
	client := rpcclient.New(endpoint, log.NewNopLogger())

	_, err := client.GetBlockNumber(context.Background(), rpcclient.Options{Attempts: 2})
	require.Error(t, err)
}

func TestDefaultOptionsThrowsIfServerOffline(t *testing.T) {
	opts := rpcclient.DefaultOptions(3)
	require.True(t, opts.ThrowIfServerOffline)
	require.Equal(t, 3, opts.Attempts)
}
