package sigcollector_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/skalenetwork/ima-agent/sigcollector"
	"github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

func TestHTTPCollectorSignsOnceReady(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls < 2 {
			_, _ = w.Write([]byte(`{"ready":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"ready":true,"blsSignature":["1","2"],"hashA":"3","hashB":"4","counter":"5"}`))
	}))
	defer srv.Close()

	c := sigcollector.NewHTTPCollector(srv.URL, log.NewNopLogger())
	c.PollInterval = 5 * time.Millisecond
	c.MaxWait = time.Second

	batch := types.OutgoingBatch{StartCounter: 5, Messages: []types.Message{{}}}
	sig, err := c.Sign(context.Background(), batch, "source-chain")
	require.NoError(t, err)
	require.Equal(t, "5", sig.Counter)
	require.GreaterOrEqual(t, calls, 2)
}

func TestHTTPCollectorTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ready":false}`))
	}))
	defer srv.Close()

	c := sigcollector.NewHTTPCollector(srv.URL, log.NewNopLogger())
	c.PollInterval = 5 * time.Millisecond
	c.MaxWait = 20 * time.Millisecond

	_, err := c.Sign(context.Background(), types.OutgoingBatch{}, "source-chain")
	require.Error(t, err)
}

func TestStubReturnsZeroSignature(t *testing.T) {
	s := sigcollector.Stub{Logger: log.NewNopLogger()}
	sig, err := s.Sign(context.Background(), types.OutgoingBatch{}, "source-chain")
	require.NoError(t, err)
	require.Equal(t, types.ZeroSignature(), sig)
}
