package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/skalenetwork/ima-agent/api"
	ima "github.com/skalenetwork/ima-agent/types"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer() *api.Server {
	state := &ima.TransferLoopState{}
	state.Begin()
	state.Step()

	errs := ima.NewErrorRegistry()

	return api.New([]api.Direction{
		{Key: "mainnet->schain-a", State: state, Errors: errs},
	}, log.NewNopLogger())
}

func TestGetStatusListsAllDirections(t *testing.T) {
	router := newServer().Router()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "mainnet->schain-a", out[0]["direction"])
}

func TestGetDirectionStatusReturns404ForUnknownDirection(t *testing.T) {
	router := newServer().Router()

	req := httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDirectionStatusFindsConfiguredDirection(t *testing.T) {
	router := newServer().Router()

	req := httptest.NewRequest(http.MethodGet, "/status/mainnet->schain-a", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
