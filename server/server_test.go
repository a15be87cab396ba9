package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/rpc/dispatcher"
	"github.com/hashlink-network/eth-rpc-relay/rpc/registry"
	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
)

func newTestDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	table := registry.New()
	table.Register(registry.Method{
		Name:            "test_echo",
		ReadOnlyAllowed: true,
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return params[0], nil
		},
	})
	return dispatcher.New(config.Snapshot{BatchRequestsMaxSize: 10}, table, log.NewNopLogger(), nil)
}

func TestJSONRPCHandlerSingleRequestReturnsObject(t *testing.T) {
	h := jsonRPCHandler(newTestDispatcher(t))
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"test_echo","params":["hi"]}`))
	rec := httptest.NewRecorder()
	h(rec, req)

	var resp dispatcher.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hi", resp.Result)
}

func TestJSONRPCHandlerBatchReturnsArrayEvenForSingleItem(t *testing.T) {
	h := jsonRPCHandler(newTestDispatcher(t))
	req := httptest.NewRequest("POST", "/", strings.NewReader(`[{"jsonrpc":"2.0","id":1,"method":"test_echo","params":["hi"]}]`))
	rec := httptest.NewRecorder()
	h(rec, req)

	var resp []dispatcher.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	req := httptest.NewRequest("GET", "/health/liveness", nil)
	rec := httptest.NewRecorder()
	livenessHandler(rec, req)
	require.Equal(t, 200, rec.Code)
}

func TestReadinessHandlerReflectsReadyFunc(t *testing.T) {
	req := httptest.NewRequest("GET", "/health/readiness", nil)

	rec := httptest.NewRecorder()
	readinessHandler(func() bool { return true })(rec, req)
	require.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	readinessHandler(func() bool { return false })(rec, req)
	require.Equal(t, 503, rec.Code)
}

func TestIsBatchRequest(t *testing.T) {
	require.True(t, isBatchRequest([]byte("  [1,2]")))
	require.False(t, isBatchRequest([]byte(`{"a":1}`)))
}
