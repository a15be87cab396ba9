package websockets

import (
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
	"github.com/hashlink-network/eth-rpc-relay/rpc/dispatcher"
	"github.com/hashlink-network/eth-rpc-relay/rpc/registry"
	"github.com/hashlink-network/eth-rpc-relay/rpc/subscription"
)

func newTestServer(t *testing.T, maxConnsPerIP int) *Server {
	t.Helper()
	cfg := config.Snapshot{BatchRequestsMaxSize: 10, WSBatchRequestsEnabled: true}
	table := registry.New()
	d := dispatcher.New(cfg, table, log.NewNopLogger(), nil)
	subs := subscription.New(cfg, mirror.NewFake(), log.NewNopLogger(), time.Hour, nil)
	return New(cfg, d, subs, nil, log.NewNopLogger(), maxConnsPerIP)
}

func dialTestServer(t *testing.T, srv *Server) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv)
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	u.Scheme = "ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	return conn, ts
}

func TestWebsocketPayloadLimit(t *testing.T) {
	srv := newTestServer(t, 0)
	conn, ts := dialTestServer(t, srv)
	defer ts.Close()
	defer conn.Close()

	oversized := make([]byte, 2<<20)
	_ = conn.WriteMessage(websocket.TextMessage, oversized)

	_, _, readErr := conn.ReadMessage()
	require.Error(t, readErr, "expected connection to close on oversized message")
}

func TestWebsocketConnectionCeilingPerIP(t *testing.T) {
	srv := newTestServer(t, 1)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	u.Scheme = "ws"

	conn1, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn1.Close()

	_, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, 429, resp.StatusCode)
	}
}
