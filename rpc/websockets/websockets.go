// Package websockets implements the WebSocket Server (spec §4.10):
// connection lifecycle, inactivity TTL, oversized-payload rejection,
// per-IP connection ceilings, and wiring each connection's
// eth_subscribe/eth_unsubscribe calls into the Subscription Engine.
//
// Its struct shape (an http.Handler wrapping an upgrader, address
// fields, and a logger) is grounded on the teacher's
// rpc/websockets_test.go, which exercises a websocketsServer type with
// exactly that shape over httptest.NewServer; this package rebuilds it
// against gorilla/websocket directly rather than the teacher's
// cometbft-RPC-backed pubsub API, since this gateway subscribes
// against the Mirror API poller instead.
package websockets

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cosmossdk.io/log"

	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/metrics"
	"github.com/hashlink-network/eth-rpc-relay/rpc/dispatcher"
	"github.com/hashlink-network/eth-rpc-relay/rpc/subscription"
)

// MaxMessageBytes bounds one inbound WebSocket frame. Exceeding it
// closes the connection (spec §4.10), matching the teacher's
// TestWebsocketPayloadLimit expectation.
const MaxMessageBytes = 1 << 20 // 1 MiB

// inactivityTTL closes a connection that sends nothing — not even a
// ping — for this long.
const inactivityTTL = 5 * time.Minute

// Server upgrades HTTP connections to WebSocket and drives the
// JSON-RPC + subscription protocol over them.
type Server struct {
	cfg        config.Snapshot
	dispatcher *dispatcher.Dispatcher
	subs       *subscription.Engine
	metrics    *metrics.Registry
	logger     log.Logger

	upgrader websocket.Upgrader

	connMu        sync.Mutex
	connsPerIP    map[string]int
	maxConnsPerIP int
}

// New builds a Server. maxConnsPerIP bounds concurrent connections from
// one address; zero disables the ceiling.
func New(cfg config.Snapshot, d *dispatcher.Dispatcher, subs *subscription.Engine, m *metrics.Registry, logger log.Logger, maxConnsPerIP int) *Server {
	return &Server{
		cfg:           cfg,
		dispatcher:    d,
		subs:          subs,
		metrics:       m,
		logger:        logger.With(log.ModuleKey, "websockets"),
		upgrader:      websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		connsPerIP:    make(map[string]int),
		maxConnsPerIP: maxConnsPerIP,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.admit(ip) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release(ip)
		s.logger.Debug("upgrade failed", "err", err)
		return
	}

	connID := uuid.NewString()
	logger := s.logger.With("connection_id", connID, "ip", ip)
	conn.SetReadLimit(MaxMessageBytes)

	subsConn := s.subs.NewConnection(connID)
	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
	}

	defer func() {
		subsConn.Close()
		_ = conn.Close()
		s.release(ip)
		if s.metrics != nil {
			s.metrics.WSConnections.Dec()
		}
		logger.Debug("connection closed")
	}()

	logger.Debug("connection opened")

	done := make(chan struct{})
	go s.writeLoop(conn, subsConn, done, logger)
	s.readLoop(r.Context(), conn, origin(ip, connID), logger)
	close(done)
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, origin dispatcher.Origin, logger log.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(inactivityTTL))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(inactivityTTL))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(inactivityTTL))

		responses := s.dispatcher.Dispatch(ctx, raw, origin)
		for _, resp := range responses {
			payload, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// writeLoop forwards subscription notifications and periodic pings to
// the wire until done closes, the connection breaks, or the
// subscription engine evicts this connection for falling too far
// behind (spec §4.9).
func (s *Server) writeLoop(conn *websocket.Conn, subsConn *subscription.Connection, done <-chan struct{}, logger log.Logger) {
	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-subsConn.Evicted():
			logger.Warn("closing connection: evicted by subscription engine")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "slow consumer"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case n, ok := <-subsConn.Deliveries():
			if !ok {
				return
			}
			payload := encodeNotification(n)
			if payload == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) pingInterval() time.Duration {
	if s.cfg.WSPingInterval > 0 {
		return s.cfg.WSPingInterval
	}
	return 15 * time.Second
}

type subscriptionNotice struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  struct {
		Subscription string `json:"subscription"`
		Result       any    `json:"result"`
	} `json:"params"`
}

func encodeNotification(n subscription.Notification) []byte {
	notice := subscriptionNotice{JSONRPC: "2.0", Method: "eth_subscription"}
	notice.Params.Subscription = n.SubscriptionID
	switch n.Kind {
	case subscription.KindNewHeads:
		notice.Params.Result = n.Head
	case subscription.KindLogs:
		notice.Params.Result = n.Log
	default:
		return nil
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return nil
	}
	return payload
}

func (s *Server) admit(ip string) bool {
	if s.maxConnsPerIP <= 0 {
		return true
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.connsPerIP[ip] >= s.maxConnsPerIP {
		return false
	}
	s.connsPerIP[ip]++
	return true
}

func (s *Server) release(ip string) {
	if s.maxConnsPerIP <= 0 {
		return
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connsPerIP[ip]--
	if s.connsPerIP[ip] <= 0 {
		delete(s.connsPerIP, ip)
	}
}

func origin(ip, connID string) dispatcher.Origin {
	return dispatcher.Origin{IP: ip, IsWebSocket: true, ConnectionID: connID}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
