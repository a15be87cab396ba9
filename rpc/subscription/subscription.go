// Package subscription implements the Subscription Engine (spec §4.9):
// per-connection eth_subscribe/eth_unsubscribe state, a single shared
// poller that turns Mirror API polling into newHeads/logs pushes, and
// per-connection backpressure that evicts slow consumers rather than
// growing an unbounded buffer.
//
// The state machine and map-of-entries shape are adapted from
// accountlock.Service's mutex-guarded map idiom; the shared poller
// loop follows the same start/stop-around-a-context shape the teacher
// uses for its own background goroutines (server/json_rpc.go's
// errgroup-managed HTTP/WS servers).
package subscription

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/metrics"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
)

// Kind distinguishes the two subscription types spec §4.9 defines.
type Kind int

const (
	KindNewHeads Kind = iota
	KindLogs
)

// Notification is one pushed item for a subscription; Connection
// implementations deliver these to the wire as
// eth_subscription-shaped JSON-RPC notifications.
type Notification struct {
	SubscriptionID string
	Kind           Kind
	Head           *chaintypes.Block
	Log            *chaintypes.Log
}

// outboxCapacity bounds a connection's shared delivery queue. Once
// full, the connection is evicted rather than left to fall behind with
// a stale view or grown without limit (spec §4.9: "never buffer
// without bound").
const outboxCapacity = 256

// subscriptionEntry tracks one active subscription's kind and filter.
type subscriptionEntry struct {
	id     string
	kind   Kind
	filter chaintypes.LogFilter
}

// Connection is one WebSocket connection's subscription set. It is
// created by the Engine and driven by the websockets package, which
// owns reading Notifications off Deliveries and writing them to the
// wire.
type Connection struct {
	id  string
	eng *Engine

	mu            sync.Mutex
	subscriptions map[string]*subscriptionEntry

	deliveries chan Notification

	evictOnce sync.Once
	evicted   chan struct{}
}

// ID returns the connection identifier used in logs.
func (c *Connection) ID() string { return c.id }

// Deliveries is the single channel every active subscription on this
// connection funnels into; the websockets package ranges over it.
func (c *Connection) Deliveries() <-chan Notification { return c.deliveries }

// Evicted reports when the engine has forcibly torn this connection
// down because its delivery queue overflowed (spec §4.9: a connection
// over its high-water mark is dropped with a close code, not silently
// desynced). websockets.go selects on this to send a close frame and
// tear the socket down.
func (c *Connection) Evicted() <-chan struct{} { return c.evicted }

// evict closes the Evicted channel at most once.
func (c *Connection) evict() {
	c.evictOnce.Do(func() { close(c.evicted) })
}

// Subscribe registers a new subscription and returns its id. It
// enforces WS_MAX_SUBSCRIPTIONS_PER_CONNECTION (spec §4.9).
func (c *Connection) Subscribe(kind Kind, filter chaintypes.LogFilter) (string, *rpcerror.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subscriptions) >= c.eng.cfg.WSMaxSubscriptionsPerConnection {
		return "", rpcerror.MaxSubscriptions()
	}

	id := newSubscriptionID()
	c.subscriptions[id] = &subscriptionEntry{
		id:     id,
		kind:   kind,
		filter: filter,
	}
	if c.eng.metrics != nil {
		c.eng.metrics.WSSubscriptions.Inc()
	}
	return id, nil
}

// Unsubscribe removes one subscription, reporting whether it existed.
func (c *Connection) Unsubscribe(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[id]
	delete(c.subscriptions, id)
	if ok && c.eng.metrics != nil {
		c.eng.metrics.WSSubscriptions.Dec()
	}
	return ok
}

// Close cancels every subscription on this connection. Called once,
// when the underlying WebSocket connection closes (spec §4.10).
func (c *Connection) Close() {
	if c.eng.metrics != nil {
		if n := c.activeCount(); n > 0 {
			c.eng.metrics.WSSubscriptions.Sub(float64(n))
		}
	}
	c.eng.removeConnection(c)
}

// activeCount reports how many subscriptions remain active, for
// metrics.
func (c *Connection) activeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// deliver fans a notification out to every matching subscription on
// this connection. If the shared delivery queue is over its
// high-water mark the connection is evicted rather than having the
// individual notification silently dropped (spec §4.9): a connection
// that falls behind gets a clean close, not a stale view.
func (c *Connection) deliver(kind Kind, head *chaintypes.Block, l *chaintypes.Log) {
	c.mu.Lock()
	matches := make([]string, 0, 1)
	for id, e := range c.subscriptions {
		if e.kind != kind {
			continue
		}
		if kind == KindLogs && l != nil && !e.filter.Matches(*l) {
			continue
		}
		matches = append(matches, id)
	}
	c.mu.Unlock()

	for _, id := range matches {
		n := Notification{SubscriptionID: id, Kind: kind, Head: head, Log: l}
		select {
		case c.deliveries <- n:
		default:
			c.eng.logger.Warn("evicting connection: delivery queue over high-water mark",
				"connection_id", c.id, "capacity", outboxCapacity)
			c.evict()
			return
		}
	}
}

// Engine owns every open Connection and the single poller goroutine
// that drives them all from Mirror API polls.
type Engine struct {
	cfg     config.Snapshot
	mirror  mirror.Client
	logger  log.Logger
	metrics *metrics.Registry

	pollInterval time.Duration

	mu          sync.Mutex
	connections map[string]*Connection

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds an Engine. pollInterval is how often the shared poller
// checks Mirror for new heads/logs; spec §4.9 leaves the exact cadence
// as an operational choice, so it is a constructor parameter rather
// than a Config Snapshot field. m may be nil, in which case the active
// subscription gauge is simply not recorded.
func New(cfg config.Snapshot, mirrorCli mirror.Client, logger log.Logger, pollInterval time.Duration, m *metrics.Registry) *Engine {
	return &Engine{
		cfg:          cfg,
		mirror:       mirrorCli,
		logger:       logger.With(log.ModuleKey, "subscription"),
		metrics:      m,
		pollInterval: pollInterval,
		connections:  make(map[string]*Connection),
		done:         make(chan struct{}),
	}
}

// NewConnection registers a fresh Connection, bound until Close is
// called (normally by the websockets package on disconnect).
func (e *Engine) NewConnection(connID string) *Connection {
	c := &Connection{
		id:            connID,
		eng:           e,
		subscriptions: make(map[string]*subscriptionEntry),
		deliveries:    make(chan Notification, outboxCapacity),
		evicted:       make(chan struct{}),
	}
	e.mu.Lock()
	e.connections[connID] = c
	e.mu.Unlock()
	return c
}

func (e *Engine) removeConnection(c *Connection) {
	e.mu.Lock()
	delete(e.connections, c.id)
	e.mu.Unlock()
}

// Start runs the shared poller until ctx is cancelled. Only one caller
// should ever run Start for a given Engine.
func (e *Engine) Start(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	var lastBlock uint64
	if n, err := e.mirror.LatestBlockNumber(pollCtx); err == nil {
		lastBlock = n
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	defer close(e.done)

	for {
		select {
		case <-pollCtx.Done():
			return
		case <-ticker.C:
			result, err := e.poll(pollCtx, lastBlock)
			if err != nil {
				e.logger.Debug("poll failed", "err", err)
				continue
			}
			for _, h := range result.NewHeads {
				if h.Number > lastBlock {
					lastBlock = h.Number
				}
				e.broadcast(KindNewHeads, h, nil)
			}
			for i := range result.NewLogs {
				e.broadcast(KindLogs, nil, &result.NewLogs[i])
			}
		}
	}
}

// poll asks the Mirror client (via its Poller adapter, if it
// implements one) for anything new since lastBlock; clients that don't
// implement Poller are polled through BlockByTag("latest") only, which
// yields newHeads but no log backfill.
func (e *Engine) poll(ctx context.Context, lastBlock uint64) (mirror.PollResult, error) {
	if p, ok := e.mirror.(mirror.Poller); ok {
		return p.Poll(ctx, lastBlock)
	}

	latest, err := e.mirror.BlockByTag(ctx, chaintypes.BlockTag{Tag: "latest"})
	if err != nil {
		return mirror.PollResult{}, err
	}
	if latest == nil || latest.Number <= lastBlock {
		return mirror.PollResult{}, nil
	}
	return mirror.PollResult{NewHeads: []*chaintypes.Block{latest}}, nil
}

func (e *Engine) broadcast(kind Kind, head *chaintypes.Block, l *chaintypes.Log) {
	e.mu.Lock()
	conns := make([]*Connection, 0, len(e.connections))
	for _, c := range e.connections {
		conns = append(conns, c)
	}
	e.mu.Unlock()

	for _, c := range conns {
		c.deliver(kind, head, l)
	}
}

// Stop cancels the poller and waits for it to return.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel == nil {
			return
		}
		e.cancel()
		<-e.done
	})
}

func newSubscriptionID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("0x%s", hex.EncodeToString(buf[:]))
}
