package subscription

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
)

func newTestEngine(t *testing.T, maxSubs int) (*Engine, *mirror.Fake) {
	t.Helper()
	cfg := config.Snapshot{WSMaxSubscriptionsPerConnection: maxSubs}
	fake := mirror.NewFake()
	eng := New(cfg, fake, log.NewNopLogger(), 10*time.Millisecond, nil)
	return eng, fake
}

func TestSubscribeEnforcesPerConnectionLimit(t *testing.T) {
	eng, _ := newTestEngine(t, 1)
	conn := eng.NewConnection("conn-1")

	_, err := conn.Subscribe(KindNewHeads, chaintypes.LogFilter{})
	require.Nil(t, err)

	_, err = conn.Subscribe(KindNewHeads, chaintypes.LogFilter{})
	require.NotNil(t, err)
}

func TestUnsubscribeRemovesEntry(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	conn := eng.NewConnection("conn-1")

	id, err := conn.Subscribe(KindNewHeads, chaintypes.LogFilter{})
	require.Nil(t, err)
	require.True(t, conn.Unsubscribe(id))
	require.False(t, conn.Unsubscribe(id))
}

func TestBroadcastDeliversNewHeadToSubscribedConnection(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	conn := eng.NewConnection("conn-1")
	_, err := conn.Subscribe(KindNewHeads, chaintypes.LogFilter{})
	require.Nil(t, err)

	block := &chaintypes.Block{Number: 7}
	eng.broadcast(KindNewHeads, block, nil)

	select {
	case n := <-conn.Deliveries():
		require.Equal(t, KindNewHeads, n.Kind)
		require.Equal(t, uint64(7), n.Head.Number)
	case <-time.After(time.Second):
		t.Fatal("expected a delivery")
	}
}

func TestBroadcastFiltersLogsByAddress(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	conn := eng.NewConnection("conn-1")
	wanted := common.HexToAddress("0xaa")
	other := common.HexToAddress("0xbb")
	_, err := conn.Subscribe(KindLogs, chaintypes.LogFilter{Addresses: []common.Address{wanted}})
	require.Nil(t, err)

	eng.broadcast(KindLogs, nil, &chaintypes.Log{Address: other})
	select {
	case <-conn.Deliveries():
		t.Fatal("unexpected delivery for non-matching address")
	case <-time.After(50 * time.Millisecond):
	}

	eng.broadcast(KindLogs, nil, &chaintypes.Log{Address: wanted})
	select {
	case n := <-conn.Deliveries():
		require.Equal(t, KindLogs, n.Kind)
		require.Equal(t, wanted, n.Log.Address)
	case <-time.After(time.Second):
		t.Fatal("expected a delivery for matching address")
	}
}

func TestCloseRemovesConnectionFromEngine(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	conn := eng.NewConnection("conn-1")
	conn.Close()

	eng.mu.Lock()
	_, ok := eng.connections["conn-1"]
	eng.mu.Unlock()
	require.False(t, ok)
}

func TestDeliverEvictsConnectionWhenQueueOverflows(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	conn := eng.NewConnection("conn-1")
	_, err := conn.Subscribe(KindNewHeads, chaintypes.LogFilter{})
	require.Nil(t, err)

	select {
	case <-conn.Evicted():
		t.Fatal("should not be evicted before the queue fills")
	default:
	}

	for i := 0; i < outboxCapacity+1; i++ {
		eng.broadcast(KindNewHeads, &chaintypes.Block{Number: uint64(i)}, nil)
	}

	select {
	case <-conn.Evicted():
	case <-time.After(time.Second):
		t.Fatal("expected the connection to be evicted once its queue overflowed")
	}
}

func TestStartPropagatesNewBlocksFromMirror(t *testing.T) {
	eng, fake := newTestEngine(t, 5)
	conn := eng.NewConnection("conn-1")
	_, err := conn.Subscribe(KindNewHeads, chaintypes.LogFilter{})
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Start(ctx)
	defer eng.Stop()

	fake.PutBlock(&chaintypes.Block{Number: 1})

	select {
	case n := <-conn.Deliveries():
		require.Equal(t, KindNewHeads, n.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected poller to deliver the new head")
	}
}
