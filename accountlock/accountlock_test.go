package accountlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"
)

func TestAcquireExcludesConcurrentSameAddress(t *testing.T) {
	s := NewService(log.NewNopLogger())
	addr := common.HexToAddress("0x01")

	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := s.Acquire(context.Background(), addr)
			require.NoError(t, err)
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			s.Release(tok)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxActive)
}

func TestDifferentAddressesDoNotBlockEachOther(t *testing.T) {
	s := NewService(log.NewNopLogger())
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")

	tokA, err := s.Acquire(context.Background(), a)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tokB, err := s.Acquire(context.Background(), b)
		require.NoError(t, err)
		s.Release(tokB)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different address should not block")
	}

	s.Release(tokA)
}

func TestAcquireRespectsCancellation(t *testing.T) {
	s := NewService(log.NewNopLogger())
	addr := common.HexToAddress("0x01")

	tok, err := s.Acquire(context.Background(), addr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Acquire(ctx, addr)
	require.Error(t, err)

	s.Release(tok)

	// the entry must not be left permanently locked by the cancelled waiter
	tok2, err := s.Acquire(context.Background(), addr)
	require.NoError(t, err)
	s.Release(tok2)
}

func TestEntryRemovedWhenUncontended(t *testing.T) {
	s := NewService(log.NewNopLogger())
	addr := common.HexToAddress("0x01")

	tok, err := s.Acquire(context.Background(), addr)
	require.NoError(t, err)
	s.Release(tok)

	s.mapMu.Lock()
	_, exists := s.entries[addr]
	s.mapMu.Unlock()
	require.False(t, exists)
}
