package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	local, err := NewLocal(16)
	require.NoError(t, err)
	return NewService(local, nil, log.NewNopLogger(), nil, 0)
}

func TestSetThenGetWithinTTL(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	var got string
	ok, err := s.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got)
}

func TestGetAfterTTLExpiresReturnsNotFound(t *testing.T) {
	local, err := NewLocal(16)
	require.NoError(t, err)

	fixed := time.Now()
	local.clock = func() time.Time { return fixed }

	s := NewService(local, nil, log.NewNopLogger(), nil, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Millisecond))

	local.clock = func() time.Time { return fixed.Add(2 * time.Millisecond) }

	var got string
	ok, err := s.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalOnlyServiceReportsHealthyWithNoSharedStore(t *testing.T) {
	s := newTestService(t)
	require.True(t, s.Healthy())
}

func TestKeyIsStableForIdenticalParams(t *testing.T) {
	k1, err := Key("eth_getBalance", []any{"0xabc", "latest"})
	require.NoError(t, err)
	k2, err := Key("eth_getBalance", []any{"0xabc", "latest"})
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	k3, err := Key("eth_getBalance", []any{"0xabc", "earliest"})
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}
