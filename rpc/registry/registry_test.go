package registry

import (
	"context"
	"math/big"
	"testing"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hashlink-network/eth-rpc-relay/accountlock"
	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/consensus"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
	"github.com/hashlink-network/eth-rpc-relay/paymaster"
	"github.com/hashlink-network/eth-rpc-relay/submission"
	"github.com/hashlink-network/eth-rpc-relay/tracer"
)

func newTestDeps(t *testing.T) (Deps, *mirror.Fake) {
	t.Helper()
	cfg := config.Snapshot{ChainID: 295}
	mirrorFake := mirror.NewFake()
	pipeline := submission.NewPipeline(
		cfg,
		accountlock.NewService(log.NewNopLogger()),
		paymaster.NewState(cfg),
		consensus.NewFake(),
		mirrorFake,
		log.NewNopLogger(),
		nil,
	)
	return Deps{Cfg: cfg, Mirror: mirrorFake, Pipeline: pipeline, Tracer: tracer.Disabled{}}, mirrorFake
}

func TestBuildTableRegistersRequiredCoverage(t *testing.T) {
	d, _ := newTestDeps(t)
	table := BuildTable(d)

	required := []string{
		"eth_chainId", "eth_blockNumber", "eth_gasPrice", "eth_getBalance",
		"eth_getTransactionCount", "eth_getCode", "eth_getStorageAt", "eth_call",
		"eth_estimateGas", "eth_getBlockByNumber", "eth_getBlockByHash",
		"eth_getBlockTransactionCountByNumber", "eth_getBlockTransactionCountByHash",
		"eth_getBlockReceipts", "eth_getTransactionByHash",
		"eth_getTransactionByBlockHashAndIndex", "eth_getTransactionByBlockNumberAndIndex",
		"eth_getTransactionReceipt", "eth_getLogs", "eth_feeHistory",
		"eth_maxPriorityFeePerGas", "eth_syncing", "eth_accounts", "eth_mining",
		"eth_hashrate", "eth_coinbase", "net_version", "net_listening",
		"net_peerCount", "web3_clientVersion", "eth_sendRawTransaction",
		"debug_traceTransaction", "debug_traceBlockByNumber", "debug_traceBlockByHash",
		"debug_getBadBlocks", "txpool_content", "eth_subscribe", "eth_unsubscribe",
	}
	for _, name := range required {
		_, ok := table.Lookup(name)
		require.True(t, ok, "missing method %s", name)
	}
}

func TestEthChainIdReturnsConfiguredChainID(t *testing.T) {
	d, _ := newTestDeps(t)
	table := BuildTable(d)

	m, ok := table.Lookup("eth_chainId")
	require.True(t, ok)
	result, err := m.Handler(context.Background(), nil)
	require.Nil(t, err)
	require.Equal(t, "0x127", result)
}

func TestEthGetBalanceReadsMirrorAccount(t *testing.T) {
	d, mirrorFake := newTestDeps(t)
	addr := common.HexToAddress("0x01")
	mirrorFake.SetAccount(chaintypes.AccountView{Address: addr, BalanceWeibar: big.NewInt(42)})

	table := BuildTable(d)
	m, ok := table.Lookup("eth_getBalance")
	require.True(t, ok)

	result, err := m.Handler(context.Background(), []any{addr.Hex()})
	require.Nil(t, err)
	require.Equal(t, "0x2a", result)
}

func TestEthGetBalanceRejectsMalformedAddress(t *testing.T) {
	d, _ := newTestDeps(t)
	table := BuildTable(d)
	m, ok := table.Lookup("eth_getBalance")
	require.True(t, ok)

	_, err := m.Handler(context.Background(), []any{"not-an-address"})
	require.NotNil(t, err)
}

func TestDebugTraceTransactionReportsUnsupportedWithNoTracerWired(t *testing.T) {
	d, _ := newTestDeps(t)
	table := BuildTable(d)
	m, ok := table.Lookup("debug_traceTransaction")
	require.True(t, ok)

	_, err := m.Handler(context.Background(), []any{common.HexToHash("0xdeadbeef").Hex()})
	require.NotNil(t, err)
}

func TestEthGetTransactionByHashReturnsNilWhenNotIndexed(t *testing.T) {
	d, _ := newTestDeps(t)
	table := BuildTable(d)
	m, ok := table.Lookup("eth_getTransactionByHash")
	require.True(t, ok)

	result, err := m.Handler(context.Background(), []any{common.HexToHash("0xdeadbeef").Hex()})
	require.Nil(t, err)
	require.Nil(t, result)
}
