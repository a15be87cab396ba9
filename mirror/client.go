// Package mirror defines the gateway's dependency on the Mirror API
// (spec §1: "only their interfaces are specified... the Mirror API HTTP
// client" is out of scope). Client is the narrow surface every in-scope
// component needs; the in-memory Fake is its only implementation in
// this module, and there is no HTTP Mirror API client.
package mirror

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
)

// ErrNotIndexed is returned when the Mirror API has not yet indexed a
// requested hash. Per spec §7, a 404 on
// /contracts/results/{hash} is reported to the RPC caller as null, not
// as an error — callers of this package translate ErrNotIndexed into
// that null response themselves.
var ErrNotIndexed = errors.New("mirror: not yet indexed")

// Client is the read-only surface the gateway needs from the Mirror
// API. Every method is an idempotent read and may be retried by the
// caller per spec §7.
type Client interface {
	Account(ctx context.Context, addr common.Address) (chaintypes.AccountView, error)
	BlockByTag(ctx context.Context, tag chaintypes.BlockTag) (*chaintypes.Block, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*chaintypes.Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*chaintypes.ChainTransaction, error)
	ReceiptByHash(ctx context.Context, hash common.Hash) (*chaintypes.TransactionReceipt, error)
	Logs(ctx context.Context, filter chaintypes.LogFilter, fromBlock, toBlock uint64) ([]chaintypes.Log, error)

	// LatestBlockNumber and LatestGasPrice back eth_blockNumber and the
	// Precheck gas-price reference (spec §4.3 step 5) respectively.
	LatestBlockNumber(ctx context.Context) (uint64, error)
	LatestGasPrice(ctx context.Context) (*big.Int, error)
}

// PollResult is one tick's worth of new chain data, consumed by the
// Subscription Engine's shared poller (spec §4.9).
type PollResult struct {
	NewHeads []*chaintypes.Block
	NewLogs  []chaintypes.Log
}

// Poller is implemented by Client-backed pollers and by fakes in
// tests.
type Poller interface {
	Poll(ctx context.Context, sinceBlock uint64) (PollResult, error)
}
