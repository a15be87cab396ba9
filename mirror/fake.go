package mirror

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
)

// Fake is an in-memory Client used by tests and, until a real Mirror
// API adapter is wired in cmd/relay, by the gateway itself. It is not a
// production client: the Mirror API HTTP client is explicitly out of
// scope (spec §1).
type Fake struct {
	mu sync.RWMutex

	accounts     map[common.Address]chaintypes.AccountView
	blocksByNum  map[uint64]*chaintypes.Block
	blocksByHash map[common.Hash]*chaintypes.Block
	txs          map[common.Hash]*chaintypes.ChainTransaction
	receipts     map[common.Hash]*chaintypes.TransactionReceipt
	logs         []chaintypes.Log

	latestBlock uint64
	gasPrice    *big.Int
}

func NewFake() *Fake {
	return &Fake{
		accounts:     make(map[common.Address]chaintypes.AccountView),
		blocksByNum:  make(map[uint64]*chaintypes.Block),
		blocksByHash: make(map[common.Hash]*chaintypes.Block),
		txs:          make(map[common.Hash]*chaintypes.ChainTransaction),
		receipts:     make(map[common.Hash]*chaintypes.TransactionReceipt),
		gasPrice:     big.NewInt(100_000_000_000),
	}
}

func (f *Fake) SetAccount(v chaintypes.AccountView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[v.Address] = v
}

func (f *Fake) PutBlock(b *chaintypes.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocksByNum[b.Number] = b
	f.blocksByHash[b.Hash] = b
	if b.Number > f.latestBlock {
		f.latestBlock = b.Number
	}
}

func (f *Fake) PutReceipt(r *chaintypes.TransactionReceipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[r.TransactionHash] = r
	f.logs = append(f.logs, r.Logs...)
}

func (f *Fake) Account(_ context.Context, addr common.Address) (chaintypes.AccountView, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.accounts[addr], nil
}

func (f *Fake) BlockByTag(_ context.Context, tag chaintypes.BlockTag) (*chaintypes.Block, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if tag.Number != nil {
		return f.blocksByNum[*tag.Number], nil
	}
	return f.blocksByNum[f.latestBlock], nil
}

func (f *Fake) BlockByHash(_ context.Context, hash common.Hash) (*chaintypes.Block, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.blocksByHash[hash], nil
}

func (f *Fake) TransactionByHash(_ context.Context, hash common.Hash) (*chaintypes.ChainTransaction, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tx, ok := f.txs[hash]
	if !ok {
		return nil, ErrNotIndexed
	}
	return tx, nil
}

func (f *Fake) ReceiptByHash(_ context.Context, hash common.Hash) (*chaintypes.TransactionReceipt, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ErrNotIndexed
	}
	return r, nil
}

func (f *Fake) Logs(_ context.Context, filter chaintypes.LogFilter, fromBlock, toBlock uint64) ([]chaintypes.Log, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []chaintypes.Log
	for _, l := range f.logs {
		if l.BlockNumber < fromBlock || l.BlockNumber > toBlock {
			continue
		}
		if filter.Matches(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *Fake) LatestBlockNumber(_ context.Context) (uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latestBlock, nil
}

func (f *Fake) LatestGasPrice(_ context.Context) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return new(big.Int).Set(f.gasPrice), nil
}

var _ Client = (*Fake)(nil)
