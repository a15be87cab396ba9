package registry

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hashlink-network/eth-rpc-relay/cache"
	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
	"github.com/hashlink-network/eth-rpc-relay/submission"
	"github.com/hashlink-network/eth-rpc-relay/tracer"
)

// Deps bundles every collaborator a handler closure needs. It is built
// once at process start from the wired singletons in cmd/relay.
type Deps struct {
	Cfg      config.Snapshot
	Mirror   mirror.Client
	Cache    *cache.Service
	Pipeline *submission.Pipeline
	Tracer   tracer.Tracer
}

func paramString(params []any, i int) (string, *rpcerror.Error) {
	if i >= len(params) {
		return "", rpcerror.MissingRequiredParameter(i)
	}
	s, ok := params[i].(string)
	if !ok {
		return "", rpcerror.InvalidParameter(i, "expected a string")
	}
	return s, nil
}

func paramAddress(params []any, i int) (common.Address, *rpcerror.Error) {
	s, err := paramString(params, i)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, rpcerror.InvalidParameter(i, "expected a 20-byte hex address")
	}
	return common.HexToAddress(s), nil
}

func paramBlockTag(params []any, i int, def string) (chaintypes.BlockTag, *rpcerror.Error) {
	if i >= len(params) || params[i] == nil {
		tag, _ := chaintypes.ParseBlockTag(def)
		return tag, nil
	}
	s, err := paramString(params, i)
	if err != nil {
		return chaintypes.BlockTag{}, err
	}
	tag, perr := chaintypes.ParseBlockTag(s)
	if perr != nil {
		return chaintypes.BlockTag{}, rpcerror.InvalidParameter(i, "malformed block tag")
	}
	return tag, nil
}

func paramHash(params []any, i int) (common.Hash, *rpcerror.Error) {
	s, err := paramString(params, i)
	if err != nil {
		return common.Hash{}, err
	}
	if len(s) != 66 {
		return common.Hash{}, rpcerror.InvalidParameter(i, "Expected a 0x prefixed string of length 66")
	}
	return common.HexToHash(s), nil
}

// cacheableTTL collapses a resolved block tag and a method's configured
// TTL down to the TTL cachedOrFetch should actually use: zero for the
// floating tags (spec §4.2's "latest"/"pending"/"safe"/"finalized"),
// unchanged otherwise.
func cacheableTTL(tag chaintypes.BlockTag, ttlMs int64) int64 {
	if !config.IsCacheableBlockTag(tag.Tag) {
		return 0
	}
	return ttlMs
}

func cachedOrFetch[T any](ctx context.Context, c *cache.Service, method string, params []any, ttlMs int64, fetch func() (T, error)) (T, *rpcerror.Error) {
	var zero T
	if c != nil && ttlMs > 0 {
		key, kerr := cache.Key(method, params)
		if kerr == nil {
			var cached T
			if hit, _ := c.Get(ctx, key, &cached); hit {
				return cached, nil
			}
		}
		v, err := fetch()
		if err != nil {
			return zero, rpcerror.InternalError(err)
		}
		if kerr == nil {
			_ = c.Set(ctx, key, v, time.Duration(ttlMs)*time.Millisecond)
		}
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return zero, rpcerror.InternalError(err)
	}
	return v, nil
}

// BuildTable registers the full method surface of spec §6 against the
// supplied collaborators.
func BuildTable(d Deps) *Table {
	t := New()

	t.Register(Method{
		Name:            "eth_chainId",
		ReadOnlyAllowed: true,
		CacheTTLMs:      60_000,
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return cachedOrFetch(ctx, d.Cache, "eth_chainId", params, 60_000, func() (string, error) {
				return hexutil.EncodeUint64(d.Cfg.ChainID), nil
			})
		},
	})

	t.Register(Method{
		Name:            "eth_blockNumber",
		ReadOnlyAllowed: true,
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			n, err := d.Mirror.LatestBlockNumber(ctx)
			if err != nil {
				return nil, rpcerror.InternalError(err)
			}
			return hexutil.EncodeUint64(n), nil
		},
	})

	t.Register(Method{
		Name:            "eth_gasPrice",
		ReadOnlyAllowed: true,
		CacheTTLMs:      2_000,
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			v, err := cachedOrFetch(ctx, d.Cache, "eth_gasPrice", params, 2_000, func() (*big.Int, error) {
				return d.Mirror.LatestGasPrice(ctx)
			})
			if err != nil {
				return nil, err
			}
			return hexutil.EncodeBig(v), nil
		},
	})

	t.Register(Method{
		Name:            "eth_maxPriorityFeePerGas",
		ReadOnlyAllowed: true,
		CacheTTLMs:      2_000,
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			v, err := cachedOrFetch(ctx, d.Cache, "eth_maxPriorityFeePerGas", params, 2_000, func() (*big.Int, error) {
				return d.Mirror.LatestGasPrice(ctx)
			})
			if err != nil {
				return nil, err
			}
			return hexutil.EncodeBig(v), nil
		},
	})

	t.Register(Method{
		Name:            "eth_getBalance",
		ReadOnlyAllowed: true,
		CacheTTLMs:      5_000,
		Params: []ParamSpec{
			{Name: "address", Required: true},
			{Name: "block", Required: false},
		},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			addr, err := paramAddress(params, 0)
			if err != nil {
				return nil, err
			}
			tag, terr := paramBlockTag(params, 1, "latest")
			if terr != nil {
				return nil, terr
			}
			bal, ferr := cachedOrFetch(ctx, d.Cache, "eth_getBalance", params, cacheableTTL(tag, 5_000), func() (*big.Int, error) {
				account, merr := d.Mirror.Account(ctx, addr)
				if merr != nil {
					return nil, merr
				}
				if account.BalanceWeibar == nil {
					return big.NewInt(0), nil
				}
				return account.BalanceWeibar, nil
			})
			if ferr != nil {
				return nil, ferr
			}
			return hexutil.EncodeBig(bal), nil
		},
	})

	t.Register(Method{
		Name:            "eth_getTransactionCount",
		ReadOnlyAllowed: true,
		CacheTTLMs:      5_000,
		Params: []ParamSpec{
			{Name: "address", Required: true},
			{Name: "block", Required: false},
		},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			addr, err := paramAddress(params, 0)
			if err != nil {
				return nil, err
			}
			tag, terr := paramBlockTag(params, 1, "latest")
			if terr != nil {
				return nil, terr
			}
			nonce, ferr := cachedOrFetch(ctx, d.Cache, "eth_getTransactionCount", params, cacheableTTL(tag, 5_000), func() (uint64, error) {
				account, merr := d.Mirror.Account(ctx, addr)
				if merr != nil {
					return 0, merr
				}
				if tag.Tag == "pending" {
					return account.NoncePending, nil
				}
				return account.NonceLatest, nil
			})
			if ferr != nil {
				return nil, ferr
			}
			return hexutil.EncodeUint64(nonce), nil
		},
	})

	t.Register(Method{
		Name:            "eth_getCode",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params: []ParamSpec{
			{Name: "address", Required: true},
			{Name: "block", Required: false},
		},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			addr, err := paramAddress(params, 0)
			if err != nil {
				return nil, err
			}
			tag, terr := paramBlockTag(params, 1, "latest")
			if terr != nil {
				return nil, terr
			}
			code, ferr := cachedOrFetch(ctx, d.Cache, "eth_getCode", params, cacheableTTL(tag, 30_000), func() (string, error) {
				account, merr := d.Mirror.Account(ctx, addr)
				if merr != nil {
					return "", merr
				}
				return account.CodeHash.Hex(), nil
			})
			if ferr != nil {
				return nil, ferr
			}
			return code, nil
		},
	})

	t.Register(Method{
		Name:            "eth_getStorageAt",
		ReadOnlyAllowed: true,
		Params: []ParamSpec{
			{Name: "address", Required: true},
			{Name: "slot", Required: true},
			{Name: "block", Required: false},
		},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return nil, rpcerror.UnsupportedOperation("storage access is not projected by the Mirror API")
		},
	})

	t.Register(Method{
		Name:            "eth_call",
		ReadOnlyAllowed: true,
		Params: []ParamSpec{
			{Name: "callObject", Required: true},
			{Name: "block", Required: false},
		},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return nil, rpcerror.UnsupportedOperation("synchronous contract execution requires consensus-side support not modeled here")
		},
	})

	t.Register(Method{
		Name:            "eth_estimateGas",
		ReadOnlyAllowed: true,
		Params: []ParamSpec{
			{Name: "callObject", Required: true},
			{Name: "block", Required: false},
		},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return nil, rpcerror.UnsupportedOperation("gas estimation requires consensus-side simulation not modeled here")
		},
	})

	t.Register(Method{
		Name:            "eth_getBlockByNumber",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params: []ParamSpec{
			{Name: "block", Required: true},
			{Name: "fullTx", Required: false},
		},
		Handler: blockHandler(&d, true, 30_000),
	})

	t.Register(Method{
		Name:            "eth_getBlockByHash",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params: []ParamSpec{
			{Name: "hash", Required: true},
			{Name: "fullTx", Required: false},
		},
		Handler: blockHandler(&d, false, 30_000),
	})

	t.Register(Method{
		Name:            "eth_getBlockTransactionCountByNumber",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params:          []ParamSpec{{Name: "block", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			tag, err := paramBlockTag(params, 0, "latest")
			if err != nil {
				return nil, err
			}
			n, ferr := cachedOrFetch(ctx, d.Cache, "eth_getBlockTransactionCountByNumber", params, cacheableTTL(tag, 30_000), func() (int, error) {
				b, merr := d.Mirror.BlockByTag(ctx, tag)
				if merr != nil {
					return 0, merr
				}
				if b == nil {
					return -1, nil
				}
				return len(b.TransactionHashes), nil
			})
			if ferr != nil {
				return nil, ferr
			}
			if n < 0 {
				return nil, nil
			}
			return hexutil.EncodeUint64(uint64(n)), nil
		},
	})

	t.Register(Method{
		Name:            "eth_getBlockTransactionCountByHash",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params:          []ParamSpec{{Name: "hash", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			hash, err := paramHash(params, 0)
			if err != nil {
				return nil, err
			}
			n, ferr := cachedOrFetch(ctx, d.Cache, "eth_getBlockTransactionCountByHash", params, 30_000, func() (int, error) {
				b, merr := d.Mirror.BlockByHash(ctx, hash)
				if merr != nil {
					return 0, merr
				}
				if b == nil {
					return -1, nil
				}
				return len(b.TransactionHashes), nil
			})
			if ferr != nil {
				return nil, ferr
			}
			if n < 0 {
				return nil, nil
			}
			return hexutil.EncodeUint64(uint64(n)), nil
		},
	})

	t.Register(Method{
		Name:            "eth_getBlockReceipts",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params:          []ParamSpec{{Name: "block", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			tag, err := paramBlockTag(params, 0, "latest")
			if err != nil {
				return nil, err
			}
			receipts, ferr := cachedOrFetch(ctx, d.Cache, "eth_getBlockReceipts", params, cacheableTTL(tag, 30_000), func() ([]*chaintypes.TransactionReceipt, error) {
				b, merr := d.Mirror.BlockByTag(ctx, tag)
				if merr != nil {
					return nil, merr
				}
				if b == nil {
					return nil, nil
				}
				out := make([]*chaintypes.TransactionReceipt, 0, len(b.TransactionHashes))
				for _, h := range b.TransactionHashes {
					r, rerr := d.Mirror.ReceiptByHash(ctx, h)
					if rerr == mirror.ErrNotIndexed {
						continue
					}
					if rerr != nil {
						return nil, rerr
					}
					out = append(out, r)
				}
				return out, nil
			})
			if ferr != nil {
				return nil, ferr
			}
			return receipts, nil
		},
	})

	t.Register(Method{
		Name:            "eth_getTransactionByHash",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params:          []ParamSpec{{Name: "hash", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			hash, err := paramHash(params, 0)
			if err != nil {
				return nil, err
			}
			tx, ferr := cachedOrFetch(ctx, d.Cache, "eth_getTransactionByHash", params, 30_000, func() (*chaintypes.ChainTransaction, error) {
				tx, merr := d.Mirror.TransactionByHash(ctx, hash)
				if merr == mirror.ErrNotIndexed {
					return nil, nil
				}
				if merr != nil {
					return nil, merr
				}
				return tx, nil
			})
			if ferr != nil {
				return nil, ferr
			}
			return tx, nil
		},
	})

	t.Register(Method{
		Name:            "eth_getTransactionByBlockHashAndIndex",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params:          []ParamSpec{{Name: "hash", Required: true}, {Name: "index", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			hash, perr := paramHash(params, 0)
			if perr != nil {
				return nil, perr
			}
			b, ferr := cachedOrFetch(ctx, d.Cache, "eth_getTransactionByBlockHashAndIndex", params, 30_000, func() (*chaintypes.Block, error) {
				return d.Mirror.BlockByHash(ctx, hash)
			})
			if ferr != nil {
				return nil, ferr
			}
			return txByIndex(b, params, 1)
		},
	})

	t.Register(Method{
		Name:            "eth_getTransactionByBlockNumberAndIndex",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params:          []ParamSpec{{Name: "block", Required: true}, {Name: "index", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			tag, perr := paramBlockTag(params, 0, "latest")
			if perr != nil {
				return nil, perr
			}
			b, ferr := cachedOrFetch(ctx, d.Cache, "eth_getTransactionByBlockNumberAndIndex", params, cacheableTTL(tag, 30_000), func() (*chaintypes.Block, error) {
				return d.Mirror.BlockByTag(ctx, tag)
			})
			if ferr != nil {
				return nil, ferr
			}
			return txByIndex(b, params, 1)
		},
	})

	t.Register(Method{
		Name:            "eth_getTransactionReceipt",
		ReadOnlyAllowed: true,
		CacheTTLMs:      30_000,
		Params:          []ParamSpec{{Name: "hash", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			hash, err := paramHash(params, 0)
			if err != nil {
				return nil, err
			}
			r, ferr := cachedOrFetch(ctx, d.Cache, "eth_getTransactionReceipt", params, 30_000, func() (*chaintypes.TransactionReceipt, error) {
				r, merr := d.Mirror.ReceiptByHash(ctx, hash)
				if merr == mirror.ErrNotIndexed {
					return nil, nil
				}
				if merr != nil {
					return nil, merr
				}
				return r, nil
			})
			if ferr != nil {
				return nil, ferr
			}
			return r, nil
		},
	})

	t.Register(Method{
		Name:            "eth_getLogs",
		ReadOnlyAllowed: true,
		CacheTTLMs:      10_000,
		Params:          []ParamSpec{{Name: "filter", Required: true}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			filter, fromBlock, toBlock, perr := decodeLogFilter(ctx, &d, params)
			if perr != nil {
				return nil, perr
			}
			ttl := int64(10_000)
			if !logFilterRangeIsFixed(params) {
				ttl = 0
			}
			logs, ferr := cachedOrFetch(ctx, d.Cache, "eth_getLogs", params, ttl, func() ([]chaintypes.Log, error) {
				return d.Mirror.Logs(ctx, filter, fromBlock, toBlock)
			})
			if ferr != nil {
				return nil, ferr
			}
			return logs, nil
		},
	})

	t.Register(Method{
		Name:            "eth_feeHistory",
		ReadOnlyAllowed: true,
		Params: []ParamSpec{
			{Name: "blockCount", Required: true},
			{Name: "newestBlock", Required: true},
			{Name: "rewardPercentiles", Required: false},
		},
		Handler: feeHistoryHandler(&d),
	})

	t.Register(Method{Name: "eth_syncing", ReadOnlyAllowed: true, Handler: constHandler(false)})
	t.Register(Method{Name: "eth_accounts", ReadOnlyAllowed: true, Handler: constHandler([]string{})})
	t.Register(Method{Name: "eth_mining", ReadOnlyAllowed: true, Handler: constHandler(false)})
	t.Register(Method{Name: "eth_hashrate", ReadOnlyAllowed: true, Handler: constHandler(hexutil.EncodeUint64(0))})
	t.Register(Method{Name: "eth_coinbase", ReadOnlyAllowed: true, Handler: constHandler(common.Address{}.Hex())})

	t.Register(Method{
		Name:            "net_version",
		ReadOnlyAllowed: true,
		CacheTTLMs:      60_000,
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return cachedOrFetch(ctx, d.Cache, "net_version", params, 60_000, func() (string, error) {
				return big.NewInt(0).SetUint64(d.Cfg.ChainID).String(), nil
			})
		},
	})
	t.Register(Method{Name: "net_listening", ReadOnlyAllowed: true, Handler: constHandler(true)})
	t.Register(Method{Name: "net_peerCount", ReadOnlyAllowed: true, Handler: constHandler(hexutil.EncodeUint64(0))})
	t.Register(Method{Name: "web3_clientVersion", ReadOnlyAllowed: true, Handler: constHandler("eth-rpc-relay/v1")})

	t.Register(Method{
		Name: "eth_sendRawTransaction",
		Params: []ParamSpec{
			{Name: "raw", Required: true},
		},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			raw, perr := paramString(params, 0)
			if perr != nil {
				return nil, perr
			}
			decoded, derr := hexutil.Decode(raw)
			if derr != nil {
				return nil, rpcerror.InvalidParameter(0, "expected 0x-prefixed raw transaction bytes")
			}
			res, serr := d.Pipeline.Submit(ctx, decoded)
			if serr != nil {
				return nil, serr
			}
			return res.TransactionHash.Hex(), nil
		},
	})

	t.Register(Method{
		Name:            "debug_traceTransaction",
		DebugAPIGuarded: true,
		Params:          []ParamSpec{{Name: "hash", Required: true}, {Name: "traceConfig", Required: false}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			hash, perr := paramHash(params, 0)
			if perr != nil {
				return nil, perr
			}
			frame, terr := d.Tracer.TraceTransaction(ctx, hash)
			if terr != nil {
				if errors.Is(terr, tracer.ErrTraceUnavailable) {
					return nil, rpcerror.UnsupportedOperation("trace decoding is not wired to a consensus-side tracer")
				}
				return nil, rpcerror.InternalError(terr)
			}
			return frame, nil
		},
	})
	t.Register(Method{
		Name:            "debug_traceBlockByNumber",
		DebugAPIGuarded: true,
		Params:          []ParamSpec{{Name: "block", Required: true}, {Name: "traceConfig", Required: false}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return nil, rpcerror.UnsupportedOperation("trace decoding is not wired to a consensus-side tracer")
		},
	})
	t.Register(Method{
		Name:            "debug_traceBlockByHash",
		DebugAPIGuarded: true,
		Params:          []ParamSpec{{Name: "hash", Required: true}, {Name: "traceConfig", Required: false}},
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return nil, rpcerror.UnsupportedOperation("trace decoding is not wired to a consensus-side tracer")
		},
	})
	t.Register(Method{
		Name:            "debug_getBadBlocks",
		DebugAPIGuarded: true,
		Handler:         constHandler([]any{}),
	})

	t.Register(Method{
		Name:          "txpool_content",
		TxPoolGuarded: true,
		Handler: func(ctx context.Context, params []any) (any, *rpcerror.Error) {
			return map[string]any{"pending": map[string]any{}, "queued": map[string]any{}}, nil
		},
	})

	t.Register(Method{Name: "eth_subscribe", WSOnly: true, WSAllowed: true})
	t.Register(Method{Name: "eth_unsubscribe", WSOnly: true, WSAllowed: true})

	return t
}

func constHandler(v any) Handler {
	return func(ctx context.Context, params []any) (any, *rpcerror.Error) { return v, nil }
}

func blockHandler(d *Deps, byNumber bool, ttlMs int64) Handler {
	return func(ctx context.Context, params []any) (any, *rpcerror.Error) {
		var b *chaintypes.Block
		if byNumber {
			tag, err := paramBlockTag(params, 0, "latest")
			if err != nil {
				return nil, err
			}
			got, ferr := cachedOrFetch(ctx, d.Cache, "eth_getBlockByNumber", params, cacheableTTL(tag, ttlMs), func() (*chaintypes.Block, error) {
				return d.Mirror.BlockByTag(ctx, tag)
			})
			if ferr != nil {
				return nil, ferr
			}
			b = got
		} else {
			hash, err := paramHash(params, 0)
			if err != nil {
				return nil, err
			}
			got, ferr := cachedOrFetch(ctx, d.Cache, "eth_getBlockByHash", params, ttlMs, func() (*chaintypes.Block, error) {
				return d.Mirror.BlockByHash(ctx, hash)
			})
			if ferr != nil {
				return nil, ferr
			}
			b = got
		}
		if b == nil {
			return nil, nil
		}
		return b, nil
	}
}

func txByIndex(b *chaintypes.Block, params []any, indexParam int) (any, *rpcerror.Error) {
	if b == nil {
		return nil, nil
	}
	idxStr, perr := paramString(params, indexParam)
	if perr != nil {
		return nil, perr
	}
	idx, derr := hexutil.DecodeUint64(idxStr)
	if derr != nil {
		return nil, rpcerror.InvalidParameter(indexParam, "expected a 0x-prefixed index")
	}
	if idx >= uint64(len(b.Transactions)) {
		return nil, nil
	}
	return b.Transactions[idx], nil
}

func decodeLogFilter(ctx context.Context, d *Deps, params []any) (chaintypes.LogFilter, uint64, uint64, *rpcerror.Error) {
	if len(params) == 0 {
		return chaintypes.LogFilter{}, 0, 0, rpcerror.MissingRequiredParameter(0)
	}
	raw, ok := params[0].(map[string]any)
	if !ok {
		return chaintypes.LogFilter{}, 0, 0, rpcerror.InvalidParameter(0, "expected a filter object")
	}

	var filter chaintypes.LogFilter
	if addrs, ok := raw["address"]; ok && addrs != nil {
		switch v := addrs.(type) {
		case string:
			filter.Addresses = append(filter.Addresses, common.HexToAddress(v))
		case []any:
			for _, a := range v {
				if s, ok := a.(string); ok {
					filter.Addresses = append(filter.Addresses, common.HexToAddress(s))
				}
			}
		}
	}
	if topics, ok := raw["topics"].([]any); ok {
		for _, slot := range topics {
			switch v := slot.(type) {
			case nil:
				filter.Topics = append(filter.Topics, nil)
			case string:
				filter.Topics = append(filter.Topics, []common.Hash{common.HexToHash(v)})
			case []any:
				var set []common.Hash
				for _, s := range v {
					if str, ok := s.(string); ok {
						set = append(set, common.HexToHash(str))
					}
				}
				filter.Topics = append(filter.Topics, set)
			}
		}
	}

	latest, merr := d.Mirror.LatestBlockNumber(ctx)
	if merr != nil {
		return chaintypes.LogFilter{}, 0, 0, rpcerror.InternalError(merr)
	}
	fromBlock, toBlock := uint64(0), latest
	if fb, ok := raw["fromBlock"].(string); ok {
		if tag, err := chaintypes.ParseBlockTag(fb); err == nil && tag.Number != nil {
			fromBlock = *tag.Number
		}
	}
	if tb, ok := raw["toBlock"].(string); ok {
		if tag, err := chaintypes.ParseBlockTag(tb); err == nil && tag.Number != nil {
			toBlock = *tag.Number
		}
	}
	if d.Cfg.EthGetLogsBlockRangeLimit > 0 && toBlock > fromBlock && toBlock-fromBlock > uint64(d.Cfg.EthGetLogsBlockRangeLimit) {
		return chaintypes.LogFilter{}, 0, 0, rpcerror.InvalidArguments("block range exceeds the configured limit")
	}
	return filter, fromBlock, toBlock, nil
}

// logFilterRangeIsFixed reports whether a getLogs filter pins both ends
// of its block range to values that won't change retroactively (an
// explicit numeric bound or "earliest"), as opposed to a floating tag
// like "latest" that decodeLogFilter resolves against whatever the
// current chain head happens to be (spec §4.2).
func logFilterRangeIsFixed(params []any) bool {
	if len(params) == 0 {
		return false
	}
	raw, ok := params[0].(map[string]any)
	if !ok {
		return false
	}
	from, hasFrom := raw["fromBlock"].(string)
	to, hasTo := raw["toBlock"].(string)
	if !hasFrom || !hasTo {
		return false
	}
	return config.IsCacheableBlockTag(from) && config.IsCacheableBlockTag(to)
}

func feeHistoryHandler(d *Deps) Handler {
	return func(ctx context.Context, params []any) (any, *rpcerror.Error) {
		// eth_feeHistory is synthesised rather than sourced from Mirror,
		// which has no base-fee history endpoint: every entry reflects
		// the current gas-price reference, consistent with a chain that
		// has no EIP-1559 base-fee mechanism of its own.
		gasPrice, merr := d.Mirror.LatestGasPrice(ctx)
		if merr != nil {
			return nil, rpcerror.InternalError(merr)
		}
		latest, merr := d.Mirror.LatestBlockNumber(ctx)
		if merr != nil {
			return nil, rpcerror.InternalError(merr)
		}
		countStr, perr := paramString(params, 0)
		if perr != nil {
			return nil, perr
		}
		count, derr := hexutil.DecodeUint64(countStr)
		if derr != nil || count == 0 {
			return nil, rpcerror.InvalidParameter(0, "expected a positive 0x-prefixed block count")
		}
		if count > 1024 {
			count = 1024
		}

		baseFees := make([]string, count+1)
		gasRatios := make([]float64, count)
		for i := range baseFees {
			baseFees[i] = hexutil.EncodeBig(gasPrice)
		}
		oldest := uint64(0)
		if latest+1 > count {
			oldest = latest + 1 - count
		}
		return map[string]any{
			"oldestBlock":   hexutil.EncodeUint64(oldest),
			"baseFeePerGas": baseFees,
			"gasUsedRatio":  gasRatios,
		}, nil
	}
}
