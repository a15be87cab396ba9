// Package submission orchestrates the six-step path a signed
// transaction takes from eth_sendRawTransaction to a submitted
// consensus-node transaction hash (spec §4.6). The step ordering and
// the broadcast-callback shape are adapted from the teacher's
// mempool.ExperimentalEVMMempool — in particular its
// EVMMempoolConfig.BroadCastTxFn pattern — recomposed here around
// decode → read-only gate → lock → precheck/paymaster → jumbo-split →
// submit rather than around block-proposal inclusion. The pipeline
// returns the hash SubmitRaw reports; it does not poll the Mirror API
// for the transaction afterwards.
package submission

import (
	"context"
	"math/big"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hashlink-network/eth-rpc-relay/accountlock"
	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/consensus"
	"github.com/hashlink-network/eth-rpc-relay/metrics"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
	"github.com/hashlink-network/eth-rpc-relay/paymaster"
	"github.com/hashlink-network/eth-rpc-relay/precheck"
	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
)

// JumboInlineThreshold is the call-data size past which, when jumbo-tx
// mode is disabled, call data is staged with the consensus node's file
// service instead of submitted inline (spec §4.6 step 5).
const JumboInlineThreshold = 6 * 1024

// Result is what the pipeline hands back to the RPC handler for
// eth_sendRawTransaction.
type Result struct {
	TransactionHash common.Hash
	// Predicted is true when the hash was returned before consensus
	// finality because async processing is enabled.
	Predicted bool
}

// Pipeline wires the Account Lock Service, Precheck, Paymaster,
// and the consensus/Mirror collaborators into the single ordered
// procedure of spec §4.6.
type Pipeline struct {
	cfg config.Snapshot

	locks     *accountlock.Service
	paymaster *paymaster.State
	consensus consensus.Client
	mirrorCli mirror.Client

	logger  log.Logger
	metrics *metrics.Registry

	// cleanupWG tracks in-flight jumbo-file cleanup goroutines so tests
	// can deterministically wait for them.
	cleanupWG sync.WaitGroup
}

// NewPipeline wires the pipeline's collaborators. m may be nil, in
// which case submission latency is simply not recorded.
func NewPipeline(
	cfg config.Snapshot,
	locks *accountlock.Service,
	pm *paymaster.State,
	consensusCli consensus.Client,
	mirrorCli mirror.Client,
	logger log.Logger,
	m *metrics.Registry,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		locks:     locks,
		paymaster: pm,
		consensus: consensusCli,
		mirrorCli: mirrorCli,
		logger:    logger.With(log.ModuleKey, "submission"),
		metrics:   m,
	}
}

// Submit runs the full pipeline for one raw signed transaction,
// recording its outcome and latency under SubmissionSeconds.
func (p *Pipeline) Submit(ctx context.Context, raw []byte) (Result, *rpcerror.Error) {
	start := time.Now()
	res, rerr := p.submit(ctx, raw)
	if p.metrics != nil {
		outcome := "accepted"
		if rerr != nil {
			outcome = "rejected"
		}
		p.metrics.SubmissionSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
	return res, rerr
}

// submit is the unwrapped six-step body; Submit exists solely to
// bracket it with latency/outcome instrumentation.
func (p *Pipeline) submit(ctx context.Context, raw []byte) (Result, *rpcerror.Error) {
	// 1. decode; reject trailing bytes.
	tx, err := chaintypes.DecodeRawTransaction(raw)
	if err != nil {
		if err == chaintypes.ErrTrailingBytes {
			return Result{}, rpcerror.InvalidArguments("unexpected junk after rlp payload")
		}
		return Result{}, rpcerror.InvalidArguments(err.Error())
	}

	// 2. read-only gate.
	if p.cfg.ReadOnly {
		return Result{}, rpcerror.UnsupportedOperation("Relay is in read-only mode")
	}

	if tx.ChainID != nil && tx.ChainID.Uint64() != p.cfg.ChainID {
		return Result{}, rpcerror.UnsupportedChainID(hexutil.EncodeUint64(tx.ChainID.Uint64()), hexutil.EncodeUint64(p.cfg.ChainID))
	}

	from, rerr := tx.RecoverSender(p.cfg.ChainID)
	if rerr != nil {
		return Result{}, rpcerror.InvalidArguments("could not recover sender from signature")
	}

	// 3. acquire the account lock for the recovered signer.
	tok, lockErr := p.locks.Acquire(ctx, from)
	if lockErr != nil {
		return Result{}, rpcerror.InternalError(lockErr)
	}
	defer p.locks.Release(tok)

	account, merr := p.mirrorCli.Account(ctx, from)
	if merr != nil {
		return Result{}, rpcerror.InternalError(merr)
	}

	gasPrice, gerr := p.mirrorCli.LatestGasPrice(ctx)
	if gerr != nil {
		return Result{}, rpcerror.InternalError(gerr)
	}

	// Paymaster is only ever consulted for a zero-fee submission (spec
	// §4.5); a nonzero (even if insufficient) gas price must fail
	// precheck's step 5 on its own terms, not be waved through here.
	var subsidised bool
	if ep := tx.EffectiveGasPrice(); ep == nil || ep.Sign() == 0 {
		subsidised = p.paymaster.Decide(tx.To)
	}

	// 4. precheck + paymaster.
	if perr := precheck.Check(tx, account, precheck.Params{
		Cfg:                 p.cfg,
		ReferenceGasPrice:   gasPrice,
		PaymasterSubsidised: subsidised,
		PoolEnabled:         p.cfg.EnableTxPool,
		AsyncProcessing:     p.cfg.UseAsyncTxProcessing,
	}); perr != nil {
		return Result{}, perr
	}

	// 5. jumbo-tx split.
	submitRaw := raw
	var fileRef string
	if len(tx.Data) > JumboInlineThreshold && !p.cfg.JumboTxEnabled {
		ref, serr := p.consensus.StageJumbo(ctx, tx.Data)
		if serr != nil {
			return Result{}, rpcerror.InternalError(serr)
		}
		fileRef = ref
		submitRaw = raw // SubmitRaw takes no file reference; the raw bytes, call data included, go unchanged
	}

	// 6. submit. Both modes return once SubmitRaw answers; neither waits
	// for the consensus outcome, and UseAsyncTxProcessing only sets
	// Result.Predicted. A SubmitRaw error is not retried.
	submitResult, serr := p.consensus.SubmitRaw(ctx, submitRaw)
	if serr != nil {
		if fileRef != "" {
			p.scheduleJumboCleanup(fileRef)
		}
		return Result{}, rpcerror.InternalError(serr)
	}

	if subsidised {
		p.paymaster.Debit(estimateCost(gasPrice, tx.GasLimit))
	}

	if fileRef != "" {
		p.scheduleJumboCleanup(fileRef)
	}

	return Result{TransactionHash: submitResult.TransactionHash, Predicted: p.cfg.UseAsyncTxProcessing}, nil
}

// scheduleJumboCleanup releases a staged file once the submission that
// referenced it has reached a terminal state. It runs detached from the
// request context since the file must be cleaned up even if the caller
// has since disconnected.
func (p *Pipeline) scheduleJumboCleanup(fileRef string) {
	p.cleanupWG.Add(1)
	go func() {
		defer p.cleanupWG.Done()
		if err := p.consensus.CleanupJumbo(context.Background(), fileRef); err != nil {
			p.logger.Error("jumbo file cleanup failed", "file_ref", fileRef, "err", err)
		}
	}()
}

// Wait blocks until all in-flight jumbo-file cleanups have completed;
// used by tests, not by production request handling.
func (p *Pipeline) Wait() { p.cleanupWG.Wait() }

// estimateCost prices gasLimit at the reference gas price; a subsidised
// transaction carries a zero price of its own.
func estimateCost(price *big.Int, gasLimit uint64) int64 {
	if price == nil {
		return 0
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit)).Int64()
}
