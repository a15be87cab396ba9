// Package consensus defines the gateway's dependency on the underlying
// non-EVM consensus node (spec §1: only its interface is specified, not
// a production client). SubmitRaw, StageJumbo and CleanupJumbo are the
// only calls the Submission Pipeline makes; everything else about the consensus node
// — block production, gossip, staking — is out of scope.
package consensus

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// SubmitResult is what the consensus node hands back immediately on
// submission, before the transaction has necessarily reached finality.
type SubmitResult struct {
	TransactionHash common.Hash
	Accepted        bool
	RevertReason    string
}

// Client is the narrow surface the Submission Pipeline needs from the
// consensus node.
type Client interface {
	// SubmitRaw submits an already-validated, already-signed
	// transaction. Per spec §4.6, the pipeline calls this synchronously
	// or asynchronously depending on config.Snapshot.UseAsyncTxProcessing;
	// Client itself is agnostic to that distinction.
	SubmitRaw(ctx context.Context, raw []byte) (SubmitResult, error)

	// StageJumbo uploads call data too large to submit inline (spec §6
	// jumboTxEnabled) to the consensus node's file service ahead of
	// submission, returning a reference to the staged file. SubmitRaw
	// takes no file reference, so this interface does not link the
	// staged file to the submitted transaction.
	StageJumbo(ctx context.Context, data []byte) (fileRef string, err error)

	// CleanupJumbo releases a staged file, called once the transaction
	// referencing it has reached a terminal state (committed or
	// rejected) so the consensus node is not left holding abandoned
	// uploads.
	CleanupJumbo(ctx context.Context, fileRef string) error
}
