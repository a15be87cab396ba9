package consensus

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
)

// reservedAccountCeiling is the account-id boundary separating
// treasury/admin/precompile accounts (<= 750, never assignable to a
// user) from the ordinary account range (spec §4.6, §8 scenario 5).
const reservedAccountCeiling = 750

// Fake is an in-memory Client for tests and local bring-up, not a
// production consensus-node SDK client.
type Fake struct {
	mu sync.Mutex
	// existing tracks addresses in the >750 range that are known to
	// exist; anything else in that range yields INVALID_ALIAS_KEY.
	existing map[common.Address]struct{}
	staged   map[string][]byte
	seq      int
}

func NewFake(existing ...common.Address) *Fake {
	f := &Fake{
		existing: make(map[common.Address]struct{}, len(existing)),
		staged:   make(map[string][]byte),
	}
	for _, a := range existing {
		f.existing[a] = struct{}{}
	}
	return f
}

// MarkExisting records addr (expected to be in the >750 long-zero
// range) as an existing account, so a submission targeting it does not
// revert with INVALID_ALIAS_KEY.
func (f *Fake) MarkExisting(addr common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existing[addr] = struct{}{}
}

func (f *Fake) SubmitRaw(_ context.Context, raw []byte) (SubmitResult, error) {
	hash := common.Hash(sha256.Sum256(raw))

	tx, err := chaintypes.DecodeRawTransaction(raw)
	if err != nil || tx.To == nil {
		// Contract creation, or bytes this fake can't decode: no
		// reserved-address classification applies, accept as-is.
		return SubmitResult{TransactionHash: hash, Accepted: true}, nil
	}

	if id, isLongZero := accountIDFromAddress(*tx.To); isLongZero {
		if id <= reservedAccountCeiling {
			return SubmitResult{TransactionHash: hash, Accepted: false, RevertReason: "INVALID_CONTRACT_ID"}, nil
		}
		f.mu.Lock()
		_, exists := f.existing[*tx.To]
		f.mu.Unlock()
		if !exists {
			return SubmitResult{TransactionHash: hash, Accepted: false, RevertReason: "INVALID_ALIAS_KEY"}, nil
		}
	}

	return SubmitResult{TransactionHash: hash, Accepted: true}, nil
}

// accountIDFromAddress decodes a 20-byte address in the long-zero
// shape (12 zero bytes followed by a big-endian account number) used
// to mirror a consensus-node account id onto an Ethereum address.
// isLongZero is false for any address that isn't in that shape (e.g. a
// real EVM alias), which this fake never classifies as reserved.
func accountIDFromAddress(addr common.Address) (id uint64, isLongZero bool) {
	for _, b := range addr[:12] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.BigEndian.Uint64(addr[12:]), true
}

func (f *Fake) StageJumbo(_ context.Context, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ref := common.Hash(sha256.Sum256(data)).Hex()
	f.staged[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (f *Fake) CleanupJumbo(_ context.Context, fileRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.staged, fileRef)
	return nil
}

// StagedCount reports how many jumbo files are currently staged
// (uncleaned), for tests asserting cleanup ran.
func (f *Fake) StagedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.staged)
}

var _ Client = (*Fake)(nil)
