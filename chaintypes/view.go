package chaintypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AccountView is a Mirror API-sourced, never-authoritative projection
// of one account's chain state (spec §3). It may lag Mirror's own
// finalised state by up to one consensus round.
type AccountView struct {
	Address               common.Address
	NonceLatest            uint64
	NoncePending           uint64
	BalanceWeibar          *big.Int
	CodeHash               common.Hash
	ReceiverSigRequired    bool
}

// Log is the Ethereum-shaped projection of one Mirror API contract
// result log.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte

	BlockNumber uint64
	BlockHash   common.Hash
	TxHash      common.Hash
	TxIndex     uint
	Index       uint
	Removed     bool
}

// TransactionReceipt is the Ethereum-shaped projection of one Mirror API
// transaction record. Synthetic transactions (native transfers that
// produce logs but no EVM execution) are projected with Gas = GasUsed =
// 0, Input = Output = nil, and no sub-calls, per spec §3.
type TransactionReceipt struct {
	TransactionHash   common.Hash
	TransactionIndex  uint
	BlockHash         common.Hash
	BlockNumber       uint64
	From              common.Address
	To                *common.Address
	CumulativeGasUsed uint64
	GasUsed           uint64
	ContractAddress   *common.Address
	Logs              []Log
	LogsBloom         [256]byte
	Status            uint64 // 0x1 success, 0x0 failure
	EffectiveGasPrice *big.Int
	Type              uint8

	// RevertReason is the UTF-8 decoded consensus revert reason (e.g.
	// "INVALID_CONTRACT_ID", "INVALID_ALIAS_KEY" for reserved-address
	// submissions per spec §4.6) surfaced through the receipt rather
	// than as an RPC error.
	RevertReason string
}

// Synthetic reports whether this receipt represents a native-token
// transfer rather than EVM execution (spec §3: gas = gasUsed = 0).
func (r *TransactionReceipt) Synthetic() bool {
	return r.GasUsed == 0
}

// Block is the Ethereum-shaped projection of one Mirror API block
// record.
type Block struct {
	Number           uint64
	Hash             common.Hash
	ParentHash       common.Hash
	Timestamp        uint64
	GasLimit         uint64
	GasUsed          uint64
	BaseFeePerGas    *big.Int
	TransactionHashes []common.Hash
	Transactions      []*ChainTransaction // only populated when fullTx requested
	LogsBloom        [256]byte
}

// BlockTag identifies one of the recognised Ethereum block tag strings
// or a specific numeric height (spec §6).
type BlockTag struct {
	Tag    string // "latest", "pending", "safe", "finalized", "earliest", or "" when Number is set
	Number *uint64
}

// ParseBlockTag accepts either a recognised tag string or a 0x-prefixed
// hex block number.
func ParseBlockTag(s string) (BlockTag, error) {
	switch s {
	case "latest", "pending", "safe", "finalized", "earliest":
		return BlockTag{Tag: s}, nil
	}
	n, err := hexutil.DecodeUint64(s)
	if err != nil {
		return BlockTag{}, err
	}
	return BlockTag{Number: &n}, nil
}

// CacheKeyTag returns the tag used for cache namespacing: the literal
// tag string for floating tags, or "earliest"/the numeric string for
// tags that may be cached (spec §4.2, §6).
func (b BlockTag) CacheKeyTag() string {
	if b.Number != nil {
		return hexutil.EncodeUint64(*b.Number)
	}
	return b.Tag
}

// LogFilter is the positional address/topic filter attached to a Logs
// subscription (spec §3).
type LogFilter struct {
	Addresses []common.Address
	// Topics is a positional array up to 4 entries; each entry is nil
	// (wildcard) or a non-empty set of 32-byte topics to match at that
	// position.
	Topics [][]common.Hash
}

// Matches implements the filter semantics of spec §4.9: empty address
// set matches any address (case-insensitive 20-byte comparison is
// implicit since common.Address is a fixed-size array compared by
// value); each topic position is wildcard or a set; events with fewer
// topics than a non-wildcard filter position never match.
func (f LogFilter) Matches(l Log) bool {
	if len(f.Addresses) > 0 {
		found := false
		for _, a := range f.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for i, wanted := range f.Topics {
		if wanted == nil {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		matched := false
		for _, w := range wanted {
			if w == l.Topics[i] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
