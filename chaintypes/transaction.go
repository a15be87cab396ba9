// Package chaintypes holds the Ethereum-shaped data model synthesised
// from Mirror API records (spec §3): ChainTransaction, AccountView,
// Block/TransactionReceipt/Log projections, and SubscriptionRecord's
// LogFilter. RLP decode/encode and ECDSA recovery are delegated to
// github.com/ethereum/go-ethereum's core/types, rlp, and crypto
// packages rather than reimplemented — every example repo in the pack
// that speaks Ethereum wire format does the same.
package chaintypes

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// EmptyAddress is the zero Ethereum address, used to detect a failed
// signature recovery (spec §4.3 step 1).
var EmptyAddress = common.Address{}

// TxType mirrors the three ChainTransaction variants named in spec §3.
type TxType int

const (
	TxTypeLegacy TxType = iota
	TxTypeLegacy2930
	TxTypeEip1559
)

// ChainTransaction is the decoded, not-yet-submitted form of a signed
// raw transaction. It is produced by DecodeRawTransaction and carries
// everything Precheck (§4.3) needs.
type ChainTransaction struct {
	Type TxType

	ChainID *big.Int // nil for a Legacy tx with no replay protection

	Nonce    uint64
	GasLimit uint64

	// Exactly one of these forms is populated, per Type.
	GasPrice             *big.Int // Legacy, Legacy2930
	MaxFeePerGas         *big.Int // Eip1559
	MaxPriorityFeePerGas *big.Int // Eip1559

	To    *common.Address // nil for contract creation
	Value *big.Int
	Data  []byte

	AccessList ethtypes.AccessList

	V, R, S *big.Int

	// Raw is the exact bytes that were decoded; re-encoding must
	// reproduce this slice exactly (spec §8 round-trip property).
	Raw []byte

	// From is populated by RecoverSender, not by decode itself.
	from *common.Address
}

// ErrTrailingBytes is returned when the RLP payload has bytes left over
// after decoding one transaction (submission pipeline step 1, §4.6).
var ErrTrailingBytes = errors.New("unexpected junk after rlp payload")

// DecodeRawTransaction parses raw (as produced by eth_sendRawTransaction)
// into a ChainTransaction. It rejects trailing bytes and enforces that
// exactly one gas-price form is present for the decoded type and that an
// access list is only accepted for type 1.
func DecodeRawTransaction(raw []byte) (*ChainTransaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}

	// UnmarshalBinary does not itself reject trailing bytes appended
	// after a well-formed typed-transaction envelope; re-encoding and
	// comparing lengths catches exactly that case without reaching into
	// rlp.Stream internals.
	reEncoded, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(reEncoded) != len(raw) {
		return nil, ErrTrailingBytes
	}

	ct := &ChainTransaction{
		Nonce:      tx.Nonce(),
		GasLimit:   tx.Gas(),
		To:         tx.To(),
		Value:      tx.Value(),
		Data:       tx.Data(),
		AccessList: tx.AccessList(),
		Raw:        raw,
	}
	ct.ChainID = tx.ChainId()

	switch tx.Type() {
	case ethtypes.LegacyTxType:
		ct.Type = TxTypeLegacy
		ct.GasPrice = tx.GasPrice()
		if ct.ChainID != nil && ct.ChainID.Sign() == 0 {
			ct.ChainID = nil
		}
	case ethtypes.AccessListTxType:
		ct.Type = TxTypeLegacy2930
		ct.GasPrice = tx.GasPrice()
	case ethtypes.DynamicFeeTxType:
		ct.Type = TxTypeEip1559
		ct.MaxFeePerGas = tx.GasFeeCap()
		ct.MaxPriorityFeePerGas = tx.GasTipCap()
		if len(ct.AccessList) > 0 {
			return nil, errors.New("access list rejected for type 2 transaction")
		}
	default:
		return nil, errors.New("unsupported transaction type")
	}

	v, r, s := tx.RawSignatureValues()
	ct.V, ct.R, ct.S = v, r, s

	return ct, nil
}

// RecoverSender recovers the signer address from the transaction's
// signature using the configured chain id for EIP-155 replay
// protection. It is the first Precheck step (§4.3.1).
func (ct *ChainTransaction) RecoverSender(configuredChainID uint64) (common.Address, error) {
	if ct.from != nil {
		return *ct.from, nil
	}
	tx, err := ct.toEthTransaction()
	if err != nil {
		return common.Address{}, err
	}
	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(configuredChainID))
	addr, err := ethtypes.Sender(signer, tx)
	if err != nil {
		return common.Address{}, err
	}
	ct.from = &addr
	return addr, nil
}

func (ct *ChainTransaction) toEthTransaction() (*ethtypes.Transaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(ct.Raw); err == nil {
		return tx, nil
	}
	if err := rlp.DecodeBytes(ct.Raw, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Hash returns the keccak256 transaction hash used to key Mirror API
// lookups and receipts.
func (ct *ChainTransaction) Hash() common.Hash {
	return crypto.Keccak256Hash(ct.Raw)
}

// IsContractCreation reports whether To is empty, per spec §3/§4.3.4.
func (ct *ChainTransaction) IsContractCreation() bool { return ct.To == nil }

// IsValueTransfer reports whether this transaction carries no call data
// and a positive value, the shape Precheck step 9 (§4.3) gates on the
// receiver-signature-required flag.
func (ct *ChainTransaction) IsValueTransfer() bool {
	return len(ct.Data) == 0 && ct.Value != nil && ct.Value.Sign() > 0
}

// EffectiveGasPrice returns the gas price Precheck compares against the
// reference price: GasPrice for Legacy/Legacy2930, MaxFeePerGas for
// Eip1559 (the conservative upper bound the sender is willing to pay).
func (ct *ChainTransaction) EffectiveGasPrice() *big.Int {
	if ct.Type == TxTypeEip1559 {
		return ct.MaxFeePerGas
	}
	return ct.GasPrice
}
