// Package precheck implements the purely synchronous validation stage
// described in spec §4.3: given a decoded ChainTransaction and the
// signer's AccountView, it runs the ten ordered checks and returns the
// first violated one as an *rpcerror.Error, or nil when the transaction
// may proceed to the Account Lock Service.
//
// The check ordering and one-comment-per-step style are adapted
// directly from the teacher's ante/evm/mono_decorator.go, which runs an
// analogous ordered sequence of EVM-execution prechecks inside
// baseapp; here the same shape validates a submission before it is
// ever forwarded to consensus, rather than before in-process execution.
package precheck

import (
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
)

// Params bundles the configuration and live reference values Check
// needs beyond the transaction and account themselves.
type Params struct {
	Cfg config.Snapshot

	// ReferenceGasPrice is the current chain gas-price reference read
	// once per request (spec §4.3 step 5).
	ReferenceGasPrice *big.Int

	// PaymasterSubsidised is the outcome of the Paymaster decision
	// procedure (spec §4.5) for a zero-fee transaction; it overrides
	// step 5 when true.
	PaymasterSubsidised bool

	// PoolEnabled/AsyncProcessing together select which account nonce
	// field is authoritative for step 8 (spec §4.3.8).
	PoolEnabled     bool
	AsyncProcessing bool
}

// Check runs the ten ordered checks of spec §4.3 against tx and
// account, returning the first violation.
func Check(tx *chaintypes.ChainTransaction, account chaintypes.AccountView, p Params) *rpcerror.Error {
	// 1. chain id matches; signature recovers to a non-zero address.
	if tx.ChainID != nil && tx.ChainID.Uint64() != p.Cfg.ChainID {
		return rpcerror.UnsupportedChainID(hexUint(tx.ChainID.Uint64()), hexUint(p.Cfg.ChainID))
	}
	from, err := tx.RecoverSender(p.Cfg.ChainID)
	if err != nil {
		return rpcerror.InvalidArguments("could not recover sender from signature")
	}
	if from == (chaintypes.EmptyAddress) {
		return rpcerror.InvalidArguments("recovered sender is the zero address")
	}

	// 2. total raw transaction size within limit.
	if len(tx.Raw) > p.Cfg.SendRawTransactionSizeLimit {
		return rpcerror.TransactionSizeLimitExceeded(len(tx.Raw), p.Cfg.SendRawTransactionSizeLimit)
	}

	// 3. call-data size within limit.
	if len(tx.Data) > p.Cfg.CallDataSizeLimit {
		return rpcerror.CallDataSizeLimitExceeded(len(tx.Data), p.Cfg.CallDataSizeLimit)
	}

	// 4. contract creation: code size (== call-data size) within limit.
	if tx.IsContractCreation() && len(tx.Data) > p.Cfg.ContractCodeSizeLimit {
		return rpcerror.ContractCodeSizeLimitExceeded(len(tx.Data), p.Cfg.ContractCodeSizeLimit)
	}

	// 5. effective gas price meets the reference, unless the paymaster
	// has subsidised this transaction.
	if !p.PaymasterSubsidised {
		effective := tx.EffectiveGasPrice()
		if effective == nil || p.ReferenceGasPrice == nil || effective.Cmp(p.ReferenceGasPrice) < 0 {
			got := "0x0"
			if effective != nil {
				got = hexBig(effective)
			}
			ref := "0x0"
			if p.ReferenceGasPrice != nil {
				ref = hexBig(p.ReferenceGasPrice)
			}
			return rpcerror.GasPriceTooLow(got, ref)
		}
	}

	// 6. gas limit within [intrinsic(data), MAX_TRANSACTION_FEE_THRESHOLD].
	floor := IntrinsicGas(tx.Data, tx.IsContractCreation(), len(tx.AccessList) > 0, tx.AccessList)
	if tx.GasLimit < floor {
		return rpcerror.GasLimitTooLow(tx.GasLimit, floor)
	}
	if tx.GasLimit > p.Cfg.MaxTransactionFeeThreshold {
		return rpcerror.GasLimitTooHigh(tx.GasLimit, p.Cfg.MaxTransactionFeeThreshold)
	}

	// 7. signer balance covers value + gasLimit * effectiveGasPrice.
	cost := new(big.Int)
	if ep := tx.EffectiveGasPrice(); ep != nil {
		cost.Mul(ep, new(big.Int).SetUint64(tx.GasLimit))
	}
	if tx.Value != nil {
		cost.Add(cost, tx.Value)
	}
	if account.BalanceWeibar == nil || account.BalanceWeibar.Cmp(cost) < 0 {
		return rpcerror.InsufficientAccountBalance()
	}

	// 8. nonce matches the authoritative pending/latest field.
	authoritative := account.NonceLatest
	if p.PoolEnabled && p.AsyncProcessing {
		authoritative = account.NoncePending
	}
	switch {
	case tx.Nonce < authoritative:
		return rpcerror.NonceTooLow(tx.Nonce, authoritative)
	case tx.Nonce > authoritative:
		return rpcerror.NonceTooHigh(tx.Nonce, authoritative)
	}

	// 9. value transfers to a receiver-signature-required account are
	// rejected.
	if tx.IsValueTransfer() && account.ReceiverSigRequired {
		return rpcerror.ReceiverSignatureEnabled()
	}

	// 10. non-empty access list only accepted for type 1.
	if tx.Type != chaintypes.TxTypeLegacy2930 && len(tx.AccessList) > 0 {
		return rpcerror.InvalidArguments("access list only supported for EIP-2930 transactions")
	}

	return nil
}

// IntrinsicGas computes the minimum gas a transaction must supply,
// mirroring go-ethereum's core.IntrinsicGas formula (EIP-2028 data
// costs + EIP-2930 access-list costs) without importing the heavy
// core package, which pulls in the full state-transition machinery
// this stateless gateway never exercises.
func IntrinsicGas(data []byte, isContractCreation, hasAccessList bool, accessList interface{ StorageKeys() int }) uint64 {
	gas := params.TxGas
	if isContractCreation {
		gas = params.TxGasContractCreation
	}

	var nonZero, zero uint64
	for _, b := range data {
		if b == 0 {
			zero++
		} else {
			nonZero++
		}
	}
	gas += zero * params.TxDataZeroGas
	gas += nonZero * params.TxDataNonZeroGasEIP2028

	if hasAccessList && accessList != nil {
		// every address entry and every storage key is charged; an
		// implementation other than ethtypes.AccessList is charged for
		// one address entry.
		addresses := uint64(1)
		if al, ok := accessList.(ethtypes.AccessList); ok {
			addresses = uint64(len(al))
		}
		gas += addresses * params.TxAccessListAddressGas
		gas += uint64(accessList.StorageKeys()) * params.TxAccessListStorageKeyGas
	}

	return gas
}

func hexUint(v uint64) string { return "0x" + big.NewInt(0).SetUint64(v).Text(16) }
func hexBig(v *big.Int) string { return "0x" + v.Text(16) }
