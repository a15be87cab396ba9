package precheck

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
)

func signedTx(t *testing.T, chainID uint64, nonce uint64, gasLimit uint64, gasPrice *big.Int, data []byte) *chaintypes.ChainTransaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x00000000000000000000000000000000000001")
	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signer := ethtypes.NewEIP155Signer(new(big.Int).SetUint64(chainID))
	signed, err := ethtypes.SignTx(tx, signer, key)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	ct, err := chaintypes.DecodeRawTransaction(raw)
	require.NoError(t, err)
	return ct
}

func baseParams() Params {
	return Params{
		Cfg: config.Snapshot{
			ChainID:                    295,
			SendRawTransactionSizeLimit: 130 * 1024,
			CallDataSizeLimit:           128 * 1024,
			ContractCodeSizeLimit:       24 * 1024,
			MaxTransactionFeeThreshold:  15_000_000,
		},
		ReferenceGasPrice: big.NewInt(100_000_000_000),
	}
}

func richAccount() chaintypes.AccountView {
	return chaintypes.AccountView{BalanceWeibar: new(big.Int).Mul(big.NewInt(1_000_000_000_000_000_000), big.NewInt(1_000))}
}

func TestUnsupportedChainID(t *testing.T) {
	tx := signedTx(t, 999, 0, 21000, big.NewInt(100_000_000_000), nil)
	p := baseParams()
	err := Check(tx, richAccount(), p)
	require.NotNil(t, err)
	require.Equal(t, rpcerror.KindUnsupportedChainID, err.Kind)
	require.Contains(t, err.Message, "0x3e7")
	require.Contains(t, err.Message, "0x127")
}

func TestGasLimitTooLow(t *testing.T) {
	tx := signedTx(t, 295, 0, 100, big.NewInt(100_000_000_000), nil)
	p := baseParams()
	err := Check(tx, richAccount(), p)
	require.NotNil(t, err)
	require.Equal(t, rpcerror.KindGasLimitTooLow, err.Kind)
}

func TestCallDataSizeLimitExceeded(t *testing.T) {
	limit := 128 * 1024
	data := make([]byte, limit+1024)
	tx := signedTx(t, 295, 0, 30_000_000, big.NewInt(100_000_000_000), data)
	p := baseParams()
	p.Cfg.SendRawTransactionSizeLimit = limit + 8192
	err := Check(tx, richAccount(), p)
	require.NotNil(t, err)
	require.Equal(t, rpcerror.KindCallDataSizeLimitExceeded, err.Kind)
}

func TestGasPriceTooLowUnlessPaymasterSubsidises(t *testing.T) {
	tx := signedTx(t, 295, 0, 21000, big.NewInt(1), nil)
	p := baseParams()

	err := Check(tx, richAccount(), p)
	require.NotNil(t, err)
	require.Equal(t, rpcerror.KindGasPriceTooLow, err.Kind)

	p.PaymasterSubsidised = true
	err = Check(tx, richAccount(), p)
	require.Nil(t, err)
}

func TestNonceTooHighWithoutPool(t *testing.T) {
	tx := signedTx(t, 295, 5, 21000, big.NewInt(100_000_000_000), nil)
	p := baseParams()
	account := richAccount()
	account.NonceLatest = 1
	account.NoncePending = 1

	err := Check(tx, account, p)
	require.NotNil(t, err)
	require.Equal(t, rpcerror.KindNonceTooHigh, err.Kind)
}

func TestNonceMatchesPendingWhenPoolEnabled(t *testing.T) {
	tx := signedTx(t, 295, 5, 21000, big.NewInt(100_000_000_000), nil)
	p := baseParams()
	p.PoolEnabled = true
	p.AsyncProcessing = true

	account := richAccount()
	account.NonceLatest = 1
	account.NoncePending = 5

	err := Check(tx, account, p)
	require.Nil(t, err)
}

func TestInsufficientBalance(t *testing.T) {
	tx := signedTx(t, 295, 0, 21000, big.NewInt(100_000_000_000), nil)
	p := baseParams()
	account := chaintypes.AccountView{BalanceWeibar: big.NewInt(1)}

	err := Check(tx, account, p)
	require.NotNil(t, err)
	require.Equal(t, rpcerror.KindInsufficientAccountBalance, err.Kind)
}
