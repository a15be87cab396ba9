package submission

import (
	"context"
	"math/big"
	"testing"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/hashlink-network/eth-rpc-relay/accountlock"
	"github.com/hashlink-network/eth-rpc-relay/chaintypes"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/consensus"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
	"github.com/hashlink-network/eth-rpc-relay/paymaster"
)

const testChainID = 295

func newSignedRawTx(t *testing.T, nonce uint64, gasLimit uint64, data []byte) (raw []byte, from common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from = crypto.PubkeyToAddress(key.PublicKey)

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, big.NewInt(100_000_000_000), data)
	signer := ethtypes.NewEIP155Signer(big.NewInt(testChainID))
	signed, err := ethtypes.SignTx(tx, signer, key)
	require.NoError(t, err)

	raw, err = signed.MarshalBinary()
	require.NoError(t, err)
	return raw, from
}

func newTestPipeline(t *testing.T, cfg config.Snapshot, from common.Address) (*Pipeline, *mirror.Fake, *consensus.Fake) {
	t.Helper()
	cfg.ChainID = testChainID
	if cfg.SendRawTransactionSizeLimit == 0 {
		cfg.SendRawTransactionSizeLimit = 130 * 1024
	}
	if cfg.CallDataSizeLimit == 0 {
		cfg.CallDataSizeLimit = 128 * 1024
	}
	if cfg.ContractCodeSizeLimit == 0 {
		cfg.ContractCodeSizeLimit = 24 * 1024
	}
	if cfg.MaxTransactionFeeThreshold == 0 {
		cfg.MaxTransactionFeeThreshold = 15_000_000
	}

	mirrorFake := mirror.NewFake()
	mirrorFake.SetAccount(chaintypes.AccountView{
		Address:       from,
		BalanceWeibar: new(big.Int).Mul(big.NewInt(1_000_000_000_000_000_000), big.NewInt(1_000)),
	})

	consensusFake := consensus.NewFake()
	locks := accountlock.NewService(log.NewNopLogger())
	pm := paymaster.NewState(cfg)

	p := NewPipeline(cfg, locks, pm, consensusFake, mirrorFake, log.NewNopLogger(), nil)
	return p, mirrorFake, consensusFake
}

func TestSubmitHappyPath(t *testing.T) {
	raw, from := newSignedRawTx(t, 0, 21000, nil)
	p, _, _ := newTestPipeline(t, config.Snapshot{}, from)

	res, err := p.Submit(context.Background(), raw)
	require.Nil(t, err)
	require.NotEqual(t, common.Hash{}, res.TransactionHash)
	p.Wait()
}

func TestSubmitRejectsWhenReadOnly(t *testing.T) {
	raw, from := newSignedRawTx(t, 0, 21000, nil)
	p, _, _ := newTestPipeline(t, config.Snapshot{ReadOnly: true}, from)

	_, err := p.Submit(context.Background(), raw)
	require.NotNil(t, err)
	require.Equal(t, "Relay is in read-only mode", err.Message)
}

func TestSubmitRejectsTrailingBytes(t *testing.T) {
	raw, from := newSignedRawTx(t, 0, 21000, nil)
	p, _, _ := newTestPipeline(t, config.Snapshot{}, from)

	_, err := p.Submit(context.Background(), append(raw, 0xFF))
	require.NotNil(t, err)
}

func TestSubmitRunsPrecheckAndRejectsBadNonce(t *testing.T) {
	raw, from := newSignedRawTx(t, 5, 21000, nil)
	p, mirrorFake, _ := newTestPipeline(t, config.Snapshot{}, from)
	mirrorFake.SetAccount(chaintypes.AccountView{
		Address:       from,
		BalanceWeibar: new(big.Int).Mul(big.NewInt(1_000_000_000_000_000_000), big.NewInt(1_000)),
		NonceLatest:   0,
	})

	_, err := p.Submit(context.Background(), raw)
	require.NotNil(t, err)
}

func TestSubmitStagesJumboCallData(t *testing.T) {
	data := make([]byte, JumboInlineThreshold+1024)
	raw, from := newSignedRawTx(t, 0, 300_000, data)
	p, _, consensusFake := newTestPipeline(t, config.Snapshot{}, from)

	res, err := p.Submit(context.Background(), raw)
	require.Nil(t, err)
	require.NotEqual(t, common.Hash{}, res.TransactionHash)

	p.Wait()
	require.Equal(t, 0, consensusFake.StagedCount())
}

func TestSubmitDebitsPaymasterWhenSubsidised(t *testing.T) {
	// The paymaster is consulted only for a zero gas price, so this
	// transaction is signed with price 0 rather than via newSignedRawTx.
	key, kerr := crypto.GenerateKey()
	require.NoError(t, kerr)
	from := crypto.PubkeyToAddress(key.PublicKey)
	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	signed, serr := ethtypes.SignTx(ethtypes.NewTransaction(0, to, big.NewInt(0), 21000, big.NewInt(0), nil), ethtypes.NewEIP155Signer(big.NewInt(testChainID)), key)
	require.NoError(t, serr)
	raw, merr := signed.MarshalBinary()
	require.NoError(t, merr)

	cfg := config.Snapshot{
		PaymasterEnabled:    true,
		PaymasterWhitelist:  []string{config.PaymasterWhitelistWildcard},
		MaxGasAllowanceHbar: 1_000_000_000_000_000_000,
	}
	p, _, _ := newTestPipeline(t, cfg, from)

	_, err := p.Submit(context.Background(), raw)
	require.Nil(t, err)
	require.Less(t, p.paymaster.RemainingAllowance(), int64(1_000_000_000_000_000_000))
}
