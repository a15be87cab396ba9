package consensus

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func newSignedRawTxTo(t *testing.T, to common.Address) []byte {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := ethtypes.NewTransaction(0, to, big.NewInt(0), 21_000, big.NewInt(100_000_000_000), nil)
	signer := ethtypes.NewEIP155Signer(big.NewInt(295))
	signed, err := ethtypes.SignTx(tx, signer, key)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func longZeroAddress(accountID uint64) common.Address {
	var addr common.Address
	for i := 0; i < 8; i++ {
		addr[19-i] = byte(accountID >> (8 * i))
	}
	return addr
}

func TestSubmitRawRevertsReservedAccountAsInvalidContractID(t *testing.T) {
	f := NewFake()
	raw := newSignedRawTxTo(t, longZeroAddress(750))

	result, err := f.SubmitRaw(context.Background(), raw)
	require.NoError(t, err)
	require.False(t, result.Accepted)
	require.Equal(t, "INVALID_CONTRACT_ID", result.RevertReason)
}

func TestSubmitRawRevertsUnknownAliasAsInvalidAliasKey(t *testing.T) {
	f := NewFake()
	raw := newSignedRawTxTo(t, longZeroAddress(751))

	result, err := f.SubmitRaw(context.Background(), raw)
	require.NoError(t, err)
	require.False(t, result.Accepted)
	require.Equal(t, "INVALID_ALIAS_KEY", result.RevertReason)
}

func TestSubmitRawAcceptsExistingAccountAboveCeiling(t *testing.T) {
	addr := longZeroAddress(751)
	f := NewFake(addr)
	raw := newSignedRawTxTo(t, addr)

	result, err := f.SubmitRaw(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.Empty(t, result.RevertReason)
}

func TestSubmitRawAcceptsOrdinaryEvmAddress(t *testing.T) {
	f := NewFake()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := crypto.PubkeyToAddress(key.PublicKey)
	raw := newSignedRawTxTo(t, to)

	result, serr := f.SubmitRaw(context.Background(), raw)
	require.NoError(t, serr)
	require.True(t, result.Accepted)
}
