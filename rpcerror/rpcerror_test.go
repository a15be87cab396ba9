package rpcerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnsupportedChainIDMessage(t *testing.T) {
	err := UnsupportedChainID("0x3e7", "0x127")
	require.Contains(t, err.Message, "0x3e7")
	require.Contains(t, err.Message, "0x127")
	require.True(t, err.UserSurfaceable())
	require.True(t, err.PrecheckLevel())
}

func TestGasLimitTooLow(t *testing.T) {
	err := GasLimitTooLow(100, 15000000)
	require.Equal(t, KindGasLimitTooLow, err.Kind)
	require.Contains(t, err.Message, "100")
	require.Contains(t, err.Message, "15000000")
}

func TestCallDataSizeLimitExceeded(t *testing.T) {
	limit := 128 * 1024
	err := CallDataSizeLimitExceeded(limit+1024, limit)
	require.Equal(t, KindCallDataSizeLimitExceeded, err.Kind)
	require.Contains(t, err.Message, fmt.Sprintf("%d", limit+1024))
}

func TestInternalErrorNeverLeaksCause(t *testing.T) {
	cause := errors.New("mirror node returned a stack trace with secrets")
	err := InternalError(cause)
	require.False(t, err.UserSurfaceable())
	require.NotContains(t, err.Message, "secrets")
	require.ErrorIs(t, err, cause)
}

func TestAsUnwrapsWrappedError(t *testing.T) {
	base := GasPriceTooLow("0x1", "0x2")
	wrapped := fmt.Errorf("submission failed: %w", base)

	found, ok := As(wrapped)
	require.True(t, ok)
	require.Equal(t, KindGasPriceTooLow, found.Kind)
}

func TestAsReturnsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	require.False(t, ok)
}
