package chaintypes

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestLogFilterEmptyAddressesMatchesAny(t *testing.T) {
	f := LogFilter{}
	l := Log{Address: common.HexToAddress("0x000000000000000000000000000000000000aBcD")}
	require.True(t, f.Matches(l))
}

func TestLogFilterAddressMismatch(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	f := LogFilter{Addresses: []common.Address{addr}}
	other := common.HexToAddress("0x0000000000000000000000000000000000000002")
	require.False(t, f.Matches(Log{Address: other}))
	require.True(t, f.Matches(Log{Address: addr}))
}

func TestLogFilterZeroAddressRegistersButMatchesNothingElse(t *testing.T) {
	zero := common.Address{}
	f := LogFilter{Addresses: []common.Address{zero}}
	other := common.HexToAddress("0x0000000000000000000000000000000000000002")
	require.False(t, f.Matches(Log{Address: other}))
	require.True(t, f.Matches(Log{Address: zero}))
}

func TestLogFilterTopicWildcardAndSet(t *testing.T) {
	topicA := common.HexToHash("0xaa")
	topicB := common.HexToHash("0xbb")
	f := LogFilter{Topics: [][]common.Hash{nil, {topicA, topicB}}}

	require.True(t, f.Matches(Log{Topics: []common.Hash{common.HexToHash("0xff"), topicA}}))
	require.False(t, f.Matches(Log{Topics: []common.Hash{common.HexToHash("0xff"), common.HexToHash("0xcc")}}))
	// fewer topics than filter length at a non-wildcard position never matches
	require.False(t, f.Matches(Log{Topics: []common.Hash{common.HexToHash("0xff")}}))
}

func TestParseBlockTagRecognisesFloatingTags(t *testing.T) {
	for _, tag := range []string{"latest", "pending", "safe", "finalized", "earliest"} {
		bt, err := ParseBlockTag(tag)
		require.NoError(t, err)
		require.Equal(t, tag, bt.Tag)
		require.Nil(t, bt.Number)
	}
}

func TestParseBlockTagNumeric(t *testing.T) {
	bt, err := ParseBlockTag("0x1b4")
	require.NoError(t, err)
	require.NotNil(t, bt.Number)
	require.Equal(t, uint64(0x1b4), *bt.Number)
}

func TestSyntheticReceipt(t *testing.T) {
	r := &TransactionReceipt{GasUsed: 0}
	require.True(t, r.Synthetic())
	r.GasUsed = 21000
	require.False(t, r.Synthetic())
}
