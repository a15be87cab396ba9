// Package config defines the immutable, per-request Config Snapshot
// (spec §3, §4.2) and a thin spf13/viper-backed loader that materialises
// one from the process environment. Nothing downstream of Load ever
// mutates a Snapshot: handlers, precheck, and the submission pipeline
// all receive the same value by copy, matching the teacher's use of
// server.Context.Viper as the single source of truth read once at
// startup (cosmos/evm rpc/backend/tx_info_test.go sets values on
// ctx.Viper before constructing collaborators, never after).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Snapshot is the enumerated set of tunable options from spec §6. It is
// a plain value type: copying it is always safe, and no field is ever
// written after Load returns.
type Snapshot struct {
	ChainID  uint64
	LogLevel string

	RedisEnabled          bool
	RedisURL              string
	RedisReconnectDelayMs int

	SendRawTransactionSizeLimit int
	CallDataSizeLimit           int
	ContractCodeSizeLimit       int
	MaxTransactionFeeThreshold  uint64
	EthGetLogsBlockRangeLimit   uint64
	MirrorNodeLimitParam        int

	JumboTxEnabled bool
	ReadOnly       bool

	PaymasterEnabled    bool
	PaymasterWhitelist  []string
	MaxGasAllowanceHbar int64

	DebugAPIEnabled bool
	TxPoolAPIEnabled bool

	EnableTxPool          bool
	UseAsyncTxProcessing  bool
	EnableNonceOrdering   bool

	SubscriptionsEnabled            bool
	WSNewHeadsEnabled                bool
	WSMaxSubscriptionsPerConnection int
	WSPingInterval                   time.Duration
	WSBatchRequestsEnabled           bool

	BatchRequestsMaxSize            int
	BatchRequestsDisallowedMethods  []string

	LimitDuration time.Duration
	ServerHost    string
	ServerPort    int
	WSPort        int
	MetricsPort   int

	HTTPTimeout      time.Duration
	WSMaxConnsPerIP  int
	EnableUnsafeCORS bool
}

// PaymasterWhitelistWildcard is the sentinel entry that matches any
// destination address.
const PaymasterWhitelistWildcard = "*"

// IsCacheableBlockTag reports whether a block tag string may be stored
// in the cache (spec §4.2, §6): every tag except the floating ones.
func IsCacheableBlockTag(tag string) bool {
	switch tag {
	case "latest", "pending", "safe", "finalized":
		return false
	default:
		return true
	}
}

// Load builds an immutable Snapshot from environment variables (and any
// config file viper has been pointed at), applying the defaults called
// out in spec §6. Load is intentionally the only place defaults and env
// parsing live — everything downstream only ever sees the resulting
// value.
func Load() (Snapshot, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("CHAIN_ID", uint64(295))
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_URL", "redis://127.0.0.1:6379")
	v.SetDefault("REDIS_RECONNECT_DELAY_MS", 1000)
	v.SetDefault("SEND_RAW_TRANSACTION_SIZE_LIMIT", 130*1024)
	v.SetDefault("CALL_DATA_SIZE_LIMIT", 128*1024)
	v.SetDefault("CONTRACT_CODE_SIZE_LIMIT", 24*1024)
	v.SetDefault("MAX_TRANSACTION_FEE_THRESHOLD", uint64(15_000_000))
	v.SetDefault("ETH_GET_LOGS_BLOCK_RANGE_LIMIT", uint64(1000))
	v.SetDefault("MIRROR_NODE_LIMIT_PARAM", 100)
	v.SetDefault("JUMBO_TX_ENABLED", false)
	v.SetDefault("READ_ONLY", false)
	v.SetDefault("PAYMASTER_ENABLED", false)
	v.SetDefault("PAYMASTER_WHITELIST", []string{})
	v.SetDefault("MAX_GAS_ALLOWANCE_HBAR", int64(0))
	v.SetDefault("DEBUG_API_ENABLED", false)
	v.SetDefault("TXPOOL_API_ENABLED", false)
	v.SetDefault("ENABLE_TX_POOL", true)
	v.SetDefault("USE_ASYNC_TX_PROCESSING", true)
	v.SetDefault("ENABLE_NONCE_ORDERING", false)
	v.SetDefault("SUBSCRIPTIONS_ENABLED", true)
	v.SetDefault("WS_NEW_HEADS_ENABLED", true)
	v.SetDefault("WS_MAX_SUBSCRIPTIONS_PER_CONNECTION", 10)
	v.SetDefault("WS_PING_INTERVAL", 15*time.Second)
	v.SetDefault("WS_BATCH_REQUESTS_ENABLED", false)
	v.SetDefault("BATCH_REQUESTS_MAX_SIZE", 100)
	v.SetDefault("BATCH_REQUESTS_DISALLOWED_METHODS", []string{})
	v.SetDefault("LIMIT_DURATION", time.Minute)
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 7546)
	v.SetDefault("WS_PORT", 8546)
	v.SetDefault("METRICS_PORT", 9090)
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("WS_MAX_CONNS_PER_IP", 20)
	v.SetDefault("ENABLE_UNSAFE_CORS", false)

	return Snapshot{
		ChainID:                         v.GetUint64("CHAIN_ID"),
		LogLevel:                        v.GetString("LOG_LEVEL"),
		RedisEnabled:                    v.GetBool("REDIS_ENABLED"),
		RedisURL:                        v.GetString("REDIS_URL"),
		RedisReconnectDelayMs:           v.GetInt("REDIS_RECONNECT_DELAY_MS"),
		SendRawTransactionSizeLimit:     v.GetInt("SEND_RAW_TRANSACTION_SIZE_LIMIT"),
		CallDataSizeLimit:               v.GetInt("CALL_DATA_SIZE_LIMIT"),
		ContractCodeSizeLimit:           v.GetInt("CONTRACT_CODE_SIZE_LIMIT"),
		MaxTransactionFeeThreshold:      v.GetUint64("MAX_TRANSACTION_FEE_THRESHOLD"),
		EthGetLogsBlockRangeLimit:       v.GetUint64("ETH_GET_LOGS_BLOCK_RANGE_LIMIT"),
		MirrorNodeLimitParam:            v.GetInt("MIRROR_NODE_LIMIT_PARAM"),
		JumboTxEnabled:                  v.GetBool("JUMBO_TX_ENABLED"),
		ReadOnly:                        v.GetBool("READ_ONLY"),
		PaymasterEnabled:                v.GetBool("PAYMASTER_ENABLED"),
		PaymasterWhitelist:              v.GetStringSlice("PAYMASTER_WHITELIST"),
		MaxGasAllowanceHbar:             v.GetInt64("MAX_GAS_ALLOWANCE_HBAR"),
		DebugAPIEnabled:                 v.GetBool("DEBUG_API_ENABLED"),
		TxPoolAPIEnabled:                v.GetBool("TXPOOL_API_ENABLED"),
		EnableTxPool:                    v.GetBool("ENABLE_TX_POOL"),
		UseAsyncTxProcessing:            v.GetBool("USE_ASYNC_TX_PROCESSING"),
		EnableNonceOrdering:             v.GetBool("ENABLE_NONCE_ORDERING"),
		SubscriptionsEnabled:            v.GetBool("SUBSCRIPTIONS_ENABLED"),
		WSNewHeadsEnabled:               v.GetBool("WS_NEW_HEADS_ENABLED"),
		WSMaxSubscriptionsPerConnection: v.GetInt("WS_MAX_SUBSCRIPTIONS_PER_CONNECTION"),
		WSPingInterval:                  v.GetDuration("WS_PING_INTERVAL"),
		WSBatchRequestsEnabled:          v.GetBool("WS_BATCH_REQUESTS_ENABLED"),
		BatchRequestsMaxSize:            v.GetInt("BATCH_REQUESTS_MAX_SIZE"),
		BatchRequestsDisallowedMethods:  v.GetStringSlice("BATCH_REQUESTS_DISALLOWED_METHODS"),
		LimitDuration:                   v.GetDuration("LIMIT_DURATION"),
		ServerHost:                      v.GetString("SERVER_HOST"),
		ServerPort:                      v.GetInt("SERVER_PORT"),
		WSPort:                          v.GetInt("WS_PORT"),
		MetricsPort:                     v.GetInt("METRICS_PORT"),
		HTTPTimeout:                     v.GetDuration("HTTP_TIMEOUT"),
		WSMaxConnsPerIP:                 v.GetInt("WS_MAX_CONNS_PER_IP"),
		EnableUnsafeCORS:                v.GetBool("ENABLE_UNSAFE_CORS"),
	}, nil
}
