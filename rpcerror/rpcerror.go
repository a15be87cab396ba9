// Package rpcerror defines the closed enumeration of gateway error kinds
// described in the error taxonomy: each kind carries a stable numeric
// code, a templated user-facing message, and the three classification
// bits (retryable, user-surfaceable, precheck-level) that callers use to
// decide whether to retry, log, or surface the error verbatim to a
// client.
package rpcerror

import "fmt"

// Kind identifies one member of the closed error enumeration.
type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindInvalidParameter
	KindMissingRequiredParameter
	KindMethodNotFound
	KindUnsupportedMethod
	KindUnsupportedOperation
	KindIPRateLimitExceeded
	KindWSBatchRequestsDisabled
	KindBatchRequestsAmountMaxExceeded
	KindBatchRequestsMethodNotPermitted
	KindMaxSubscriptions
	KindUnsupportedChainID
	KindNonceTooLow
	KindNonceTooHigh
	KindGasPriceTooLow
	KindGasLimitTooLow
	KindGasLimitTooHigh
	KindInsufficientAccountBalance
	KindReceiverSignatureEnabled
	KindTransactionSizeLimitExceeded
	KindCallDataSizeLimitExceeded
	KindContractCodeSizeLimitExceeded
	KindMissingFromBlockParam
	KindInvalidArguments
	KindResourceNotFound
	KindInternalError
)

// names gives each Kind a stable, human-readable label for metrics and
// logs, independent of its iota value.
var names = map[Kind]string{
	KindInvalidRequest:                  "invalid_request",
	KindInvalidParameter:                "invalid_parameter",
	KindMissingRequiredParameter:        "missing_required_parameter",
	KindMethodNotFound:                  "method_not_found",
	KindUnsupportedMethod:               "unsupported_method",
	KindUnsupportedOperation:            "unsupported_operation",
	KindIPRateLimitExceeded:             "ip_rate_limit_exceeded",
	KindWSBatchRequestsDisabled:         "ws_batch_requests_disabled",
	KindBatchRequestsAmountMaxExceeded:  "batch_requests_amount_max_exceeded",
	KindBatchRequestsMethodNotPermitted: "batch_requests_method_not_permitted",
	KindMaxSubscriptions:                "max_subscriptions",
	KindUnsupportedChainID:              "unsupported_chain_id",
	KindNonceTooLow:                     "nonce_too_low",
	KindNonceTooHigh:                    "nonce_too_high",
	KindGasPriceTooLow:                  "gas_price_too_low",
	KindGasLimitTooLow:                  "gas_limit_too_low",
	KindGasLimitTooHigh:                 "gas_limit_too_high",
	KindInsufficientAccountBalance:      "insufficient_account_balance",
	KindReceiverSignatureEnabled:        "receiver_signature_enabled",
	KindTransactionSizeLimitExceeded:    "transaction_size_limit_exceeded",
	KindCallDataSizeLimitExceeded:       "call_data_size_limit_exceeded",
	KindContractCodeSizeLimitExceeded:   "contract_code_size_limit_exceeded",
	KindMissingFromBlockParam:           "missing_from_block_param",
	KindInvalidArguments:                "invalid_arguments",
	KindResourceNotFound:                "resource_not_found",
	KindInternalError:                   "internal_error",
}

// String renders a Kind for metrics labels and log lines.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// traits bundles the three classification bits and the stable JSON-RPC
// error code for one Kind.
type traits struct {
	code             int
	retryable        bool
	userSurfaceable  bool
	precheckLevel    bool
	defaultMsgFormat string
}

var registry = map[Kind]traits{
	KindInvalidRequest:                  {code: -32600, userSurfaceable: true, defaultMsgFormat: "Invalid request"},
	KindInvalidParameter:                {code: -32602, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Invalid parameter %d: %s"},
	KindMissingRequiredParameter:        {code: -32602, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Missing value for required parameter %d"},
	KindMethodNotFound:                  {code: -32601, userSurfaceable: true, defaultMsgFormat: "Method %s not found"},
	KindUnsupportedMethod:               {code: -32601, userSurfaceable: true, defaultMsgFormat: "Unsupported JSON-RPC method"},
	KindUnsupportedOperation:            {code: -32000, userSurfaceable: true, defaultMsgFormat: "Unsupported operation: %s"},
	KindIPRateLimitExceeded:             {code: -32605, userSurfaceable: true, retryable: true, defaultMsgFormat: "IP Rate limit exceeded for %s"},
	KindWSBatchRequestsDisabled:         {code: -32000, userSurfaceable: true, defaultMsgFormat: "WS batch requests are disabled"},
	KindBatchRequestsAmountMaxExceeded:  {code: -32000, userSurfaceable: true, defaultMsgFormat: "Batch request amount %d exceeds max %d"},
	KindBatchRequestsMethodNotPermitted: {code: -32000, userSurfaceable: true, defaultMsgFormat: "Method %s is not permitted in a batch request"},
	KindMaxSubscriptions:                {code: -32000, userSurfaceable: true, defaultMsgFormat: "Exceeded maximum allowed subscriptions"},
	KindUnsupportedChainID:              {code: -32000, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "ChainId (%s) not supported. The correct chainId is %s"},
	KindNonceTooLow:                     {code: -32001, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Nonce too low: provided nonce %s, current nonce %s"},
	KindNonceTooHigh:                    {code: -32002, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Nonce too high: provided nonce %s, current nonce %s"},
	KindGasPriceTooLow:                  {code: -32009, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Gas price (%s) is below configured minimum gas price (%s)"},
	KindGasLimitTooLow:                  {code: -32003, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Transaction gas limit (%d) is lower than the floor gas (%d)"},
	KindGasLimitTooHigh:                 {code: -32004, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Transaction gas limit (%d) exceeds the maximum gas allowed (%d)"},
	KindInsufficientAccountBalance:      {code: -32005, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Insufficient funds for transfer"},
	KindReceiverSignatureEnabled:        {code: -32006, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Receiver account requires signature to receive funds"},
	KindTransactionSizeLimitExceeded:    {code: -32007, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Oversized data: transaction size %d, transaction size limit %d"},
	KindCallDataSizeLimitExceeded:       {code: -32007, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Oversized data: call data size %d, call data size limit %d"},
	KindContractCodeSizeLimitExceeded:   {code: -32007, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Oversized data: contract code size %d, contract code size limit %d"},
	KindMissingFromBlockParam:           {code: -32011, userSurfaceable: true, defaultMsgFormat: "Provided toBlock parameter without specifying fromBlock"},
	KindInvalidArguments:                {code: -32602, userSurfaceable: true, precheckLevel: true, defaultMsgFormat: "Invalid arguments: %s"},
	KindResourceNotFound:                {code: -32001, userSurfaceable: true, defaultMsgFormat: "Resource not found: %s"},
	KindInternalError:                   {code: -32603, userSurfaceable: false, retryable: false, defaultMsgFormat: "Internal error"},
}

// Error is the concrete value returned by every in-scope component for a
// failure that maps onto the closed taxonomy above.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	// Cause is the raw underlying error, preserved for logging only. It
	// must never be serialised into a client-visible response.
	Cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the classifier would consider this error
// safe to retry. The submission pipeline does not call it and does not
// retry consensus submissions.
func (e *Error) Retryable() bool { return registry[e.Kind].retryable }

// UserSurfaceable reports whether Message may be sent back to the
// caller verbatim.
func (e *Error) UserSurfaceable() bool { return registry[e.Kind].userSurfaceable }

// PrecheckLevel reports whether this error originated in the
// synchronous precheck stage (§4.3) as opposed to consensus submission
// or a Mirror API read.
func (e *Error) PrecheckLevel() bool { return registry[e.Kind].precheckLevel }

func newErr(kind Kind, args ...any) *Error {
	t, ok := registry[kind]
	if !ok {
		t = registry[KindInternalError]
	}
	return &Error{Kind: kind, Code: t.code, Message: fmt.Sprintf(t.defaultMsgFormat, args...)}
}

func InvalidRequest() *Error { return newErr(KindInvalidRequest) }

func InvalidParameter(index int, reason string) *Error {
	return newErr(KindInvalidParameter, index, reason)
}

func MissingRequiredParameter(index int) *Error {
	return newErr(KindMissingRequiredParameter, index)
}

func MethodNotFound(method string) *Error { return newErr(KindMethodNotFound, method) }

func UnsupportedMethod() *Error { return newErr(KindUnsupportedMethod) }

func UnsupportedOperation(reason string) *Error { return newErr(KindUnsupportedOperation, reason) }

func IPRateLimitExceeded(method string) *Error { return newErr(KindIPRateLimitExceeded, method) }

func WSBatchRequestsDisabled() *Error { return newErr(KindWSBatchRequestsDisabled) }

func BatchRequestsAmountMaxExceeded(actual, max int) *Error {
	return newErr(KindBatchRequestsAmountMaxExceeded, actual, max)
}

func BatchRequestsMethodNotPermitted(method string) *Error {
	return newErr(KindBatchRequestsMethodNotPermitted, method)
}

func MaxSubscriptions() *Error { return newErr(KindMaxSubscriptions) }

func UnsupportedChainID(got, want string) *Error {
	return newErr(KindUnsupportedChainID, got, want)
}

func NonceTooLow(got, current uint64) *Error {
	return newErr(KindNonceTooLow, fmt.Sprintf("%d", got), fmt.Sprintf("%d", current))
}

func NonceTooHigh(got, current uint64) *Error {
	return newErr(KindNonceTooHigh, fmt.Sprintf("%d", got), fmt.Sprintf("%d", current))
}

func GasPriceTooLow(got, ref string) *Error { return newErr(KindGasPriceTooLow, got, ref) }

func GasLimitTooLow(got, floor uint64) *Error { return newErr(KindGasLimitTooLow, got, floor) }

func GasLimitTooHigh(got, ceiling uint64) *Error { return newErr(KindGasLimitTooHigh, got, ceiling) }

func InsufficientAccountBalance() *Error { return newErr(KindInsufficientAccountBalance) }

func ReceiverSignatureEnabled() *Error { return newErr(KindReceiverSignatureEnabled) }

func TransactionSizeLimitExceeded(size, limit int) *Error {
	return newErr(KindTransactionSizeLimitExceeded, size, limit)
}

func CallDataSizeLimitExceeded(size, limit int) *Error {
	return newErr(KindCallDataSizeLimitExceeded, size, limit)
}

func ContractCodeSizeLimitExceeded(size, limit int) *Error {
	return newErr(KindContractCodeSizeLimitExceeded, size, limit)
}

func MissingFromBlockParam() *Error { return newErr(KindMissingFromBlockParam) }

func InvalidArguments(reason string) *Error { return newErr(KindInvalidArguments, reason) }

func ResourceNotFound(what string) *Error { return newErr(KindResourceNotFound, what) }

// InternalError wraps an opaque backend failure. The raw cause is kept
// on the returned error for logging but never appears in Message.
func InternalError(cause error) *Error {
	e := newErr(KindInternalError)
	e.Cause = cause
	return e
}

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e, true
	}
	return nil, false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
