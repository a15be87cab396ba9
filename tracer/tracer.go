// Package tracer defines the gateway's dependency on ABI-level call
// tracing for the gated debug_* methods (spec §1, §6 DEBUG_API_ENABLED).
// Decoding a consensus-node execution trace into the structLog/callTracer
// shapes go-ethereum clients expect is out of scope for this gateway;
// only the interface such a decoder would implement is specified here.
package tracer

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrTraceUnavailable is returned when the consensus node has no trace
// retained for the requested transaction (pruned, or never traced).
var ErrTraceUnavailable = errors.New("tracer: trace unavailable")

// CallFrame mirrors the subset of go-ethereum's debug callTracer output
// the gateway forwards; nested calls are not interpreted, only passed
// through.
type CallFrame struct {
	Type    string
	From    common.Address
	To      common.Address
	Input   []byte
	Output  []byte
	GasUsed uint64
	Error   string
	Calls   []CallFrame
}

// Tracer is the narrow surface debug_traceTransaction needs.
type Tracer interface {
	TraceTransaction(ctx context.Context, hash common.Hash) (*CallFrame, error)
}

// Disabled is a Tracer that always reports unavailability, used when
// DEBUG_API_ENABLED is false or no consensus-side tracer is configured.
type Disabled struct{}

func (Disabled) TraceTransaction(context.Context, common.Hash) (*CallFrame, error) {
	return nil, ErrTraceUnavailable
}

var _ Tracer = Disabled{}
