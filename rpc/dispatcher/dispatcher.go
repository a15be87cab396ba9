// Package dispatcher implements the JSON-RPC 2.0 request/batch handling
// of spec §4.8. Per-IP rate limiting is grounded on the rate.Limiter
// keyed-map pattern several pack repos use in front of their own
// JSON-RPC surfaces (e.g. the gateway-node reference's
// rate.NewLimiter(limit, MaxRateLimitTokens) per connection); here one
// limiter is kept per (IP, method) pair rather than one per connection,
// since the spec gates per method.
package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"cosmossdk.io/log"

	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/metrics"
	"github.com/hashlink-network/eth-rpc-relay/rpc/registry"
	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
)

// Request is one decoded JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 response object.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorResponse(id json.RawMessage, e *rpcerror.Error) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &wireError{Code: e.Code, Message: e.Message}}
}

// Origin describes the transport the request arrived over, since
// gating (batch flags, allowed methods) differs between HTTP and
// WebSocket per spec §4.8/§4.10.
type Origin struct {
	IP           string
	IsWebSocket  bool
	ConnectionID string
}

// Dispatcher ties a method Table to a Config Snapshot and per-IP rate
// limiters.
type Dispatcher struct {
	cfg     config.Snapshot
	table   *registry.Table
	logger  log.Logger
	metrics *metrics.Registry

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	nextRequestID atomic.Uint64
}

// New builds a Dispatcher. m may be nil, in which case request/error
// counters are simply not recorded.
func New(cfg config.Snapshot, table *registry.Table, logger log.Logger, m *metrics.Registry) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		table:    table,
		logger:   logger.With(log.ModuleKey, "dispatcher"),
		metrics:  m,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the shared rate.Limiter for one (ip, method) pair,
// creating it on first use. LIMIT_DURATION configures the refill
// interval for one token; the burst is fixed at 1 since the spec only
// requires a rate ceiling, not bursting headroom.
func (d *Dispatcher) limiterFor(ip, method string) *rate.Limiter {
	key := ip + "|" + method
	d.limiterMu.Lock()
	defer d.limiterMu.Unlock()
	l, ok := d.limiters[key]
	if !ok {
		every := d.cfg.LimitDuration
		if every <= 0 {
			return nil
		}
		l = rate.NewLimiter(rate.Every(every), 1)
		d.limiters[key] = l
	}
	return l
}

// Dispatch handles one request, or a batch encoded as a JSON array.
// raw is the full request body; origin describes the transport it
// arrived over.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte, origin Origin) []Response {
	var batch []json.RawMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		var single Request
		if err := json.Unmarshal(raw, &single); err != nil {
			return []Response{errorResponse(nil, rpcerror.InvalidRequest())}
		}
		return []Response{d.dispatchOne(ctx, single, origin)}
	}

	if origin.IsWebSocket && !d.cfg.WSBatchRequestsEnabled {
		return []Response{errorResponse(nil, rpcerror.WSBatchRequestsDisabled())}
	}
	if len(batch) > d.cfg.BatchRequestsMaxSize {
		return []Response{errorResponse(nil, rpcerror.BatchRequestsAmountMaxExceeded(len(batch), d.cfg.BatchRequestsMaxSize))}
	}

	responses := make([]Response, len(batch))
	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item json.RawMessage) {
			defer wg.Done()
			var req Request
			if err := json.Unmarshal(item, &req); err != nil {
				responses[i] = errorResponse(nil, rpcerror.InvalidRequest())
				return
			}
			if d.disallowedInBatch(req.Method) {
				responses[i] = errorResponse(req.ID, rpcerror.BatchRequestsMethodNotPermitted(req.Method))
				return
			}
			responses[i] = d.dispatchOne(ctx, req, origin)
		}(i, item)
	}
	wg.Wait()
	return responses
}

func (d *Dispatcher) disallowedInBatch(method string) bool {
	for _, m := range d.cfg.BatchRequestsDisallowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

func (d *Dispatcher) dispatchOne(ctx context.Context, req Request, origin Origin) Response {
	reqID := d.nextRequestID.Add(1)
	logger := d.logger.With("request_id", reqID, "method", req.Method, "ip", origin.IP)
	if origin.ConnectionID != "" {
		logger = logger.With("connection_id", origin.ConnectionID)
	}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return errorResponse(req.ID, rpcerror.InvalidRequest())
	}

	if limiter := d.limiterFor(origin.IP, req.Method); limiter != nil && !limiter.Allow() {
		logger.Debug("rate limit exceeded")
		return errorResponse(req.ID, rpcerror.IPRateLimitExceeded(req.Method))
	}

	method, ok := d.table.Lookup(req.Method)
	if !ok {
		return errorResponse(req.ID, rpcerror.MethodNotFound(req.Method))
	}
	if !d.methodEnabled(method, origin) {
		return errorResponse(req.ID, rpcerror.UnsupportedMethod())
	}

	if d.metrics != nil {
		d.metrics.RequestsTotal.WithLabelValues(method.Name).Inc()
	}

	params, perr := decodeParams(req.Params)
	if perr != nil {
		return d.errorResponse(method.Name, req.ID, perr)
	}
	if verr := validateParams(method, params); verr != nil {
		return d.errorResponse(method.Name, req.ID, verr)
	}

	result, herr := method.Handler(ctx, params)
	if herr != nil {
		logger.Debug("handler error", "kind", herr.Kind, "message", herr.Message)
		return d.errorResponse(method.Name, req.ID, herr)
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// errorResponse records the method-error counter alongside building the
// wire response, so every failure path funnels through one place.
func (d *Dispatcher) errorResponse(method string, id json.RawMessage, e *rpcerror.Error) Response {
	if d.metrics != nil {
		d.metrics.MethodErrors.WithLabelValues(method, e.Kind.String()).Inc()
	}
	return errorResponse(id, e)
}

func (d *Dispatcher) methodEnabled(m registry.Method, origin Origin) bool {
	if m.WSOnly && !origin.IsWebSocket {
		return false
	}
	if origin.IsWebSocket && !m.WSAllowed {
		return false
	}
	if d.cfg.ReadOnly && !m.ReadOnlyAllowed {
		return false
	}
	if m.DebugAPIGuarded && !d.cfg.DebugAPIEnabled {
		return false
	}
	if m.TxPoolGuarded && !d.cfg.TxPoolAPIEnabled {
		return false
	}
	return true
}

// decodeParams treats an absent params member as an empty list, per
// go-ethereum client compatibility (spec §4.8).
func decodeParams(raw json.RawMessage) ([]any, *rpcerror.Error) {
	if len(raw) == 0 {
		return []any{}, nil
	}
	var params []any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, rpcerror.InvalidRequest()
	}
	return params, nil
}

func validateParams(m registry.Method, params []any) *rpcerror.Error {
	for i, spec := range m.Params {
		if i >= len(params) || params[i] == nil {
			if spec.Required {
				return rpcerror.MissingRequiredParameter(i)
			}
			continue
		}
		if spec.Validate != nil {
			if err := spec.Validate(params[i]); err != nil {
				return rpcerror.InvalidParameter(i, err.Error())
			}
		}
	}
	return nil
}
