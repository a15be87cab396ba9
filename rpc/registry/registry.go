// Package registry holds the static JSON-RPC method table described in
// spec §4.7: one entry per method naming its handler, parameter schema,
// cache policy, and gating flags. It is adapted from the teacher's
// server/json_rpc.go, which builds an analogous namespace/method table
// via ethrpc.NewServer() + rpcServer.RegisterName before serving it over
// HTTP/WS; here the table is hand-rolled rather than delegated to
// go-ethereum's reflection-based rpc.Server because the spec requires
// per-method cache TTL, gating flags, and exact-index parameter error
// reporting the upstream dispatcher doesn't expose.
package registry

import (
	"context"

	"github.com/hashlink-network/eth-rpc-relay/rpcerror"
)

// Handler executes one JSON-RPC method call against already schema
// validated parameters and returns the result to be marshalled into the
// response, or an error to translate via rpcerror.
type Handler func(ctx context.Context, params []any) (any, *rpcerror.Error)

// ParamSpec describes one positional parameter.
type ParamSpec struct {
	Name     string
	Required bool
	// Validate runs only when the parameter is present; it receives the
	// raw decoded JSON value for that position.
	Validate func(v any) error
}

// Method is one row of the registry.
type Method struct {
	Name  string
	Handler Handler
	Params  []ParamSpec

	// CacheTTLMs is zero when the result must never be cached.
	CacheTTLMs int64

	ReadOnlyAllowed bool
	DebugAPIGuarded bool
	TxPoolGuarded   bool
	WSOnly          bool
	WSAllowed       bool
}

// Table is the static method → Method mapping, keyed by JSON-RPC method
// name.
type Table struct {
	methods map[string]Method
}

// New builds an empty Table; call Register for each method.
func New() *Table {
	return &Table{methods: make(map[string]Method)}
}

// Register adds one method. Panics on duplicate registration — the
// table is built once at process start, so a duplicate is a programming
// error, not a runtime condition to recover from.
func (t *Table) Register(m Method) {
	if _, exists := t.methods[m.Name]; exists {
		panic("registry: duplicate method " + m.Name)
	}
	t.methods[m.Name] = m
}

// Lookup returns the method and whether it is registered at all. It
// does not itself decide MethodNotFound vs UnsupportedMethod — the
// Dispatcher applies gating flags against a Config Snapshot to make
// that call (spec §4.8), since gating is a per-request, per-config
// decision rather than a property of the table alone.
func (t *Table) Lookup(name string) (Method, bool) {
	m, ok := t.methods[name]
	return m, ok
}

// Names returns every registered method name, for diagnostics and
// tests.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.methods))
	for name := range t.methods {
		out = append(out, name)
	}
	return out
}
