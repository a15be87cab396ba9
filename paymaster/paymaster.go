// Package paymaster implements the subsidisation decision procedure of
// spec §4.5: whether a zero-fee transaction is paid for by the gateway
// rather than rejected for a too-low gas price, and the running
// allowance budget that bounds how much it will subsidise in total.
//
// The budget-vs-threshold comparison style is adapted from the
// teacher's ante/evm/fee_checker_test.go, which checks a transaction's
// fee against a configured floor; here the comparison runs the other
// direction, against a mutable remaining balance rather than a fixed
// floor, per spec §4.5/§9 ("MAX_GAS_ALLOWANCE_HBAR is canonical").
package paymaster

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashlink-network/eth-rpc-relay/config"
)

// State is the process-wide PaymasterState singleton (spec §3),
// mutated only by this package.
type State struct {
	mu sync.Mutex

	enabled           bool
	whitelist         map[string]struct{}
	wildcard          bool
	remainingWeibar   int64
}

// NewState builds the paymaster singleton from the Config Snapshot.
// MAX_GAS_ALLOWANCE_HBAR is the canonical allowance field (spec §9);
// PAYMASTER_MAX_ALLOWANCE, referenced in some source revisions, is not
// read anywhere in this gateway.
func NewState(cfg config.Snapshot) *State {
	s := &State{
		enabled:         cfg.PaymasterEnabled,
		whitelist:       make(map[string]struct{}, len(cfg.PaymasterWhitelist)),
		remainingWeibar: cfg.MaxGasAllowanceHbar,
	}
	for _, addr := range cfg.PaymasterWhitelist {
		if addr == config.PaymasterWhitelistWildcard {
			s.wildcard = true
			continue
		}
		s.whitelist[normalise(addr)] = struct{}{}
	}
	return s
}

func normalise(addr string) string { return common.HexToAddress(addr).Hex() }

// Decide implements spec §4.5: subsidise iff paymaster is enabled, to
// is whitelisted (or the whitelist contains the wildcard), and the
// remaining allowance is strictly positive. It does not itself debit
// the allowance — that only happens once consensus actually executes
// the subsidised transaction (spec §4.5: "may still fail at consensus
// with INSUFFICIENT_TX_FEE when the running allowance was exhausted
// between decision and execution").
func (s *State) Decide(to *common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return false
	}
	if s.remainingWeibar <= 0 {
		return false
	}
	if s.wildcard {
		return true
	}
	if to == nil {
		return false
	}
	_, ok := s.whitelist[to.Hex()]
	return ok
}

// Debit reduces the remaining allowance by amount once a subsidised
// transaction actually lands at consensus. Amount is expressed in the
// native base unit (weibar), per spec §3/§4.5.
func (s *State) Debit(amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remainingWeibar -= amount
	if s.remainingWeibar < 0 {
		s.remainingWeibar = 0
	}
}

// RemainingAllowance reports the current budget, for metrics/health
// surfaces.
func (s *State) RemainingAllowance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingWeibar
}

// Enabled reports whether subsidisation is configured at all.
func (s *State) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
