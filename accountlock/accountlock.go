// Package accountlock implements the Account Lock Service (spec §4.4):
// at most one in-flight submission per sender address, non-blocking for
// every read path. Its concurrency idiom — a mutex-guarded map plus a
// logger threaded in via logger.With(log.ModuleKey, ...) — is adapted
// directly from the teacher's mempool/mempool.go, which guards its own
// pool state the same way; unlike the teacher's mempool, this package
// holds no transactions, no nonces and does no EVM-execution
// bookkeeping, only per-address mutual exclusion.
package accountlock

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"cosmossdk.io/log"
)

// Token is returned by Acquire and must be passed to Release. It
// carries the address and lock channel it was acquired for, so Release
// acts on the entry that Acquire locked; misuse such as a double
// release is not detected at compile time.
type Token struct {
	addr common.Address
	ch   chan struct{}
}

// entry is the per-address lock record. It is created on first
// submission attempt and removed once no submission is in flight for
// that address, per spec §3 ("AccountLock ... destroyed when the
// sender has no in-flight submission"). ch is a capacity-1 channel used
// as a cancellable mutex: it starts with one token in it, Acquire
// receives it, Release sends it back. This (rather than sync.Mutex)
// lets Acquire abandon a cancelled wait without ever leaving the lock
// held by a goroutine nobody can reach anymore.
type entry struct {
	ch       chan struct{}
	refCount int
}

func newEntry() *entry {
	e := &entry{ch: make(chan struct{}, 1)}
	e.ch <- struct{}{}
	return e
}

// Service is the process-wide singleton described in spec §9: the
// account lock map is mutated only by this Service.
type Service struct {
	mapMu   sync.Mutex
	entries map[common.Address]*entry

	logger log.Logger
}

func NewService(logger log.Logger) *Service {
	return &Service{
		entries: make(map[common.Address]*entry),
		logger:  logger.With(log.ModuleKey, "accountlock"),
	}
}

// Acquire blocks until no other holder owns addr's lock, then returns a
// Token. Acquire respects ctx cancellation while waiting so a
// disconnected client's submission can be abandoned at this suspension
// point (spec §5) without ever leaving the entry locked.
func (s *Service) Acquire(ctx context.Context, addr common.Address) (Token, error) {
	e := s.retain(addr)

	select {
	case <-e.ch:
		return Token{addr: addr, ch: e.ch}, nil
	case <-ctx.Done():
		s.release(addr)
		return Token{}, ctx.Err()
	}
}

// Release returns addr's lock and removes its entry from the map once
// no other submission holds a reference (spec §3).
func (s *Service) Release(tok Token) {
	if tok.ch == nil {
		return
	}
	tok.ch <- struct{}{}
	s.release(tok.addr)
}

func (s *Service) retain(addr common.Address) *entry {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	e, ok := s.entries[addr]
	if !ok {
		e = newEntry()
		s.entries[addr] = e
	}
	e.refCount++
	return e
}

func (s *Service) release(addr common.Address) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	e, ok := s.entries[addr]
	if !ok {
		return
	}
	e.refCount--
	if e.refCount <= 0 {
		delete(s.entries, addr)
	}
}
