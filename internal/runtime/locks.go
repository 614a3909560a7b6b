package runtime

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
)

// lockRequest is one address a transaction needs, with the strongest access
// any of its metas asked for.
type lockRequest struct {
	addr  address.Pubkey
	write bool
}

// lockSet derives the lock requests for a message: one per distinct address,
// write if any meta marks it writable, sorted by address bytes.
//
// Acquiring in this global order means two transactions can never each hold
// a lock the other is waiting for.
func lockSet(m ir.Message) []lockRequest {
	byAddr := make(map[address.Pubkey]bool)
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			byAddr[meta.Address] = byAddr[meta.Address] || meta.Writable
		}
	}

	reqs := make([]lockRequest, 0, len(byAddr))
	for addr, write := range byAddr {
		reqs = append(reqs, lockRequest{addr: addr, write: write})
	}
	slices.SortFunc(reqs, func(a, b lockRequest) int {
		return a.addr.Compare(b.addr)
	})
	return reqs
}

// lockTable provides per-address reader/writer exclusion.
// Entries are reference counted and dropped when no transaction holds or
// waits for them.
type lockTable struct {
	mu    sync.Mutex
	locks map[address.Pubkey]*addrLock
}

type addrLock struct {
	rw   sync.RWMutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[address.Pubkey]*addrLock)}
}

// acquire blocks until every request is held. reqs must come from lockSet.
// The returned func releases them all. If ctx is done once the locks are
// held, they are released again and ctx's error is returned, so a
// cancelled caller never starts work.
func (lt *lockTable) acquire(ctx context.Context, reqs []lockRequest) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	held := make([]*addrLock, len(reqs))
	for i, req := range reqs {
		l := lt.ref(req.addr)
		if req.write {
			l.rw.Lock()
		} else {
			l.rw.RLock()
		}
		held[i] = l
	}

	release = func() {
		for i := len(reqs) - 1; i >= 0; i-- {
			if reqs[i].write {
				held[i].rw.Unlock()
			} else {
				held[i].rw.RUnlock()
			}
			lt.unref(reqs[i].addr)
		}
	}
	if err := ctx.Err(); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (lt *lockTable) ref(addr address.Pubkey) *addrLock {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l, ok := lt.locks[addr]
	if !ok {
		l = &addrLock{}
		lt.locks[addr] = l
	}
	l.refs++
	return l
}

func (lt *lockTable) unref(addr address.Pubkey) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l := lt.locks[addr]
	l.refs--
	if l.refs == 0 {
		delete(lt.locks, addr)
	}
}

// size returns the number of live entries. Used for testing.
func (lt *lockTable) size() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.locks)
}
