package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
)

// maxCallDepth bounds re-entrant calls within one transaction.
const maxCallDepth = 8

type invocationKey struct{}

// meteredStore counts the storage work of an invocation.
type meteredStore struct {
	*memory.MemCachedStore
	reads, writes int64
}

func (m *meteredStore) Get(key []byte) ([]byte, error) {
	m.reads++
	return m.MemCachedStore.Get(key)
}

func (m *meteredStore) Put(key, value []byte) {
	m.writes++
	m.MemCachedStore.Put(key, value)
}

func (m *meteredStore) Delete(key []byte) {
	m.writes++
	m.MemCachedStore.Delete(key)
}

type pendingEvent struct {
	topic   string
	payload any
}

// invocation is a single all-or-nothing call on the ledger. Its writes land in
// an overlay that is persisted on success and dropped on failure. A call made
// with a context that already carries an invocation of the same ledger is
// nested: it stacks its overlay on the caller's and commits into it.
type invocation struct {
	ledger *Ledger
	depth  int
	txID   string
	store  *meteredStore
	events []pendingEvent
}

func (inv *invocation) emit(topic string, payload any) {
	inv.events = append(inv.events, pendingEvent{topic: topic, payload: payload})
}

// current returns the invocation of l carried by ctx, if any.
func (l *Ledger) current(ctx context.Context) *invocation {
	inv, ok := ctx.Value(invocationKey{}).(*invocation)
	if !ok || inv.ledger != l {
		return nil
	}
	return inv
}

type invokeFunc func(ctx context.Context, inv *invocation) (decimal.Decimal, error)

// run executes fn as an invocation paid for by from. fn returns the value
// moved by the call.
func (l *Ledger) run(ctx context.Context, from models.Address, fn invokeFunc) (models.Receipt, error) {
	// A call from inside a running invocation joins it instead of locking
	parent := l.current(ctx)
	if parent != nil {
		return l.runNested(ctx, parent, from, fn)
	}

	rcpt, events, err := l.runLocked(ctx, from, fn)
	if err != nil {
		return models.Receipt{}, err
	}
	l.publish(ctx, events) // publish after commit and outside the lock
	return rcpt, nil
}

// runLocked runs a top-level invocation, it holds the write lock until the
// overlay is persisted or dropped.
func (l *Ledger) runLocked(ctx context.Context, from models.Address, fn invokeFunc) (models.Receipt, []pendingEvent, error) {
	l.mu.Lock() // lock the mutex to serialize invocations
	defer l.mu.Unlock()

	// Every write goes to a fresh overlay over the persistent store
	inv := &invocation{
		ledger: l,
		txID:   uuid.NewString(),
		store:  &meteredStore{MemCachedStore: memory.NewMemCachedStore(l.store)},
	}
	amount, err := fn(context.WithValue(ctx, invocationKey{}, inv), inv)
	if err != nil {
		return models.Receipt{}, nil, err // overlay is dropped, nothing changes
	}

	// Charge the caller for the storage work, the fee is burnt
	rcpt := l.receipt(inv, from, amount)
	rcpt.Fee = l.gas.Price.Mul(decimal.NewFromInt(rcpt.GasUsed))
	if rcpt.Fee.IsPositive() {
		if err := l.token.Burn(inv.store, from, rcpt.Fee); err != nil {
			return models.Receipt{}, nil, fmt.Errorf("ledger: pay fee: %w", err)
		}
	}
	// Commit the whole invocation in one change set
	if _, err := inv.store.Persist(); err != nil {
		return models.Receipt{}, nil, fmt.Errorf("ledger: commit: %w", err)
	}
	l.updateMetrics()
	return rcpt, inv.events, nil
}

func (l *Ledger) runNested(ctx context.Context, parent *invocation, from models.Address, fn invokeFunc) (models.Receipt, error) {
	if parent.depth >= maxCallDepth {
		return models.Receipt{}, ErrCallDepthExceeded
	}
	// The nested overlay sits on the parent's, so it sees uncommitted state
	inv := &invocation{
		ledger: l,
		depth:  parent.depth + 1,
		txID:   parent.txID,
		store:  &meteredStore{MemCachedStore: memory.NewMemCachedStore(parent.store.MemCachedStore)},
	}
	amount, err := fn(context.WithValue(ctx, invocationKey{}, inv), inv)
	if err != nil {
		return models.Receipt{}, err
	}
	rcpt := l.receipt(inv, from, amount)
	if _, err := inv.store.Persist(); err != nil {
		return models.Receipt{}, fmt.Errorf("ledger: commit nested call: %w", err)
	}
	// The outer transaction pays for the nested work and publishes its
	// events once it commits.
	parent.store.reads += inv.store.reads
	parent.store.writes += inv.store.writes
	parent.events = append(parent.events, inv.events...)
	return rcpt, nil
}

func (l *Ledger) receipt(inv *invocation, from models.Address, amount decimal.Decimal) models.Receipt {
	return models.Receipt{
		TxID:      inv.txID,
		From:      from,
		Amount:    amount,
		GasUsed:   l.gas.used(inv.store.reads, inv.store.writes),
		GasPrice:  l.gas.Price,
		Fee:       decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
}

// stateView is what read-only queries need.
type stateView interface {
	interfaces.StateReader
	Seek(prefix []byte, f func(k, v []byte) bool) error
}

// view returns the state a query should read: the in-flight invocation for
// re-entrant queries, the committed store otherwise. release must be called
// once the query is done. Without an invocation in ctx the query takes the
// read lock, so it waits for any running invocation to finish.
func (l *Ledger) view(ctx context.Context) (s stateView, release func()) {
	if inv := l.current(ctx); inv != nil {
		return inv.store, func() {}
	}
	l.mu.RLock()
	return l.store, l.mu.RUnlock
}
