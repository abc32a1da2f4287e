// Package memory is an in-process implementation of the repository
// interfaces. It honours the same contract as the PostgreSQL store: rows read
// "for update" stay locked until the owning transaction ends, and a rollback
// undoes every write the transaction made.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/pkg/db"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type balanceKey struct {
	userID   uuid.UUID
	currency string
}

// Store holds every table in maps guarded by mu. Row locks live in a
// separate table so a transaction can wait on one without holding mu.
type Store struct {
	mu          sync.Mutex
	balances    map[balanceKey]domain.Balance
	entries     []domain.LedgerEntry
	deposits    map[uuid.UUID]domain.Deposit
	withdrawals map[uuid.UUID]domain.Withdrawal
	signals     map[uuid.UUID]domain.Signal
	usages      map[uuid.UUID]domain.SignalUsage
	adjustments []domain.AdminBalanceAdjustment
	packages    map[uuid.UUID]domain.Package

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		balances:    make(map[balanceKey]domain.Balance),
		deposits:    make(map[uuid.UUID]domain.Deposit),
		withdrawals: make(map[uuid.UUID]domain.Withdrawal),
		signals:     make(map[uuid.UUID]domain.Signal),
		usages:      make(map[uuid.UUID]domain.SignalUsage),
		packages:    make(map[uuid.UUID]domain.Package),
		locks:       make(map[string]chan struct{}),
	}
}

// BeginTx starts a transaction. It matches db.BeginTxFunc; dbConn is unused.
func (s *Store) BeginTx(ctx context.Context, _ db.DBTxBeginner) (db.TxController, error) {
	return &Tx{store: s, ctx: ctx, held: make(map[string]chan struct{})}, nil
}

func (s *Store) rowLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[key] = l
	}
	return l
}

// The Store itself is the non-transactional executor; these satisfy
// repository.DBExecutor and are never called by the memory repositories.

func (s *Store) GetContext(context.Context, interface{}, string, ...interface{}) error { return errNoSQL }
func (s *Store) SelectContext(context.Context, interface{}, string, ...interface{}) error { return errNoSQL }
func (s *Store) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

// Tx is a memory transaction holding row locks and an undo log.
type Tx struct {
	store *Store
	ctx   context.Context
	held  map[string]chan struct{}
	undo  []func()
	done  bool
}

func (t *Tx) lock(key string) error {
	if t.done {
		return sql.ErrTxDone
	}
	if _, ok := t.held[key]; ok {
		return nil
	}
	l := t.store.rowLock(key)
	select {
	case l <- struct{}{}:
		t.held[key] = l
		return nil
	case <-t.ctx.Done():
		return fmt.Errorf("waiting for row lock %s: %w", key, t.ctx.Err())
	}
}

func (t *Tx) releaseAll() {
	for key, l := range t.held {
		<-l
		delete(t.held, key)
	}
	t.done = true
}

// Commit keeps the writes and releases the row locks.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.undo = nil
	t.releaseAll()
	return nil
}

// Rollback reverts the writes in reverse order and releases the row locks.
func (t *Tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	t.releaseAll()
	return nil
}

func (t *Tx) GetContext(context.Context, interface{}, string, ...interface{}) error { return errNoSQL }
func (t *Tx) SelectContext(context.Context, interface{}, string, ...interface{}) error { return errNoSQL }
func (t *Tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

// txOf returns the memory transaction behind q, or nil for auto-commit access.
func txOf(q interface{}) *Tx {
	t, _ := q.(*Tx)
	return t
}

// lockRow takes the named row lock when q is a transaction.
func lockRow(q interface{}, key string) error {
	if t := txOf(q); t != nil {
		return t.lock(key)
	}
	return nil
}

// write applies fn under the store mutex and, inside a transaction, records
// undo so Rollback can revert it. Both run with mu held.
func (s *Store) write(q interface{}, fn, undo func()) error {
	t := txOf(q)
	if t != nil && t.done {
		return sql.ErrTxDone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	if t != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
