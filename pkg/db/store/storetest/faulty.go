// Package storetest provides store doubles for engine tests.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mwantia/loadoutsync/pkg/db/store"
)

// FaultyStore wraps a MemoryStore and lets tests fail or hold individual calls.
type FaultyStore struct {
	*store.MemoryStore

	mu           sync.Mutex
	getErr       error
	queryErr     error
	batchErr     error
	txErr        error
	beforeCommit func(ctx context.Context) error
	beforeQuery  func(ctx context.Context) error

	transactions atomic.Int64
	batches      atomic.Int64
	queries      atomic.Int64
}

func NewFaultyStore() *FaultyStore {
	return &FaultyStore{MemoryStore: store.NewMemoryStore()}
}

// FailGet makes every Get return err until cleared with nil.
func (f *FaultyStore) FailGet(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailQuery makes every query return err until cleared with nil.
func (f *FaultyStore) FailQuery(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErr = err
}

// FailBatch makes every batch return err until cleared with nil.
func (f *FaultyStore) FailBatch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchErr = err
}

// FailTransaction makes every transaction return err until cleared with nil.
func (f *FaultyStore) FailTransaction(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txErr = err
}

// BeforeCommit runs hook before each transaction is applied. A hook error
// aborts the transaction.
func (f *FaultyStore) BeforeCommit(hook func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeCommit = hook
}

// BeforeQuery runs hook before each query. A hook error fails the query.
func (f *FaultyStore) BeforeQuery(hook func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeQuery = hook
}

func (f *FaultyStore) runQueryHook(ctx context.Context) error {
	f.mu.Lock()
	hook := f.beforeQuery
	f.mu.Unlock()
	if hook == nil {
		return nil
	}
	return hook(ctx)
}

func (f *FaultyStore) Transactions() int64 { return f.transactions.Load() }
func (f *FaultyStore) Batches() int64      { return f.batches.Load() }
func (f *FaultyStore) Queries() int64      { return f.queries.Load() }

func (f *FaultyStore) snapshot() (getErr, queryErr, batchErr, txErr error, hook func(context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getErr, f.queryErr, f.batchErr, f.txErr, f.beforeCommit
}

func (f *FaultyStore) Get(ctx context.Context, path string) (*store.Document, error) {
	if err, _, _, _, _ := f.snapshot(); err != nil {
		return nil, err
	}
	return f.MemoryStore.Get(ctx, path)
}

func (f *FaultyStore) Query(ctx context.Context, collection string, constraints ...store.Constraint) (*store.QueryResult, error) {
	f.queries.Add(1)
	if _, err, _, _, _ := f.snapshot(); err != nil {
		return nil, err
	}
	if err := f.runQueryHook(ctx); err != nil {
		return nil, err
	}
	return f.MemoryStore.Query(ctx, collection, constraints...)
}

func (f *FaultyStore) QueryGroup(ctx context.Context, collectionID string, constraints ...store.Constraint) (*store.QueryResult, error) {
	f.queries.Add(1)
	if _, err, _, _, _ := f.snapshot(); err != nil {
		return nil, err
	}
	if err := f.runQueryHook(ctx); err != nil {
		return nil, err
	}
	return f.MemoryStore.QueryGroup(ctx, collectionID, constraints...)
}

func (f *FaultyStore) Batch(ctx context.Context, fn func(w store.Writer) error) error {
	f.batches.Add(1)
	if _, _, err, _, _ := f.snapshot(); err != nil {
		return err
	}
	return f.MemoryStore.Batch(ctx, fn)
}

func (f *FaultyStore) RunTransaction(ctx context.Context, fn func(tx store.Writer) error) error {
	f.transactions.Add(1)
	_, _, _, txErr, hook := f.snapshot()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if txErr != nil {
		return txErr
	}
	return f.MemoryStore.RunTransaction(ctx, fn)
}

// Set and Delete go through RunTransaction so hooks observe them too.
func (f *FaultyStore) Set(ctx context.Context, path string, fields store.Fields, opts ...store.SetOption) error {
	return f.RunTransaction(ctx, func(tx store.Writer) error {
		tx.Set(path, fields, opts...)
		return nil
	})
}

func (f *FaultyStore) Delete(ctx context.Context, path string) error {
	return f.RunTransaction(ctx, func(tx store.Writer) error {
		tx.Delete(path)
		return nil
	})
}
