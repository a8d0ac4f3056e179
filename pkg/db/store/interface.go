package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an addressed document or cache entry does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidQuery is returned for constraint sets the store cannot execute.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidPath is returned for paths that do not address a document.
	ErrInvalidPath = errors.New("invalid document path")
)

// DocumentStore defines the remote document store consumed by the engines.
//
// Transactions and batches only expose writes: every value a transaction
// depends on must be read before it starts.
type DocumentStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Document operations
	Get(ctx context.Context, path string) (*Document, error)
	Set(ctx context.Context, path string, fields Fields, opts ...SetOption) error
	Delete(ctx context.Context, path string) error

	// Queries
	Query(ctx context.Context, collection string, constraints ...Constraint) (*QueryResult, error)
	QueryGroup(ctx context.Context, collectionID string, constraints ...Constraint) (*QueryResult, error)

	// Multi-document writes
	Batch(ctx context.Context, fn func(w Writer) error) error
	RunTransaction(ctx context.Context, fn func(tx Writer) error) error
}

// CacheStore is the durable backend of the namespaced key-value cache.
type CacheStore interface {
	GetEntry(ctx context.Context, namespace, key string) (*CacheEntry, error)
	PutEntry(ctx context.Context, entry CacheEntry) error
	RemoveEntry(ctx context.Context, namespace, key string) error
}

// Backend is a store serving both roles, which is what the agent wires.
type Backend interface {
	DocumentStore
	CacheStore
}

// Writer records the writes of a transaction or batch. Nothing is applied
// until the surrounding call commits.
type Writer interface {
	Set(path string, fields Fields, opts ...SetOption)
	Update(path string, fields Fields)
	Delete(path string)
}

type SetOption func(*setOptions)

type setOptions struct {
	merge bool
}

// Merge keeps fields of an existing document that are not part of the write.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

// Document is a read snapshot.
type Document struct {
	Path       string
	ID         string
	Fields     Fields
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryResult holds one page of documents and the cursor positioned after the
// last of them. Cursor is empty when no documents were returned.
type QueryResult struct {
	Documents []*Document
	Cursor    string
}

type CacheEntry struct {
	Namespace string
	Key       string
	Data      []byte
	Timestamp int64
}
