package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps documents and cache entries in process memory. It honours
// the same query and transaction semantics as SQLiteStore.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*Document
	cache map[string]CacheEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*Document),
		cache: make(map[string]CacheEntry),
		now:   time.Now,
	}
}

// WithClock replaces the commit clock, used for server timestamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Connect(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Health(ctx context.Context) error  { return ctx.Err() }

func (s *MemoryStore) Get(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, _, err := SplitPath(path); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return cloneDocument(doc), nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, fields Fields, opts ...SetOption) error {
	return s.RunTransaction(ctx, func(tx Writer) error {
		tx.Set(path, fields, opts...)
		return nil
	})
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	return s.RunTransaction(ctx, func(tx Writer) error {
		tx.Delete(path)
		return nil
	})
}

func (s *MemoryStore) Query(ctx context.Context, collection string, constraints ...Constraint) (*QueryResult, error) {
	return s.query(ctx, constraints, func(doc *Document) bool {
		parent, _, _, _ := SplitPath(doc.Path)
		return parent == collection
	})
}

func (s *MemoryStore) QueryGroup(ctx context.Context, collectionID string, constraints ...Constraint) (*QueryResult, error) {
	return s.query(ctx, constraints, func(doc *Document) bool {
		_, group, _, _ := SplitPath(doc.Path)
		return group == collectionID
	})
}

func (s *MemoryStore) query(ctx context.Context, constraints []Constraint, scope func(*Document) bool) (*QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan, err := compile(constraints)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var matched []*Document
	for _, doc := range s.docs {
		if !scope(doc) || !plan.admits(doc) {
			continue
		}
		matched = append(matched, cloneDocument(doc))
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return plan.less(matched[i], matched[j])
	})

	if plan.after != nil {
		filtered := matched[:0]
		for _, doc := range matched {
			if plan.isAfter(doc) {
				filtered = append(filtered, doc)
			}
		}
		matched = filtered
	}

	if plan.limit > 0 && len(matched) > plan.limit {
		matched = matched[:plan.limit]
	}

	result := &QueryResult{Documents: matched}
	if len(matched) > 0 {
		result.Cursor = plan.cursorFor(matched[len(matched)-1])
	}
	return result, nil
}

func (s *MemoryStore) Batch(ctx context.Context, fn func(w Writer) error) error {
	return s.RunTransaction(ctx, fn)
}

// RunTransaction applies every recorded write under one lock, or none of them.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := &recorder{}
	if err := fn(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	staged := make(map[string]*Document)
	deleted := make(map[string]bool)

	current := func(path string) *Document {
		if deleted[path] {
			return nil
		}
		if doc, ok := staged[path]; ok {
			return doc
		}
		return s.docs[path]
	}

	for _, op := range rec.ops {
		_, _, id, err := SplitPath(op.path)
		if err != nil {
			return err
		}
		existing := current(op.path)

		switch op.kind {
		case opDelete:
			delete(staged, op.path)
			deleted[op.path] = true
			continue
		case opUpdate:
			if existing == nil {
				return fmt.Errorf("%w: %s", ErrNotFound, op.path)
			}
		}

		var base Fields
		created := now
		if existing != nil {
			base = existing.Fields
			created = existing.CreateTime
		}
		merge := op.merge || op.kind == opUpdate
		fields, err := resolveFields(base, op.fields, millis(now), merge)
		if err != nil {
			return err
		}

		staged[op.path] = &Document{
			Path:       op.path,
			ID:         id,
			Fields:     fields,
			CreateTime: created,
			UpdateTime: now,
		}
		delete(deleted, op.path)
	}

	for path := range deleted {
		delete(s.docs, path)
	}
	for path, doc := range staged {
		s.docs[path] = doc
	}
	return nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, namespace, key string) (*CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[namespace+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	entry.Data = append([]byte(nil), entry.Data...)
	return &entry, nil
}

func (s *MemoryStore) PutEntry(ctx context.Context, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Data = append([]byte(nil), entry.Data...)
	s.cache[entry.Namespace+"/"+entry.Key] = entry
	return nil
}

func (s *MemoryStore) RemoveEntry(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, namespace+"/"+key)
	return nil
}

func (p *queryPlan) admits(doc *Document) bool {
	for _, w := range p.filters {
		if !w.matches(doc.Fields) {
			return false
		}
	}
	return true
}

func (p *queryPlan) less(a, b *Document) bool {
	if p.order == nil {
		return a.Path < b.Path
	}
	c, _ := compareValues(lookup(a.Fields, p.order.Field), lookup(b.Fields, p.order.Field))
	if c == 0 {
		c = compareStrings(a.Path, b.Path)
	}
	if p.order.Direction == Descending {
		return c > 0
	}
	return c < 0
}

func (p *queryPlan) isAfter(doc *Document) bool {
	if p.order == nil {
		return doc.Path > p.after.Path
	}
	c, ok := compareValues(lookup(doc.Fields, p.order.Field), p.after.Value)
	if !ok {
		return false
	}
	if c == 0 {
		c = compareStrings(doc.Path, p.after.Path)
	}
	if p.order.Direction == Descending {
		return c < 0
	}
	return c > 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cloneDocument(doc *Document) *Document {
	fields, err := normalize(doc.Fields)
	if err != nil {
		fields = Fields{}
	}
	return &Document{
		Path:       doc.Path,
		ID:         doc.ID,
		Fields:     fields,
		CreateTime: doc.CreateTime,
		UpdateTime: doc.UpdateTime,
	}
}
