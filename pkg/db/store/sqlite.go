package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/loadoutsync/pkg/db/migrations"
	"github.com/mwantia/loadoutsync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const maxTransactionAttempts = 3

// SQLiteStore implements DocumentStore and CacheStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
	cfg  SQLiteConfig
	now  func() time.Time
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed document store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(s.cfg.MaxOpenConns) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs the versioned schema migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Document operations

func (s *SQLiteStore) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, _, err := SplitPath(path); err != nil {
		return nil, err
	}

	var row models.Document
	err := s.db.WithContext(ctx).Where("path = ?", path).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return rowToDocument(&row)
}

func (s *SQLiteStore) Set(ctx context.Context, path string, fields Fields, opts ...SetOption) error {
	return s.RunTransaction(ctx, func(tx Writer) error {
		tx.Set(path, fields, opts...)
		return nil
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	return s.RunTransaction(ctx, func(tx Writer) error {
		tx.Delete(path)
		return nil
	})
}

// Queries

func (s *SQLiteStore) Query(ctx context.Context, collection string, constraints ...Constraint) (*QueryResult, error) {
	return s.query(ctx, s.db.WithContext(ctx).Where("collection = ?", collection), constraints)
}

func (s *SQLiteStore) QueryGroup(ctx context.Context, collectionID string, constraints ...Constraint) (*QueryResult, error) {
	return s.query(ctx, s.db.WithContext(ctx).Where("collection_id = ?", collectionID), constraints)
}

func (s *SQLiteStore) query(ctx context.Context, scoped *gorm.DB, constraints []Constraint) (*QueryResult, error) {
	plan, err := compile(constraints)
	if err != nil {
		return nil, err
	}

	q := scoped.Model(&models.Document{})
	for _, w := range plan.filters {
		expr := jsonField(w.Field)
		switch w.Op {
		case OpEqual:
			q = q.Where(expr+" = ?", sqlValue(w.Value))
		case OpGreaterOrEqual:
			q = q.Where(expr+" >= ?", sqlValue(w.Value))
		case OpIn:
			q = q.Where(expr+" IN ?", sqlValues(w.Value))
		case OpArrayContainsAny:
			q = q.Where(fmt.Sprintf(
				"EXISTS (SELECT 1 FROM json_each(documents.data, '$.%s') AS je WHERE je.value IN ?)", w.Field),
				sqlValues(w.Value))
		}
	}

	if plan.order != nil {
		expr := jsonField(plan.order.Field)
		dir, cmp := "ASC", ">"
		if plan.order.Direction == Descending {
			dir, cmp = "DESC", "<"
		}
		if plan.after != nil {
			v := sqlValue(plan.after.Value)
			q = q.Where(fmt.Sprintf("(%s %s ? OR (%s = ? AND path %s ?))", expr, cmp, expr, cmp),
				v, v, plan.after.Path)
		}
		q = q.Order(expr + " " + dir).Order("path " + dir)
	} else {
		if plan.after != nil {
			q = q.Where("path > ?", plan.after.Path)
		}
		q = q.Order("path ASC")
	}

	if plan.limit > 0 {
		q = q.Limit(plan.limit)
	}

	var rows []models.Document
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	result := &QueryResult{Documents: make([]*Document, 0, len(rows))}
	for i := range rows {
		doc, err := rowToDocument(&rows[i])
		if err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, doc)
	}
	if len(result.Documents) > 0 {
		result.Cursor = plan.cursorFor(result.Documents[len(result.Documents)-1])
	}
	return result, nil
}

// Multi-document writes

func (s *SQLiteStore) Batch(ctx context.Context, fn func(w Writer) error) error {
	rec := &recorder{}
	if err := fn(rec); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.apply(tx, rec.ops)
	})
}

// RunTransaction applies the recorded writes atomically, retrying when the
// database reports a competing writer.
func (s *SQLiteStore) RunTransaction(ctx context.Context, fn func(tx Writer) error) error {
	rec := &recorder{}
	if err := fn(rec); err != nil {
		return err
	}

	var err error
	for attempt := 1; attempt <= maxTransactionAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.apply(tx, rec.ops)
		})
		if err == nil || !isBusy(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
		}
	}
	return err
}

func (s *SQLiteStore) apply(tx *gorm.DB, ops []writeOp) error {
	now := s.now()

	for _, op := range ops {
		collection, collectionID, id, err := SplitPath(op.path)
		if err != nil {
			return err
		}

		var row models.Document
		err = tx.Where("path = ?", op.path).Take(&row).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		switch op.kind {
		case opDelete:
			if exists {
				if err := tx.Where("path = ?", op.path).Delete(&models.Document{}).Error; err != nil {
					return err
				}
			}
			continue
		case opUpdate:
			if !exists {
				return fmt.Errorf("%w: %s", ErrNotFound, op.path)
			}
		}

		var base Fields
		if exists {
			if err := json.Unmarshal(row.Data, &base); err != nil {
				return fmt.Errorf("failed to decode %s: %w", op.path, err)
			}
		}

		fields, err := resolveFields(base, op.fields, millis(now), op.merge || op.kind == opUpdate)
		if err != nil {
			return err
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}

		if exists {
			err = tx.Model(&models.Document{}).Where("path = ?", op.path).
				Updates(map[string]any{"data": string(data), "updated_at": now}).Error
		} else {
			err = tx.Create(&models.Document{
				Path:         op.path,
				Collection:   collection,
				CollectionID: collectionID,
				DocID:        id,
				Data:         data,
				CreatedAt:    now,
				UpdatedAt:    now,
			}).Error
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", op.path, err)
		}
	}

	return nil
}

// Cache operations

func (s *SQLiteStore) GetEntry(ctx context.Context, namespace, key string) (*CacheEntry, error) {
	var row models.CacheEntry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	if err != nil {
		return nil, err
	}
	return &CacheEntry{
		Namespace: row.Namespace,
		Key:       row.Key,
		Data:      []byte(row.Data),
		Timestamp: row.Timestamp,
	}, nil
}

func (s *SQLiteStore) PutEntry(ctx context.Context, entry CacheEntry) error {
	row := models.CacheEntry{
		Namespace: entry.Namespace,
		Key:       entry.Key,
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (s *SQLiteStore) RemoveEntry(ctx context.Context, namespace, key string) error {
	return s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		Delete(&models.CacheEntry{}).Error
}

func rowToDocument(row *models.Document) (*Document, error) {
	fields := Fields{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", row.Path, err)
		}
	}
	return &Document{
		Path:       row.Path,
		ID:         row.DocID,
		Fields:     fields,
		CreateTime: row.CreatedAt,
		UpdateTime: row.UpdatedAt,
	}, nil
}

// jsonField is only called with names accepted by fieldPattern.
func jsonField(field string) string {
	return fmt.Sprintf("json_extract(documents.data, '$.%s')", field)
}

// sqlValue adapts a normalized JSON value to what json_extract yields.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func sqlValues(v any) []any {
	list, _ := v.([]any)
	out := make([]any, 0, len(list))
	for _, item := range list {
		out = append(out, sqlValue(item))
	}
	return out
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
