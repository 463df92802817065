package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/logger"
)

// Document is one stored record in the shared documents table.
type Document struct {
	Collection string `gorm:"column:collection;primaryKey;size:191"`
	PK         string `gorm:"column:pk;primaryKey;size:191"`
	SK         string `gorm:"column:sk;primaryKey;size:191"`
	Body       string `gorm:"column:body;type:text;not null"`
	UpdatedAt  time.Time
}

// TableName sets the table name for GORM.
func (Document) TableName() string {
	return "documents"
}

// GORMBackend stores every table as rows of one documents table.
type GORMBackend struct {
	db     *gorm.DB
	driver string
	log    *zap.Logger
}

// OpenGORM connects to sqlite or postgres and migrates the documents table.
func OpenGORM(driver, dsn string, log *zap.Logger) (*GORMBackend, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(log, logger.GormLevelFor(log)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGORMBackend(db, driver, log)
}

// NewGORMBackend wraps an open connection.
func NewGORMBackend(db *gorm.DB, driver string, log *zap.Logger) (*GORMBackend, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate documents table: %w", err)
	}
	log.Info("document table ready", zap.String("driver", driver))
	return &GORMBackend{db: db, driver: driver, log: log}, nil
}

func (b *GORMBackend) Name() string { return b.driver }

func (b *GORMBackend) Table(schema Schema) (Table, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	return &GORMTable{
		db:     b.db,
		schema: schema,
		log:    b.log.With(zap.String("table", schema.Name)),
	}, nil
}

func (b *GORMBackend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (b *GORMBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GORMTable is a Table over the documents table, scoped to one collection.
type GORMTable struct {
	db     *gorm.DB
	schema Schema
	log    *zap.Logger
}

func (t *GORMTable) Schema() Schema { return t.schema }

func (t *GORMTable) scoped(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Where("collection = ?", t.schema.Name)
}

func (t *GORMTable) row(key Key, doc document) (Document, error) {
	body, err := doc.bytes()
	if err != nil {
		return Document{}, err
	}
	return Document{
		Collection: t.schema.Name,
		PK:         key.Partition,
		SK:         key.Sort,
		Body:       string(body),
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

func (t *GORMTable) Put(ctx context.Context, item any) error {
	doc, err := encodeDocument(item)
	if err != nil {
		return t.fail("put", err)
	}
	key, err := t.schema.keyOf(doc)
	if err != nil {
		return t.fail("put", err)
	}
	row, err := t.row(key, doc)
	if err != nil {
		return t.fail("put", err)
	}
	if err := t.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return t.fail("put", err)
	}
	return nil
}

func (t *GORMTable) Get(ctx context.Context, key Key, out any) (bool, error) {
	if err := t.schema.checkKey(key); err != nil {
		return false, t.fail("get", err)
	}
	var row Document
	err := t.scoped(ctx).Where("pk = ? AND sk = ?", key.Partition, key.Sort).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, t.fail("get", err)
	}
	return true, decodeOne([]byte(row.Body), out)
}

func (t *GORMTable) BatchGet(ctx context.Context, keys []Key, out any) error {
	keys = dedupeKeys(keys)
	if len(keys) == 0 {
		return decodeList(nil, out)
	}

	wanted := make(map[string]struct{}, len(keys))
	pks := make([]string, 0, len(keys))
	for _, k := range keys {
		wanted[k.id()] = struct{}{}
		pks = append(pks, k.Partition)
	}

	var rows []Document
	if err := t.scoped(ctx).Where("pk IN ?", pks).Order("pk, sk").Find(&rows).Error; err != nil {
		return t.fail("batch get", err)
	}
	records := make([][]byte, 0, len(rows))
	for _, row := range rows {
		if _, ok := wanted[Key{Partition: row.PK, Sort: row.SK}.id()]; ok {
			records = append(records, []byte(row.Body))
		}
	}
	return decodeList(records, out)
}

func (t *GORMTable) Update(ctx context.Context, key Key, assignments []Assignment, out any) error {
	if err := t.schema.checkKey(key); err != nil {
		return t.fail("update", err)
	}
	if err := t.schema.checkAssignments(assignments); err != nil {
		return t.fail("update", err)
	}

	var updated []byte
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Document
		err := tx.Where("collection = ? AND pk = ? AND sk = ?", t.schema.Name, key.Partition, key.Sort).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		doc, err := decodeDocument([]byte(row.Body))
		if err != nil {
			return err
		}
		if err := doc.apply(assignments); err != nil {
			return err
		}
		next, err := t.row(key, doc)
		if err != nil {
			return err
		}
		err = tx.Model(&Document{}).
			Where("collection = ? AND pk = ? AND sk = ?", t.schema.Name, key.Partition, key.Sort).
			Updates(map[string]any{"body": next.Body, "updated_at": next.UpdatedAt}).Error
		if err != nil {
			return err
		}
		updated = []byte(next.Body)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return t.fail("update", err)
	}
	return decodeOne(updated, out)
}

func (t *GORMTable) Delete(ctx context.Context, key Key) error {
	if err := t.schema.checkKey(key); err != nil {
		return t.fail("delete", err)
	}
	err := t.db.WithContext(ctx).
		Where("collection = ? AND pk = ? AND sk = ?", t.schema.Name, key.Partition, key.Sort).
		Delete(&Document{}).Error
	if err != nil {
		return t.fail("delete", err)
	}
	return nil
}

func (t *GORMTable) Scan(ctx context.Context, out any) error {
	var rows []Document
	if err := t.scoped(ctx).Order("pk, sk").Find(&rows).Error; err != nil {
		return t.fail("scan", err)
	}
	return decodeList(bodies(rows), out)
}

// Query narrows by pk in SQL when possible; index and filter attributes are
// matched on the decoded body.
func (t *GORMTable) Query(ctx context.Context, q Query, out any) error {
	if _, err := t.schema.keyAttribute(q); err != nil {
		return t.fail("query", err)
	}

	tx := t.scoped(ctx)
	if q.Index == "" {
		tx = tx.Where("pk = ?", q.Value)
	}
	var rows []Document
	if err := tx.Order("pk, sk").Find(&rows).Error; err != nil {
		return t.fail("query", err)
	}

	records := make([][]byte, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDocument([]byte(row.Body))
		if err != nil {
			return t.fail("query", err)
		}
		ok, err := t.schema.matchQuery(doc, q)
		if err != nil {
			return t.fail("query", err)
		}
		if ok {
			records = append(records, []byte(row.Body))
		}
	}
	return decodeList(records, out)
}

func (t *GORMTable) BatchWrite(ctx context.Context, items []any) error {
	docs, keys, err := dedupeItems(t.schema, items)
	if err != nil {
		return t.fail("batch write", err)
	}
	if len(docs) == 0 {
		return nil
	}

	rows := make([]Document, 0, len(docs))
	for i, doc := range docs {
		row, err := t.row(keys[i], doc)
		if err != nil {
			return t.fail("batch write", err)
		}
		rows = append(rows, row)
	}
	err = t.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(&rows, BatchSize).Error
	if err != nil {
		return t.fail("batch write", err)
	}
	return nil
}

func (t *GORMTable) fail(op string, err error) error {
	t.log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("failed to %s in %s: %w", op, t.schema.Name, err)
}

func bodies(rows []Document) [][]byte {
	out := make([][]byte, len(rows))
	for i, row := range rows {
		out[i] = []byte(row.Body)
	}
	return out
}
