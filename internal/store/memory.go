package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MemoryBackend keeps every table in process. Used for tests and local runs.
type MemoryBackend struct {
	mu     sync.Mutex
	tables map[string]*MemoryTable
	log    *zap.Logger
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(log *zap.Logger) *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]*MemoryTable), log: log}
}

func (b *MemoryBackend) Name() string { return "memory" }

// Table returns the table for schema, creating it on first use. Tables with
// the same name share their data.
func (b *MemoryBackend) Table(schema Schema) (Table, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tables[schema.Name]; ok {
		return t, nil
	}
	t := NewMemoryTable(schema, b.log)
	b.tables[schema.Name] = t
	return t, nil
}

func (b *MemoryBackend) Ping(ctx context.Context) error { return ctx.Err() }

func (b *MemoryBackend) Close() error { return nil }

// MemoryTable is a map-backed Table holding JSON-encoded records.
type MemoryTable struct {
	schema Schema
	items  map[string][]byte
	mu     sync.RWMutex
	log    *zap.Logger
}

// NewMemoryTable creates an empty table.
func NewMemoryTable(schema Schema, log *zap.Logger) *MemoryTable {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemoryTable{
		schema: schema,
		items:  make(map[string][]byte),
		log:    log.With(zap.String("table", schema.Name)),
	}
}

func (t *MemoryTable) Schema() Schema { return t.schema }

func (t *MemoryTable) Put(ctx context.Context, item any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := encodeDocument(item)
	if err != nil {
		return t.fail("put", err)
	}
	key, err := t.schema.keyOf(doc)
	if err != nil {
		return t.fail("put", err)
	}
	raw, err := doc.bytes()
	if err != nil {
		return t.fail("put", err)
	}

	t.mu.Lock()
	t.items[key.id()] = raw
	t.mu.Unlock()
	return nil
}

func (t *MemoryTable) Get(ctx context.Context, key Key, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := t.schema.checkKey(key); err != nil {
		return false, t.fail("get", err)
	}

	t.mu.RLock()
	raw, ok := t.items[key.id()]
	t.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, decodeOne(raw, out)
}

func (t *MemoryTable) BatchGet(ctx context.Context, keys []Key, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := make([][]byte, 0, len(keys))
	t.mu.RLock()
	for _, key := range dedupeKeys(keys) {
		if raw, ok := t.items[key.id()]; ok {
			records = append(records, raw)
		}
	}
	t.mu.RUnlock()
	return decodeList(records, out)
}

func (t *MemoryTable) Update(ctx context.Context, key Key, assignments []Assignment, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.schema.checkKey(key); err != nil {
		return t.fail("update", err)
	}
	if err := t.schema.checkAssignments(assignments); err != nil {
		return t.fail("update", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	raw, ok := t.items[key.id()]
	if !ok {
		return ErrNotFound
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return t.fail("update", err)
	}
	if err := doc.apply(assignments); err != nil {
		return t.fail("update", err)
	}
	updated, err := doc.bytes()
	if err != nil {
		return t.fail("update", err)
	}
	t.items[key.id()] = updated
	return decodeOne(updated, out)
}

func (t *MemoryTable) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.schema.checkKey(key); err != nil {
		return t.fail("delete", err)
	}
	t.mu.Lock()
	delete(t.items, key.id())
	t.mu.Unlock()
	return nil
}

func (t *MemoryTable) Scan(ctx context.Context, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.RLock()
	records := make([][]byte, 0, len(t.items))
	for _, id := range sortedIDs(t.items) {
		records = append(records, t.items[id])
	}
	t.mu.RUnlock()
	return decodeList(records, out)
}

func (t *MemoryTable) Query(ctx context.Context, q Query, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.schema.keyAttribute(q); err != nil {
		return t.fail("query", err)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var records [][]byte
	for _, id := range sortedIDs(t.items) {
		raw := t.items[id]
		doc, err := decodeDocument(raw)
		if err != nil {
			return t.fail("query", err)
		}
		ok, err := t.schema.matchQuery(doc, q)
		if err != nil {
			return t.fail("query", err)
		}
		if ok {
			records = append(records, raw)
		}
	}
	return decodeList(records, out)
}

func (t *MemoryTable) BatchWrite(ctx context.Context, items []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	docs, keys, err := dedupeItems(t.schema, items)
	if err != nil {
		return t.fail("batch write", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, doc := range docs {
		raw, err := doc.bytes()
		if err != nil {
			return t.fail("batch write", err)
		}
		t.items[keys[i].id()] = raw
	}
	return nil
}

func (t *MemoryTable) fail(op string, err error) error {
	t.log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("failed to %s in %s: %w", op, t.schema.Name, err)
}
