package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// document is the decoded top level of a JSON record. Attribute values stay
// raw so that re-encoding is lossless.
type document map[string]json.RawMessage

func encodeDocument(item any) (document, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode item: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("item must encode to a JSON object: %w", err)
	}
	return doc, nil
}

func decodeDocument(raw []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored item: %w", err)
	}
	return doc, nil
}

func (d document) bytes() ([]byte, error) {
	return json.Marshal(d)
}

// stringAttr returns a scalar attribute as a string. Numbers keep their
// literal form; missing and null attributes are empty.
func (d document) stringAttr(name string) string {
	raw, ok := d[name]
	if !ok || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (d document) equals(field string, value any) (bool, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s filter: %w", field, err)
	}
	got, ok := d[field]
	if !ok {
		return false, nil
	}
	return bytes.Equal(got, want), nil
}

func (d document) apply(assignments []Assignment) error {
	for _, a := range assignments {
		raw, err := json.Marshal(a.Value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", a.Field, err)
		}
		d[a.Field] = raw
	}
	return nil
}

func (s Schema) keyOf(doc document) (Key, error) {
	key := Key{Partition: doc.stringAttr(s.PartitionKey)}
	if key.Partition == "" {
		return Key{}, fmt.Errorf("table %s: item is missing partition key %q", s.Name, s.PartitionKey)
	}
	if s.SortKey != "" {
		key.Sort = doc.stringAttr(s.SortKey)
		if key.Sort == "" {
			return Key{}, fmt.Errorf("table %s: item is missing sort key %q", s.Name, s.SortKey)
		}
	}
	return key, nil
}

func (s Schema) checkKey(key Key) error {
	if key.Partition == "" {
		return fmt.Errorf("table %s: partition key value is required", s.Name)
	}
	if s.SortKey != "" && key.Sort == "" {
		return fmt.Errorf("table %s: sort key value is required", s.Name)
	}
	return nil
}

func (s Schema) checkAssignments(assignments []Assignment) error {
	if len(assignments) == 0 {
		return fmt.Errorf("table %s: at least one assignment is required", s.Name)
	}
	for _, a := range assignments {
		if a.Field == "" {
			return fmt.Errorf("table %s: assignment field is required", s.Name)
		}
		if a.Field == s.PartitionKey || (s.SortKey != "" && a.Field == s.SortKey) {
			return fmt.Errorf("table %s: key attribute %q cannot be updated", s.Name, a.Field)
		}
	}
	return nil
}

// matchQuery reports whether doc satisfies q.
func (s Schema) matchQuery(doc document, q Query) (bool, error) {
	attr, err := s.keyAttribute(q)
	if err != nil {
		return false, err
	}
	if doc.stringAttr(attr) != q.Value {
		return false, nil
	}
	if q.Field == "" {
		return true, nil
	}
	return doc.equals(q.Field, q.FieldValue)
}

func (k Key) id() string {
	return k.Partition + "\x00" + k.Sort
}

// decodeList unmarshals a set of stored records into a pointer to a slice.
func decodeList(records [][]byte, out any) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r)
	}
	buf.WriteByte(']')
	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("failed to decode items: %w", err)
	}
	return nil
}

func decodeOne(record []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(record, out); err != nil {
		return fmt.Errorf("failed to decode item: %w", err)
	}
	return nil
}

// dedupeItems keeps the last write for every key, in first-seen order.
func dedupeItems(schema Schema, items []any) ([]document, []Key, error) {
	docs := make([]document, 0, len(items))
	keys := make([]Key, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, item := range items {
		doc, err := encodeDocument(item)
		if err != nil {
			return nil, nil, err
		}
		key, err := schema.keyOf(doc)
		if err != nil {
			return nil, nil, err
		}
		if i, ok := seen[key.id()]; ok {
			docs[i] = doc
			continue
		}
		seen[key.id()] = len(docs)
		docs = append(docs, doc)
		keys = append(keys, key)
	}
	return docs, keys, nil
}

func dedupeKeys(keys []Key) []Key {
	seen := make(map[string]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k.id()]; ok {
			continue
		}
		seen[k.id()] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
