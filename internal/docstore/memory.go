package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store used in tests. Semantics mirror the sqlite
// adapter, including nil-deletes-field merges.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]json.RawMessage // collection -> id -> body
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]json.RawMessage)}
}

func (m *Memory) Get(_ context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return body, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, value any, merge bool) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]json.RawMessage)
	}

	if merge {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return fmt.Errorf("merge requires an object body: %w", err)
		}
		base := map[string]json.RawMessage{}
		if existing, ok := m.docs[collection][id]; ok {
			if err := json.Unmarshal(existing, &base); err != nil {
				return err
			}
		}
		for k, v := range fields {
			if string(v) == "null" {
				delete(base, k)
				continue
			}
			base[k] = v
		}
		body, err = json.Marshal(base)
		if err != nil {
			return err
		}
	}

	m.docs[collection][id] = body
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []json.RawMessage
	for _, body := range m.docs[collection] {
		fields := map[string]any{}
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		match := true
		for _, f := range q.Filters {
			if fmt.Sprint(fields[f.Field]) != fmt.Sprint(f.Value) {
				match = false
				break
			}
		}
		if match {
			out = append(out, body)
		}
	}

	if q.OrderBy != "" {
		sort.Slice(out, func(i, j int) bool {
			a := fieldString(out[i], q.OrderBy)
			b := fieldString(out[j], q.OrderBy)
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[collection], id)
	return nil
}

func fieldString(body json.RawMessage, field string) string {
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	return fmt.Sprint(fields[field])
}
