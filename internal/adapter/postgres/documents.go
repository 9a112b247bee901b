package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hypertension/internal/domain"
)

// timeLayout is fixed width so that stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ domain.DocumentStore = (*DB)(nil)

// Get returns a single document.
func (d *DB) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var raw []byte
	err := d.sql.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	).Scan(&raw)
	if err != nil {
		return domain.Document{}, storeError("get", err)
	}
	data, err := decodeData(raw)
	if err != nil {
		return domain.Document{}, storeError("get", err)
	}
	return domain.Document{ID: id, Data: data}, nil
}

// Create inserts a document under a generated id.
func (d *DB) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	raw, err := encodeData(fields)
	if err != nil {
		return "", storeError("create", err)
	}
	id := uuid.NewString()
	if _, err := d.sql.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)",
		collection, id, raw,
	); err != nil {
		return "", storeError("create", err)
	}
	return id, nil
}

// Update merges fields into an existing document.
func (d *DB) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := encodeData(fields)
	if err != nil {
		return storeError("update", err)
	}
	res, err := d.sql.ExecContext(ctx,
		"UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2",
		collection, id, raw,
	)
	if err != nil {
		return storeError("update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewStoreError("update", domain.StoreNotFound, nil)
	}
	return nil
}

// Upsert writes a document under id, merging into an existing one when merge
// is set.
func (d *DB) Upsert(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	raw, err := encodeData(fields)
	if err != nil {
		return storeError("upsert", err)
	}
	set := "EXCLUDED.data"
	if merge {
		set = "documents.data || EXCLUDED.data"
	}
	if _, err := d.sql.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3) "+
			"ON CONFLICT (collection, id) DO UPDATE SET data = "+set,
		collection, id, raw,
	); err != nil {
		return storeError("upsert", err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (d *DB) Delete(ctx context.Context, collection, id string) error {
	if _, err := d.sql.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	); err != nil {
		return storeError("delete", err)
	}
	return nil
}

// query evaluates q. String equality filters are pushed into SQL; the rest
// of the filters and the ordering are applied in memory.
func (d *DB) query(ctx context.Context, q domain.Query) ([]domain.Document, error) {
	var (
		where = []string{"collection = $1"}
		args  = []any{q.Collection}
	)
	for _, f := range q.Filters {
		s, ok := f.Value.(string)
		if f.Op != domain.OpEq || !ok {
			continue
		}
		args = append(args, f.Field, s)
		where = append(where, fmt.Sprintf("data->>$%d = $%d", len(args)-1, len(args)))
	}

	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE "+strings.Join(where, " AND ")+" ORDER BY seq",
		args...,
	)
	if err != nil {
		return nil, storeError("query", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, storeError("query", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, storeError("query", fmt.Errorf("document %s: %w", id, err))
		}
		docs = append(docs, domain.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("query", err)
	}
	return q.Apply(docs), nil
}

func encodeData(fields map[string]any) ([]byte, error) {
	resolved := domain.ResolveServerTimestamps(fields, time.Now())
	for k, v := range resolved {
		if t, ok := v.(time.Time); ok {
			resolved[k] = t.UTC().Format(timeLayout)
		}
	}
	return json.Marshal(resolved)
}

func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("document is not an object")
	}
	return data, nil
}
