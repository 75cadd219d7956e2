// Package docstore is a schemaless JSON document store with equality
// queries and live, full-replacement snapshot subscriptions.
//
// Backends implement Store. Live wraps any backend and adds Subscribe;
// writes must go through the Live wrapper for subscribers to observe them.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hisaab/internal/uuid"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned when creating a document whose id is taken.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("document store closed")

	// ErrInvalidDocument is returned when data does not encode to a JSON object.
	ErrInvalidDocument = errors.New("document must be a JSON object")
)

// FieldID is the body field mirroring a document's identifier.
const FieldID = "id"

// FieldOwner is the tenant-partition key backends index.
const FieldOwner = "createdBy"

// Ref addresses a single document.
type Ref struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (r Ref) String() string { return r.Collection + "/" + r.ID }

// Document is a stored JSON object and its metadata.
type Document struct {
	Ref
	Data      json.RawMessage
	CreatedAt time.Time
}

// DataTo decodes the document body into v.
func (d Document) DataTo(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", d.Ref, err)
	}
	return nil
}

// Store is implemented by every document store backend.
type Store interface {
	// Create writes a new document. An empty id makes the store assign one.
	// The body's "id" field is always set to the document id.
	Create(ctx context.Context, collection, id string, data any) (Ref, error)
	Get(ctx context.Context, ref Ref) (Document, error)
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, ref Ref, fields map[string]any) error
	Delete(ctx context.Context, ref Ref) error
	// Find returns the documents matching q in insertion order.
	Find(ctx context.Context, q Query) ([]Document, error)
	Close() error
}

// encodeNew turns data into a JSON object body carrying id.
func encodeNew(id string, data any) (string, []byte, map[string]any, error) {
	if id == "" {
		id = uuid.New()
	}
	fields, err := toFields(data)
	if err != nil {
		return "", nil, nil, err
	}
	fields[FieldID] = id
	body, err := json.Marshal(fields)
	if err != nil {
		return "", nil, nil, fmt.Errorf("encode document: %w", err)
	}
	return id, body, fields, nil
}

// mergeFields applies a partial update to an existing body. The id field is
// store-owned and cannot be changed.
func mergeFields(id string, body []byte, update map[string]any) ([]byte, map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, nil, fmt.Errorf("decode document: %w", err)
	}
	patch, err := toFields(update)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	fields[FieldID] = id
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("encode document: %w", err)
	}
	return merged, fields, nil
}

func toFields(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrInvalidDocument
	}
	return fields, nil
}

func ownerOf(fields map[string]any) string {
	if s, ok := fields[FieldOwner].(string); ok {
		return s
	}
	return ""
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
