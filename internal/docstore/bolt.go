package docstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// indexSuffix names the id -> sequence bucket paired with each collection.
const indexSuffix = ".ids"

// boltRecord is the value stored under a collection's sequence key.
type boltRecord struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

// BoltStore keeps each collection in a bbolt bucket keyed by sequence so
// cursor order is insertion order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a bbolt database file.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Create implements Store.
func (s *BoltStore) Create(ctx context.Context, collection, id string, data any) (Ref, error) {
	if err := checkContext(ctx); err != nil {
		return Ref{}, err
	}
	id, body, _, err := encodeNew(id, data)
	if err != nil {
		return Ref{}, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, idx, err := buckets(tx, collection)
		if err != nil {
			return err
		}
		if idx.Get([]byte(id)) != nil {
			return ErrAlreadyExists
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec, err := json.Marshal(boltRecord{ID: id, CreatedAt: time.Now().UTC(), Data: body})
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		key := itob(seq)
		if err := b.Put(key, rec); err != nil {
			return err
		}
		return idx.Put([]byte(id), key)
	})
	if err != nil {
		return Ref{}, err
	}
	return Ref{Collection: collection, ID: id}, nil
}

// Get implements Store.
func (s *BoltStore) Get(ctx context.Context, ref Ref) (Document, error) {
	if err := checkContext(ctx); err != nil {
		return Document{}, err
	}
	var doc Document
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(ref.Collection))
		idx := tx.Bucket([]byte(ref.Collection + indexSuffix))
		if b == nil || idx == nil {
			return ErrNotFound
		}
		key := idx.Get([]byte(ref.ID))
		if key == nil {
			return ErrNotFound
		}
		rec, err := decodeRecord(b.Get(key))
		if err != nil {
			return err
		}
		doc = rec.document(ref.Collection)
		return nil
	})
	return doc, err
}

// Update implements Store.
func (s *BoltStore) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(ref.Collection))
		idx := tx.Bucket([]byte(ref.Collection + indexSuffix))
		if b == nil || idx == nil {
			return ErrNotFound
		}
		key := idx.Get([]byte(ref.ID))
		if key == nil {
			return ErrNotFound
		}
		rec, err := decodeRecord(b.Get(key))
		if err != nil {
			return err
		}
		merged, _, err := mergeFields(ref.ID, rec.Data, fields)
		if err != nil {
			return err
		}
		rec.Data = merged
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		return b.Put(key, raw)
	})
}

// Delete implements Store.
func (s *BoltStore) Delete(ctx context.Context, ref Ref) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(ref.Collection))
		idx := tx.Bucket([]byte(ref.Collection + indexSuffix))
		if b == nil || idx == nil {
			return ErrNotFound
		}
		key := idx.Get([]byte(ref.ID))
		if key == nil {
			return ErrNotFound
		}
		if err := b.Delete(key); err != nil {
			return err
		}
		return idx.Delete([]byte(ref.ID))
	})
}

// Find implements Store.
func (s *BoltStore) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	docs := []Document{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(q.Collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if q.Matches(rec.Data) {
				// Copy the value since it's only valid during the transaction.
				docs = append(docs, rec.document(q.Collection))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func buckets(tx *bolt.Tx, collection string) (*bolt.Bucket, *bolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists([]byte(collection))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bucket %s: %w", collection, err)
	}
	idx, err := tx.CreateBucketIfNotExists([]byte(collection + indexSuffix))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bucket %s: %w", collection+indexSuffix, err)
	}
	return b, idx, nil
}

func decodeRecord(v []byte) (boltRecord, error) {
	if v == nil {
		return boltRecord{}, ErrNotFound
	}
	var rec boltRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return boltRecord{}, errors.Join(ErrInvalidDocument, err)
	}
	return rec, nil
}

func (r boltRecord) document(collection string) Document {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)
	return Document{
		Ref:       Ref{Collection: collection, ID: r.ID},
		Data:      data,
		CreatedAt: r.CreatedAt,
	}
}

// itob converts a sequence number to a big-endian bbolt key.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
