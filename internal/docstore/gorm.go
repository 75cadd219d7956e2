package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// documentRow is the SQL representation of a document. Seq preserves
// insertion order; CreatedBy is lifted out of the body so tenant-scoped
// queries use an index.
type documentRow struct {
	Seq        int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	DocID      string    `gorm:"column:doc_id;type:varchar(64);not null;uniqueIndex:idx_documents_collection_doc"`
	Collection string    `gorm:"column:collection;type:varchar(64);not null;uniqueIndex:idx_documents_collection_doc;index:idx_documents_collection_owner"`
	CreatedBy  string    `gorm:"column:created_by;type:varchar(128);not null;default:'';index:idx_documents_collection_owner"`
	Data       string    `gorm:"column:data;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (documentRow) TableName() string { return "documents" }

func (r documentRow) document() Document {
	return Document{
		Ref:       Ref{Collection: r.Collection, ID: r.DocID},
		Data:      []byte(r.Data),
		CreatedAt: r.CreatedAt,
	}
}

// GormStore keeps documents in a single SQL table.
type GormStore struct {
	db *gorm.DB
}

// AutoMigrate creates the documents table. Postgres deployments use the SQL
// migrations instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&documentRow{})
}

// NewGormStore wraps an open GORM connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Create implements Store.
func (s *GormStore) Create(ctx context.Context, collection, id string, data any) (Ref, error) {
	id, body, fields, err := encodeNew(id, data)
	if err != nil {
		return Ref{}, err
	}

	row := &documentRow{
		DocID:      id,
		Collection: collection,
		CreatedBy:  ownerOf(fields),
		Data:       string(body),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&documentRow{}).
			Where("collection = ? AND doc_id = ?", collection, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(row).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return Ref{}, err
		}
		return Ref{}, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}

	return Ref{Collection: collection, ID: id}, nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, ref Ref) (Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", ref.Collection, ref.ID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get %s: %w", ref, err)
	}
	return row.document(), nil
}

// Update implements Store.
func (s *GormStore) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		if err := tx.Where("collection = ? AND doc_id = ?", ref.Collection, ref.ID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("update %s: %w", ref, err)
		}

		merged, all, err := mergeFields(ref.ID, []byte(row.Data), fields)
		if err != nil {
			return err
		}

		if err := tx.Model(&documentRow{}).
			Where("seq = ?", row.Seq).
			Updates(map[string]any{
				"data":       string(merged),
				"created_by": ownerOf(all),
				"updated_at": time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("update %s: %w", ref, err)
		}
		return nil
	})
}

// Delete implements Store.
func (s *GormStore) Delete(ctx context.Context, ref Ref) error {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", ref.Collection, ref.ID).
		Delete(&documentRow{})
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", ref, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Find implements Store.
func (s *GormStore) Find(ctx context.Context, q Query) ([]Document, error) {
	tx := s.db.WithContext(ctx).Where("collection = ?", q.Collection)
	if owner, ok := q.Owner(); ok {
		tx = tx.Where("created_by = ?", owner)
	}

	var rows []documentRow
	if err := tx.Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		if q.Matches([]byte(row.Data)) {
			docs = append(docs, row.document())
		}
	}
	return docs, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
