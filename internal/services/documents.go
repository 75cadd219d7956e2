package services

import (
	"context"
	"errors"

	"hisaab/internal/docstore"
	apperrors "hisaab/internal/errors"
	"hisaab/internal/logger"
	"hisaab/internal/models"
)

// storeFailure maps a document store error onto an AppError.
func storeFailure(err error) error {
	return apperrors.Wrap(apperrors.ErrStoreFailure, err)
}

// findOwned loads every document of collection owned by userID that also
// matches the extra equality filters.
func findOwned[T any](ctx context.Context, store docstore.Store, collection, userID string, filters ...docstore.Filter) ([]T, error) {
	q := docstore.NewQuery(collection).Where(models.FieldCreatedBy, userID)
	for _, f := range filters {
		q = q.Where(f.Field, f.Value)
	}

	docs, err := store.Find(ctx, q)
	if err != nil {
		return nil, storeFailure(err)
	}

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.DataTo(&v); err != nil {
			logger.Get().Warnw("skipping undecodable document", "error", err, "ref", doc.Ref.String())
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// getOwned loads one document and checks it belongs to userID. Documents of
// other users are reported as notFound.
func getOwned[T any](ctx context.Context, store docstore.Store, collection, userID, id string, notFound *apperrors.AppError) (*T, error) {
	doc, err := store.Get(ctx, docstore.Ref{Collection: collection, ID: id})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, storeFailure(err)
	}

	var base models.Base
	if err := doc.DataTo(&base); err != nil || base.CreatedBy != userID {
		return nil, notFound
	}

	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &v, nil
}
