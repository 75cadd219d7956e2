package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"hisaab/internal/docstore"
	apperrors "hisaab/internal/errors"
	"hisaab/internal/models"
	"hisaab/internal/pagination"
	"hisaab/internal/uuid"
)

// payeeService maintains the payee suggestions offered by the entry form.
type payeeService struct {
	store docstore.Store
}

// NewPayeeService creates a new PayeeServicer.
func NewPayeeService(store docstore.Store) PayeeServicer {
	return &payeeService{store: store}
}

// CreatePayee remembers a payee. Adding a name the user already has returns
// the existing payee.
func (s *payeeService) CreatePayee(ctx context.Context, userID, name string) (*models.Payee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "payee name is required")
	}

	existing, err := findOwned[models.Payee](ctx, s.store, models.CollectionPayees, userID,
		docstore.Filter{Field: "name", Value: name})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	payee := &models.Payee{
		Base: models.Base{
			ID:        uuid.New(),
			CreatedBy: userID,
			CreatedAt: time.Now().UTC(),
		},
		Name: name,
	}
	if _, err := s.store.Create(ctx, models.CollectionPayees, payee.ID, payee); err != nil {
		return nil, storeFailure(err)
	}
	return payee, nil
}

// GetUserPayees lists a user's payees in creation order.
func (s *payeeService) GetUserPayees(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Payee], error) {
	payees, err := findOwned[models.Payee](ctx, s.store, models.CollectionPayees, userID)
	if err != nil {
		return nil, err
	}

	resp := pagination.Slice(payees, page)
	return &resp, nil
}

// DeletePayee forgets a payee.
func (s *payeeService) DeletePayee(ctx context.Context, userID, payeeID string) error {
	if _, err := getOwned[models.Payee](ctx, s.store, models.CollectionPayees, userID, payeeID, apperrors.ErrPayeeNotFound); err != nil {
		return err
	}

	err := s.store.Delete(ctx, docstore.Ref{Collection: models.CollectionPayees, ID: payeeID})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.ErrPayeeNotFound
	}
	if err != nil {
		return storeFailure(err)
	}
	return nil
}
