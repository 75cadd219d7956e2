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

// accountService handles account-related business logic.
type accountService struct {
	store docstore.Store
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(store docstore.Store) AccountServicer {
	return &accountService{store: store}
}

// CreateAccount creates a new account for a user. Account names are unique
// per user since the entry form selects accounts by name.
func (s *accountService) CreateAccount(ctx context.Context, userID, name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	if err := s.ensureUniqueName(ctx, userID, name, ""); err != nil {
		return nil, err
	}

	account := &models.Account{
		Base: models.Base{
			ID:        uuid.New(),
			CreatedBy: userID,
			CreatedAt: time.Now().UTC(),
		},
		Name: name,
	}
	if _, err := s.store.Create(ctx, models.CollectionAccounts, account.ID, account); err != nil {
		return nil, storeFailure(err)
	}

	return account, nil
}

// GetUserAccounts retrieves all accounts for a user in creation order.
func (s *accountService) GetUserAccounts(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	accounts, err := findOwned[models.Account](ctx, s.store, models.CollectionAccounts, userID)
	if err != nil {
		return nil, err
	}

	resp := pagination.Slice(accounts, page)
	return &resp, nil
}

// GetAccountByID retrieves an account by ID for a specific user.
func (s *accountService) GetAccountByID(ctx context.Context, userID, accountID string) (*models.Account, error) {
	return getOwned[models.Account](ctx, s.store, models.CollectionAccounts, userID, accountID, apperrors.ErrAccountNotFound)
}

// RenameAccount changes an account's display name. Transactions reference
// the account by id, so they pick up the new name when read.
func (s *accountService) RenameAccount(ctx context.Context, userID, accountID, name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	account, err := s.GetAccountByID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if account.Name == name {
		return account, nil
	}
	if err := s.ensureUniqueName(ctx, userID, name, accountID); err != nil {
		return nil, err
	}

	ref := docstore.Ref{Collection: models.CollectionAccounts, ID: accountID}
	if err := s.store.Update(ctx, ref, map[string]any{"name": name}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, storeFailure(err)
	}

	account.Name = name
	return account, nil
}

// DeleteAccount removes an account. Existing transactions keep the account
// name they were entered with.
func (s *accountService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	if _, err := s.GetAccountByID(ctx, userID, accountID); err != nil {
		return err
	}

	err := s.store.Delete(ctx, docstore.Ref{Collection: models.CollectionAccounts, ID: accountID})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.ErrAccountNotFound
	}
	if err != nil {
		return storeFailure(err)
	}
	return nil
}

func (s *accountService) ensureUniqueName(ctx context.Context, userID, name, exceptID string) error {
	existing, err := findOwned[models.Account](ctx, s.store, models.CollectionAccounts, userID,
		docstore.Filter{Field: "name", Value: name})
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a.ID != exceptID {
			return apperrors.ErrDuplicateAccount
		}
	}
	return nil
}
