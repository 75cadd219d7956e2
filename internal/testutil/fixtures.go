package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"hisaab/internal/docstore"
	"hisaab/internal/models"
	"hisaab/internal/uuid"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewUserID returns a fresh identity-provider user id.
func NewUserID() string {
	return fmt.Sprintf("user-%d", nextID())
}

// CreateTestAccount stores an account named name owned by userID.
func CreateTestAccount(t *testing.T, store docstore.Store, userID, name string) *models.Account {
	t.Helper()

	account := &models.Account{
		Base: models.Base{ID: uuid.New(), CreatedBy: userID, CreatedAt: time.Now().UTC()},
		Name: name,
	}
	if _, err := store.Create(context.Background(), models.CollectionAccounts, account.ID, account); err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestPayee stores a payee owned by userID.
func CreateTestPayee(t *testing.T, store docstore.Store, userID, name string) *models.Payee {
	t.Helper()

	payee := &models.Payee{
		Base: models.Base{ID: uuid.New(), CreatedBy: userID, CreatedAt: time.Now().UTC()},
		Name: name,
	}
	if _, err := store.Create(context.Background(), models.CollectionPayees, payee.ID, payee); err != nil {
		t.Fatalf("failed to create test payee: %v", err)
	}
	return payee
}

// CreateTestTransaction stores a transaction against account.
func CreateTestTransaction(t *testing.T, store docstore.Store, userID string, account *models.Account, txType models.TransactionType, amount string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Base:      models.Base{ID: uuid.New(), CreatedBy: userID, CreatedAt: time.Now().UTC()},
		Date:      models.FormatDate(time.Now()),
		Account:   account.Name,
		AccountID: account.ID,
		Payee:     fmt.Sprintf("Payee %d", nextID()),
		Type:      txType,
		Amount:    amount,
	}
	if _, err := store.Create(context.Background(), models.CollectionTransactions, tx.ID, tx); err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestLoan stores an unpaid loan transaction against account.
func CreateTestLoan(t *testing.T, store docstore.Store, userID string, account *models.Account, amount string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		Base:      models.Base{ID: uuid.New(), CreatedBy: userID, CreatedAt: time.Now().UTC()},
		Date:      models.FormatDate(time.Now()),
		Account:   account.Name,
		AccountID: account.ID,
		Payee:     fmt.Sprintf("Borrower %d", nextID()),
		Type:      models.TransactionTypeExpense,
		Amount:    amount,
		Loan:      models.Loan{IsLoan: true},
	}
	if _, err := store.Create(context.Background(), models.CollectionTransactions, tx.ID, tx); err != nil {
		t.Fatalf("failed to create test loan: %v", err)
	}
	return tx
}
