package services

import (
	"context"

	"github.com/shopspring/decimal"

	"hisaab/internal/models"
	"hisaab/internal/pagination"
)

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(ctx context.Context, userID, name string) (*models.Account, error)
	GetUserAccounts(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(ctx context.Context, userID, accountID string) (*models.Account, error)
	RenameAccount(ctx context.Context, userID, accountID, name string) (*models.Account, error)
	DeleteAccount(ctx context.Context, userID, accountID string) error
}

// PayeeServicer defines the contract for payee suggestions.
type PayeeServicer interface {
	CreatePayee(ctx context.Context, userID, name string) (*models.Payee, error)
	GetUserPayees(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Payee], error)
	DeletePayee(ctx context.Context, userID, payeeID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
// Dates are inclusive YYYY-MM-DD bounds.
type TransactionFilter struct {
	FromDate  *string
	ToDate    *string
	Type      *models.TransactionType
	AccountID *string
	Payee     *string
	LoansOnly bool
}

// TransactionView is a stored transaction with its account name resolved
// from the account it references.
type TransactionView struct {
	models.Transaction
	AccountName string `json:"accountName"`
}

// TransactionSummary totals a user's transactions by type. Amounts that are
// not numbers are counted in Unparsed and left out of the totals.
type TransactionSummary struct {
	Count    int             `json:"count"`
	Unparsed int             `json:"unparsed"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Transfer decimal.Decimal `json:"transfer"`
	Net      decimal.Decimal `json:"net"`
	// OutstandingLoans is the total of loans not yet marked paid.
	OutstandingLoans decimal.Decimal `json:"outstandingLoans"`
}

// TransactionServicer defines the contract for reading and maintaining
// stored transactions. New transactions are written by the entry form.
type TransactionServicer interface {
	GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[TransactionView], error)
	GetTransactionByID(ctx context.Context, userID, transactionID string) (*TransactionView, error)
	MarkLoanPaid(ctx context.Context, userID, transactionID, paidDate string) (*TransactionView, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	GetSummary(ctx context.Context, userID string, filter TransactionFilter) (*TransactionSummary, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
