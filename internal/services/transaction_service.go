package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hisaab/internal/docstore"
	apperrors "hisaab/internal/errors"
	"hisaab/internal/logger"
	"hisaab/internal/models"
	"hisaab/internal/pagination"
)

// transactionService handles reading and maintaining stored transactions.
type transactionService struct {
	store docstore.Store
	now   func() time.Time
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(store docstore.Store) TransactionServicer {
	return &transactionService{store: store, now: time.Now}
}

// GetUserTransactions lists a user's transactions, newest date first.
func (s *transactionService) GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[TransactionView], error) {
	views, err := s.load(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	resp := pagination.Slice(views, page)
	return &resp, nil
}

// GetTransactionByID retrieves a single transaction of a user.
func (s *transactionService) GetTransactionByID(ctx context.Context, userID, transactionID string) (*TransactionView, error) {
	tx, err := getOwned[models.Transaction](ctx, s.store, models.CollectionTransactions, userID, transactionID, apperrors.ErrTransactionNotFound)
	if err != nil {
		return nil, err
	}

	names, err := s.accountNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := toView(*tx, names)
	return &view, nil
}

// MarkLoanPaid settles a loan transaction. An empty paidDate means today.
func (s *transactionService) MarkLoanPaid(ctx context.Context, userID, transactionID, paidDate string) (*TransactionView, error) {
	if paidDate == "" {
		paidDate = models.FormatDate(s.now())
	}
	if !models.IsDate(paidDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "paidDate must be a YYYY-MM-DD date")
	}

	view, err := s.GetTransactionByID(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}
	if !view.Loan.IsLoan {
		return nil, apperrors.ErrNotALoan
	}

	loan := models.Loan{IsLoan: true, Paid: true, PaidDate: paidDate}
	ref := docstore.Ref{Collection: models.CollectionTransactions, ID: transactionID}
	if err := s.store.Update(ctx, ref, map[string]any{"loan": loan}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, storeFailure(err)
	}

	view.Loan = loan
	return view, nil
}

// DeleteTransaction removes a transaction of a user.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	if _, err := getOwned[models.Transaction](ctx, s.store, models.CollectionTransactions, userID, transactionID, apperrors.ErrTransactionNotFound); err != nil {
		return err
	}

	err := s.store.Delete(ctx, docstore.Ref{Collection: models.CollectionTransactions, ID: transactionID})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return storeFailure(err)
	}
	return nil
}

// GetSummary totals the transactions matching filter by type.
func (s *transactionService) GetSummary(ctx context.Context, userID string, filter TransactionFilter) (*TransactionSummary, error) {
	views, err := s.load(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	summary := &TransactionSummary{
		Income:           decimal.Zero,
		Expense:          decimal.Zero,
		Transfer:         decimal.Zero,
		OutstandingLoans: decimal.Zero,
	}
	for _, v := range views {
		summary.Count++
		amount, err := decimal.NewFromString(v.Amount)
		if err != nil {
			summary.Unparsed++
			continue
		}
		switch v.Type {
		case models.TransactionTypeIncome:
			summary.Income = summary.Income.Add(amount)
		case models.TransactionTypeExpense:
			summary.Expense = summary.Expense.Add(amount)
		case models.TransactionTypeTransfer:
			summary.Transfer = summary.Transfer.Add(amount)
		}
		if v.Loan.IsLoan && !v.Loan.Paid {
			summary.OutstandingLoans = summary.OutstandingLoans.Add(amount)
		}
	}
	summary.Net = summary.Income.Sub(summary.Expense)

	return summary, nil
}

// load returns the filtered transactions of a user, newest date first.
func (s *transactionService) load(ctx context.Context, userID string, filter TransactionFilter) ([]TransactionView, error) {
	var filters []docstore.Filter
	if filter.Type != nil {
		filters = append(filters, docstore.Filter{Field: "type", Value: string(*filter.Type)})
	}
	if filter.AccountID != nil {
		filters = append(filters, docstore.Filter{Field: "accountId", Value: *filter.AccountID})
	}
	if filter.Payee != nil {
		filters = append(filters, docstore.Filter{Field: "payee", Value: *filter.Payee})
	}

	txs, err := findOwned[models.Transaction](ctx, s.store, models.CollectionTransactions, userID, filters...)
	if err != nil {
		return nil, err
	}
	names, err := s.accountNames(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		if filter.FromDate != nil && tx.Date < *filter.FromDate {
			continue
		}
		if filter.ToDate != nil && tx.Date > *filter.ToDate {
			continue
		}
		if filter.LoansOnly && !tx.Loan.IsLoan {
			continue
		}
		views = append(views, toView(tx, names))
	}

	// Later entries first within a day; dates sort lexically.
	reverse(views)
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Date > views[j].Date
	})
	return views, nil
}

func reverse(views []TransactionView) {
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
}

// accountNames maps the user's account ids to their current names.
func (s *transactionService) accountNames(ctx context.Context, userID string) (map[string]string, error) {
	accounts, err := findOwned[models.Account](ctx, s.store, models.CollectionAccounts, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}

func toView(tx models.Transaction, names map[string]string) TransactionView {
	name := tx.Account
	if tx.AccountID != "" {
		if current, ok := names[tx.AccountID]; ok {
			name = current
		} else {
			logger.Get().Debugw("transaction references a missing account", "transaction_id", tx.ID, "account_id", tx.AccountID)
		}
	}
	return TransactionView{Transaction: tx, AccountName: name}
}
