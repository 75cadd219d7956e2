package models

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeTransfer TransactionType = "transfer"
)

// TransactionTypes lists every supported type in display order.
var TransactionTypes = []TransactionType{
	TransactionTypeExpense,
	TransactionTypeIncome,
	TransactionTypeTransfer,
}

// Valid reports whether t is a supported transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeExpense, TransactionTypeIncome, TransactionTypeTransfer:
		return true
	}
	return false
}

// Loan tracks money lent or borrowed through a transaction.
type Loan struct {
	IsLoan   bool   `json:"isLoan"`
	Paid     bool   `json:"paid"`
	PaidDate string `json:"paidDate"`
}

// Transaction represents a financial transaction document.
//
// Account holds the account's display name at the time of entry and
// AccountID its stable identifier; readers resolve the current name through
// AccountID so renames do not orphan history.
type Transaction struct {
	Base
	Date      string          `json:"date"`
	Account   string          `json:"acc"`
	AccountID string          `json:"accountId,omitempty"`
	Payee     string          `json:"payee"`
	Type      TransactionType `json:"type"`
	Amount    string          `json:"amount"`
	Note      string          `json:"note"`
	Loan      Loan            `json:"loan"`
}
