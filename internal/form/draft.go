package form

import (
	"strconv"
	"time"

	apperrors "hisaab/internal/errors"
	"hisaab/internal/models"
)

// Draft field names accepted by SetField.
const (
	FieldDate         = "date"
	FieldPayee        = "payee"
	FieldAmount       = "amount"
	FieldNote         = "note"
	FieldType         = "type"
	FieldLoanIsLoan   = "loan.isLoan"
	FieldLoanPaid     = "loan.paid"
	FieldLoanPaidDate = "loan.paidDate"
)

// DraftPatch is a partial update of the draft. Nil fields are left alone.
type DraftPatch struct {
	Date         *string                 `json:"date" binding:"omitempty,iso_date"`
	Payee        *string                 `json:"payee" binding:"omitempty,max=200"`
	Amount       *string                 `json:"amount" binding:"omitempty,max=64"`
	Note         *string                 `json:"note" binding:"omitempty,max=1000"`
	Type         *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
	IsLoan       *bool                   `json:"isLoan"`
	LoanPaid     *bool                   `json:"loanPaid"`
	LoanPaidDate *string                 `json:"loanPaidDate" binding:"omitempty,iso_date"`
}

// newDraft returns the default draft for userID at now.
func newDraft(now time.Time, userID string) models.Transaction {
	return models.Transaction{
		Base: models.Base{
			CreatedBy: userID,
			CreatedAt: now.UTC(),
		},
		Date: models.FormatDate(now.UTC()),
		Type: models.TransactionTypeExpense,
	}
}

// apply merges p into d. Only the transaction type is checked.
func (p DraftPatch) apply(d *models.Transaction) error {
	if p.Type != nil && !p.Type.Valid() {
		return apperrors.ErrInvalidTransactionType
	}
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.Payee != nil {
		d.Payee = *p.Payee
	}
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.Note != nil {
		d.Note = *p.Note
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.IsLoan != nil {
		d.Loan.IsLoan = *p.IsLoan
	}
	if p.LoanPaid != nil {
		d.Loan.Paid = *p.LoanPaid
	}
	if p.LoanPaidDate != nil {
		d.Loan.PaidDate = *p.LoanPaidDate
	}
	return nil
}

// patchForField builds a DraftPatch setting a single named field.
func patchForField(name, value string) (DraftPatch, error) {
	var p DraftPatch
	switch name {
	case FieldDate:
		p.Date = &value
	case FieldPayee:
		p.Payee = &value
	case FieldAmount:
		p.Amount = &value
	case FieldNote:
		p.Note = &value
	case FieldType:
		t := models.TransactionType(value)
		p.Type = &t
	case FieldLoanIsLoan, FieldLoanPaid:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return p, apperrors.WithMessage(apperrors.ErrInvalidInput, name+" must be true or false")
		}
		if name == FieldLoanIsLoan {
			p.IsLoan = &b
		} else {
			p.LoanPaid = &b
		}
	case FieldLoanPaidDate:
		p.LoanPaidDate = &value
	default:
		return p, apperrors.WithMessage(apperrors.ErrUnknownDraftField, "Unknown draft field: "+name)
	}
	return p, nil
}
