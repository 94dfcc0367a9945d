package domain

import (
	"strings"
	"time"

	"github.com/smallbiznis/fintrack/internal/validation"
)

// DateLayout is the storage format of business dates.
const DateLayout = "2006-01-02"

const (
	DefaultCurrency         = "USD"
	MaxDebitCardsPerAccount = 5
	StatusActive            = "active"
)

func currency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func checkDate(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return validation.Invalid(field, field+" must be formatted as YYYY-MM-DD")
	}
	return nil
}

func checkOptionalDate(field string, value *string) error {
	if value == nil {
		return nil
	}
	return checkDate(field, *value)
}

func (r *BankAccount) Normalize(today string) {
	r.Currency = currency(r.Currency)
}

func (r *BankAccount) Validate() error {
	return validation.Missing(
		validation.Require("account_name", r.AccountName),
		validation.Require("bank_name", r.BankName),
		validation.Require("country", r.Country),
	)
}

func (r *CreditCard) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.CardType = orDefault(r.CardType, "Credit")
}

func (r *CreditCard) Validate() error {
	if err := validation.Missing(validation.Require("name", r.Name)); err != nil {
		return err
	}
	if r.DueDate != nil && (*r.DueDate < 1 || *r.DueDate > 31) {
		return validation.Invalid("due_date", "due_date must be a day of month between 1 and 31")
	}
	return nil
}

func (r *DebitCard) Normalize(today string) {
	r.Status = orDefault(r.Status, StatusActive)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
}

func (r *DebitCard) Validate() error {
	return validation.Missing(
		validation.Require("card_name", r.CardName),
		validation.Require("bank_account_id", r.BankAccountID),
	)
}

func (r *Expense) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.Date = orDefault(r.Date, today)
	r.CreditCardID = nonZero(r.CreditCardID)
	r.DebitCardID = nonZero(r.DebitCardID)
}

func (r *Expense) Validate() error {
	if err := validation.Missing(
		validation.Require("category", r.Category),
		validation.Require("amount", r.Amount),
	); err != nil {
		return err
	}
	if r.Amount.IsNegative() {
		return validation.Invalid("amount", "amount must be positive")
	}
	if r.CreditCardID != nil && r.DebitCardID != nil {
		return validation.Invalid("payment_method", "an expense can be linked to a credit card or a debit card, not both")
	}
	return checkDate("date", r.Date)
}

func (r *Income) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.Date = orDefault(r.Date, today)
}

func (r *Income) Validate() error {
	if err := validation.Missing(
		validation.Require("income_type", r.IncomeType),
		validation.Require("amount", r.Amount),
	); err != nil {
		return err
	}
	return checkDate("date", r.Date)
}

func (r *Saving) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.BankAccountID = nonZero(r.BankAccountID)
}

func (r *Saving) Validate() error {
	if err := validation.Missing(validation.Require("account_name", r.AccountName)); err != nil {
		return err
	}
	return checkOptionalDate("target_date", r.TargetDate)
}

func (t *SavingsTransaction) Validate() error {
	if err := validation.Missing(
		validation.Require("amount", t.Amount),
		validation.Require("transaction_type", string(t.TransactionType)),
	); err != nil {
		return err
	}
	switch t.TransactionType {
	case SavingsDeposit, SavingsWithdrawal:
	default:
		return validation.Invalid("transaction_type", "transaction_type must be deposit or withdrawal")
	}
	if t.Amount.IsNegative() {
		return validation.Invalid("amount", "amount must be positive")
	}
	return nil
}

func (r *Stock) Normalize(today string) {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Currency = currency(r.Currency)
	if !r.CurrentPrice.Valid {
		r.CurrentPrice = decimalValue(r.PurchasePrice)
	}
}

func (r *Stock) Validate() error {
	if err := validation.Missing(
		validation.Require("symbol", r.Symbol),
		validation.Require("shares", r.Shares),
		validation.Require("purchase_price", r.PurchasePrice),
	); err != nil {
		return err
	}
	return checkOptionalDate("purchase_date", r.PurchaseDate)
}

func (r *Installment) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.Status = orDefault(r.Status, StatusActive)
	r.CreditCardID = nonZero(r.CreditCardID)
	if r.RemainingAmount.IsZero() {
		r.RemainingAmount = r.TotalAmount
	}
}

func (r *Installment) Validate() error {
	if err := validation.Missing(
		validation.Require("description", r.Description),
		validation.Require("total_amount", r.TotalAmount),
		validation.Require("monthly_payment", r.MonthlyPayment),
	); err != nil {
		return err
	}
	if err := checkOptionalDate("start_date", r.StartDate); err != nil {
		return err
	}
	return checkOptionalDate("end_date", r.EndDate)
}

func (r *Loan) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.Status = orDefault(r.Status, StatusActive)
	r.CreditCardID = nonZero(r.CreditCardID)
	r.BankAccountID = nonZero(r.BankAccountID)
}

func (r *Loan) Validate() error {
	if err := validation.Missing(
		validation.Require("loan_name", r.LoanName),
		validation.Require("loan_type", r.LoanType),
		validation.Require("principal_amount", r.PrincipalAmount),
		validation.Require("remaining_balance", r.RemainingBalance),
		validation.Require("monthly_payment", r.MonthlyPayment),
	); err != nil {
		return err
	}
	if r.PaymentDay != nil && (*r.PaymentDay < 1 || *r.PaymentDay > 31) {
		return validation.Invalid("payment_day", "payment_day must be between 1 and 31")
	}
	if err := checkOptionalDate("start_date", r.StartDate); err != nil {
		return err
	}
	return checkOptionalDate("end_date", r.EndDate)
}

func (r *Goal) Normalize(today string) {
	r.Status = orDefault(r.Status, StatusActive)
}

func (r *Goal) Validate() error {
	if err := validation.Missing(
		validation.Require("name", r.Name),
		validation.Require("target_amount", r.TargetAmount),
	); err != nil {
		return err
	}
	return checkOptionalDate("target_date", r.TargetDate)
}

func (r *Bill) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.Frequency = orDefault(r.Frequency, string(FrequencyMonthly))
	if r.IsPaid != 0 {
		r.IsPaid = 1
	}
}

func (r *Bill) Validate() error {
	if err := validation.Missing(
		validation.Require("bill_name", r.BillName),
		validation.Require("amount", r.Amount),
		validation.Require("due_date", r.DueDate),
	); err != nil {
		return err
	}
	return checkDate("due_date", r.DueDate)
}

func (r *Budget) Normalize(today string) {
	r.Category = strings.TrimSpace(r.Category)
}

func (r *Budget) Validate() error {
	if err := validation.Missing(
		validation.Require("category", r.Category),
		validation.Require("monthly_limit", r.MonthlyLimit),
		validation.Require("month", r.Month),
		validation.Require("year", r.Year),
	); err != nil {
		return err
	}
	if r.Month < 1 || r.Month > 12 {
		return validation.Invalid("month", "month must be between 1 and 12")
	}
	return nil
}

func (r *RecurringTransaction) Normalize(today string) {
	r.Currency = currency(r.Currency)
	r.TransactionType = TransactionType(strings.ToLower(strings.TrimSpace(string(r.TransactionType))))
	r.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(r.Frequency))))
	r.NextDate = strings.TrimSpace(r.NextDate)
	if r.ID == 0 {
		r.IsActive = 1
	} else if r.IsActive != 0 {
		r.IsActive = 1
	}
}

func (r *RecurringTransaction) Validate() error {
	if err := validation.Missing(
		validation.Require("transaction_type", string(r.TransactionType)),
		validation.Require("description", r.Description),
		validation.Require("amount", r.Amount),
		validation.Require("frequency", string(r.Frequency)),
		validation.Require("next_date", r.NextDate),
	); err != nil {
		return err
	}
	switch r.TransactionType {
	case TransactionExpense, TransactionIncome:
	default:
		return validation.Invalid("transaction_type", "transaction_type must be expense or income")
	}
	if _, ok := frequencies[r.Frequency]; !ok {
		return validation.Invalid("frequency", "frequency must be daily, weekly, monthly or yearly")
	}
	return checkDate("next_date", r.NextDate)
}
