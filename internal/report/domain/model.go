package domain

import (
	"github.com/shopspring/decimal"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
)

// Dashboard totals are converted into DefaultCurrency. Month figures cover
// the calendar month of the business date.
type Dashboard struct {
	DefaultCurrency string `json:"default_currency"`

	TotalBankAccounts  decimal.Decimal `json:"total_bank_accounts"`
	BankAccountsCount  int             `json:"bank_accounts_count"`
	CreditCardsCount   int             `json:"credit_cards_count"`
	TotalCreditLimit   decimal.Decimal `json:"total_credit_limit"`
	TotalCreditBalance decimal.Decimal `json:"total_credit_balance"`
	AvailableCredit    decimal.Decimal `json:"available_credit"`
	SavingsCount       int             `json:"savings_count"`
	TotalSavings       decimal.Decimal `json:"total_savings"`
	StocksCount        int             `json:"stocks_count"`
	TotalStocks        decimal.Decimal `json:"total_stocks"`
	ExpensesCount      int             `json:"expenses_count"`
	MonthlyExpenses    decimal.Decimal `json:"monthly_expenses"`
	IncomeCount        int             `json:"income_count"`
	MonthlyIncome      decimal.Decimal `json:"monthly_income"`
	ActiveInstallments decimal.Decimal `json:"active_installments"`
	NetWorth           decimal.Decimal `json:"net_worth"`
	MonthlyBalance     decimal.Decimal `json:"monthly_balance"`
}

type Export struct {
	BankAccounts []financedomain.BankAccount `json:"bank_accounts"`
	CreditCards  []financedomain.CreditCard  `json:"credit_cards"`
	Expenses     []financedomain.Expense     `json:"expenses"`
	Savings      []financedomain.Saving      `json:"savings"`
	Stocks       []financedomain.Stock       `json:"stocks"`
	Income       []financedomain.Income      `json:"income"`
}

type CSVResource string

const (
	CSVExpenses     CSVResource = "expenses"
	CSVIncome       CSVResource = "income"
	CSVBankAccounts CSVResource = "bank_accounts"
	CSVCreditCards  CSVResource = "credit_cards"
)

func (r CSVResource) Valid() bool {
	switch r {
	case CSVExpenses, CSVIncome, CSVBankAccounts, CSVCreditCards:
		return true
	}
	return false
}
