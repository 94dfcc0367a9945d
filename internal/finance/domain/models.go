package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Base carries the columns every user-owned record shares.
type Base struct {
	ID        snowflake.ID `json:"id"`
	UserID    snowflake.ID `json:"user_id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (b *Base) Meta() *Base {
	return b
}

// Record is implemented by pointers to every resource model.
type Record interface {
	Meta() *Base
	// Normalize fills defaults; today is the caller's business date.
	Normalize(today string)
	Validate() error
}

type BankAccount struct {
	Base
	AccountName    string              `json:"account_name"`
	BankName       string              `json:"bank_name"`
	AccountNumber  *string             `json:"account_number"`
	AccountType    *string             `json:"account_type"`
	Country        string              `json:"country"`
	Currency       string              `json:"currency"`
	CurrentBalance decimal.Decimal     `json:"current_balance"`
	InterestRate   decimal.NullDecimal `json:"interest_rate"`
}

type CreditCard struct {
	Base
	Name           string              `json:"name"`
	BankAccountID  *snowflake.ID       `json:"bank_account_id"`
	BankName       *string             `json:"bank_name"`
	Country        *string             `json:"country"`
	Currency       string              `json:"currency"`
	CreditLimit    decimal.Decimal     `json:"credit_limit"`
	CurrentBalance decimal.Decimal     `json:"current_balance"`
	InterestRate   decimal.NullDecimal `json:"interest_rate"`
	DueDate        *int                `json:"due_date"`
	CardType       string              `json:"card_type"`
}

type DebitCard struct {
	Base
	BankAccountID snowflake.ID        `json:"bank_account_id"`
	CardName      string              `json:"card_name"`
	CardNumber    *string             `json:"card_number"`
	ExpiryDate    *string             `json:"expiry_date"`
	Currency      string              `json:"currency"`
	DailyLimit    decimal.NullDecimal `json:"daily_limit"`
	Status        string              `json:"status"`

	AccountName     *string `json:"account_name,omitempty" gorm:"->"`
	BankName        *string `json:"bank_name,omitempty" gorm:"->"`
	AccountCurrency *string `json:"account_currency,omitempty" gorm:"->"`
}

type Expense struct {
	Base
	Category      string          `json:"category"`
	Description   *string         `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod *string         `json:"payment_method"`
	CreditCardID  *snowflake.ID   `json:"credit_card_id"`
	DebitCardID   *snowflake.ID   `json:"debit_card_id"`
	Date          string          `json:"date"`

	CreditCardName       *string `json:"credit_card_name,omitempty" gorm:"->"`
	DebitCardName        *string `json:"debit_card_name,omitempty" gorm:"->"`
	DebitCardAccountName *string `json:"debit_card_account_name,omitempty" gorm:"->"`
}

type Income struct {
	Base
	IncomeType  string          `json:"income_type"`
	Description *string         `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        string          `json:"date"`
}

type Saving struct {
	Base
	AccountName    string              `json:"account_name"`
	BankAccountID  *snowflake.ID       `json:"bank_account_id"`
	AccountType    *string             `json:"account_type"`
	CurrentBalance decimal.Decimal     `json:"current_balance"`
	InterestRate   decimal.NullDecimal `json:"interest_rate"`
	GoalAmount     decimal.NullDecimal `json:"goal_amount"`
	TargetDate     *string             `json:"target_date"`
	Currency       string              `json:"currency"`
}

type SavingsTransactionType string

const (
	SavingsDeposit    SavingsTransactionType = "deposit"
	SavingsWithdrawal SavingsTransactionType = "withdrawal"
)

type SavingsTransaction struct {
	Amount          decimal.Decimal        `json:"amount"`
	TransactionType SavingsTransactionType `json:"transaction_type"`
	Description     *string                `json:"description"`
	Date            *string                `json:"date"`
}

type Stock struct {
	Base
	Symbol        string              `json:"symbol"`
	CompanyName   *string             `json:"company_name"`
	Shares        decimal.Decimal     `json:"shares"`
	PurchasePrice decimal.Decimal     `json:"purchase_price"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	Currency      string              `json:"currency"`
	PurchaseDate  *string             `json:"purchase_date"`
}

type Installment struct {
	Base
	CreditCardID    *snowflake.ID       `json:"credit_card_id"`
	Description     string              `json:"description"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	RemainingAmount decimal.Decimal     `json:"remaining_amount"`
	MonthlyPayment  decimal.Decimal     `json:"monthly_payment"`
	InterestRate    decimal.NullDecimal `json:"interest_rate"`
	StartDate       *string             `json:"start_date"`
	EndDate         *string             `json:"end_date"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`

	CardName *string `json:"card_name,omitempty" gorm:"->"`
}

type Loan struct {
	Base
	LoanName         string              `json:"loan_name"`
	LoanType         string              `json:"loan_type"`
	LenderName       *string             `json:"lender_name"`
	CreditCardID     *snowflake.ID       `json:"credit_card_id"`
	BankAccountID    *snowflake.ID       `json:"bank_account_id"`
	PrincipalAmount  decimal.Decimal     `json:"principal_amount"`
	RemainingBalance decimal.Decimal     `json:"remaining_balance"`
	MonthlyPayment   decimal.Decimal     `json:"monthly_payment"`
	InterestRate     decimal.NullDecimal `json:"interest_rate"`
	Currency         string              `json:"currency"`
	StartDate        *string             `json:"start_date"`
	EndDate          *string             `json:"end_date"`
	PaymentDay       *int                `json:"payment_day"`
	Status           string              `json:"status"`
	Notes            *string             `json:"notes"`

	CardName        *string `json:"card_name,omitempty" gorm:"->"`
	BankAccountName *string `json:"bank_account_name,omitempty" gorm:"->"`
}

type Goal struct {
	Base
	Name          string          `json:"name"`
	GoalType      *string         `json:"goal_type"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *string         `json:"target_date"`
	Priority      *string         `json:"priority"`
	Status        string          `json:"status"`
	Description   *string         `json:"description"`
}

type Bill struct {
	Base
	BillName  string          `json:"bill_name"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	DueDate   string          `json:"due_date"`
	Frequency string          `json:"frequency"`
	Category  *string         `json:"category"`
	IsPaid    int             `json:"is_paid"`
}

type Budget struct {
	Base
	Category     string          `json:"category"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
	Month        int             `json:"month"`
	Year         int             `json:"year"`

	Spent decimal.Decimal `json:"spent" gorm:"-"`
}

type TransactionType string

const (
	TransactionExpense TransactionType = "expense"
	TransactionIncome  TransactionType = "income"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

type RecurringTransaction struct {
	Base
	TransactionType TransactionType `json:"transaction_type"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Frequency       Frequency       `json:"frequency"`
	NextDate        string          `json:"next_date"`
	Category        *string         `json:"category"`
	IsActive        int             `json:"is_active"`
	LastRunDate     *string         `json:"last_run_date"`
}

// Filter narrows list queries. Zero fields are ignored; resources ignore
// fields that do not apply to them.
type Filter struct {
	From          string
	To            string
	Category      string
	BankAccountID snowflake.ID
	Month         int
	Year          int
}
