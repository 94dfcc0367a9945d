package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fintrack/pkg/db"
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrBankAccountNotFound = errors.New("bank_account_not_found")
	ErrCreditCardNotFound  = errors.New("credit_card_not_found")
	ErrDebitCardNotFound   = errors.New("debit_card_not_found")
)

// Store is the CRUD surface shared by every resource table. Every method is
// scoped by owner; a row of another user behaves as absent.
type Store[T any] interface {
	List(ctx context.Context, gw db.Gateway, userID snowflake.ID, filter Filter) ([]T, error)
	Get(ctx context.Context, gw db.Gateway, userID, id snowflake.ID) (*T, error)
	Insert(ctx context.Context, gw db.Gateway, rec *T) error
	Update(ctx context.Context, gw db.Gateway, rec *T) (bool, error)
	Delete(ctx context.Context, gw db.Gateway, userID, id snowflake.ID) (bool, error)
}

type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

type Repository interface {
	BankAccounts() Store[BankAccount]
	CreditCards() Store[CreditCard]
	DebitCards() Store[DebitCard]
	Expenses() Store[Expense]
	Income() Store[Income]
	Savings() Store[Saving]
	Stocks() Store[Stock]
	Installments() Store[Installment]
	Loans() Store[Loan]
	Goals() Store[Goal]
	Bills() Store[Bill]
	Budgets() Store[Budget]
	Recurring() Store[RecurringTransaction]

	AdjustCreditCardBalance(ctx context.Context, gw db.Gateway, userID, cardID snowflake.ID, delta decimal.Decimal) error
	AdjustBankAccountBalance(ctx context.Context, gw db.Gateway, userID, accountID snowflake.ID, delta decimal.Decimal) error
	SetSavingsBalance(ctx context.Context, gw db.Gateway, userID, id snowflake.ID, balance decimal.Decimal, now time.Time) error
	CountDebitCards(ctx context.Context, gw db.Gateway, userID, bankAccountID snowflake.ID) (int64, error)
	ExpenseTotals(ctx context.Context, gw db.Gateway, userID snowflake.ID, from, to string) ([]CategoryTotal, error)

	// DueRecurring lists active recurring rows of every user due on or before today.
	DueRecurring(ctx context.Context, gw db.Gateway, today string) ([]RecurringTransaction, error)
	// AdvanceRecurring moves next_date forward only if it still equals from.
	AdvanceRecurring(ctx context.Context, gw db.Gateway, id snowflake.ID, from, to string, now time.Time) (bool, error)
}
