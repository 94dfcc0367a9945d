package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Resource is the per-user CRUD surface of one record type. Rows owned by
// another user are reported as ErrNotFound.
type Resource[T any] interface {
	List(ctx context.Context, userID snowflake.ID, filter Filter) ([]T, error)
	Get(ctx context.Context, userID, id snowflake.ID) (*T, error)
	Create(ctx context.Context, userID snowflake.ID, rec *T) (*T, error)
	Update(ctx context.Context, userID, id snowflake.ID, rec *T) (*T, error)
	Delete(ctx context.Context, userID, id snowflake.ID) error
}

// Eligible reports whether recurring rows of userID may still be materialized.
type Eligible func(ctx context.Context, userID snowflake.ID) (bool, error)

type Service interface {
	BankAccounts() Resource[BankAccount]
	CreditCards() Resource[CreditCard]
	DebitCards() Resource[DebitCard]
	Expenses() Resource[Expense]
	Income() Resource[Income]
	Savings() Resource[Saving]
	Stocks() Resource[Stock]
	Installments() Resource[Installment]
	Loans() Resource[Loan]
	Goals() Resource[Goal]
	Bills() Resource[Bill]
	Budgets() Resource[Budget]
	Recurring() Resource[RecurringTransaction]

	// ApplySavingsTransaction deposits into or withdraws from a savings
	// account and returns the new balance.
	ApplySavingsTransaction(ctx context.Context, userID, savingsID snowflake.ID, tx SavingsTransaction) (decimal.Decimal, error)
	// MaterializeDue inserts the expense or income of every recurring row due
	// today or earlier and advances it. It returns how many rows ran.
	MaterializeDue(ctx context.Context, eligible Eligible) (int, error)
}
