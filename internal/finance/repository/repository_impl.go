package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type repo struct {
	bankAccounts *table[domain.BankAccount, *domain.BankAccount]
	creditCards  *table[domain.CreditCard, *domain.CreditCard]
	debitCards   *table[domain.DebitCard, *domain.DebitCard]
	expenses     *table[domain.Expense, *domain.Expense]
	income       *table[domain.Income, *domain.Income]
	savings      *table[domain.Saving, *domain.Saving]
	stocks       *table[domain.Stock, *domain.Stock]
	installments *table[domain.Installment, *domain.Installment]
	loans        *table[domain.Loan, *domain.Loan]
	goals        *table[domain.Goal, *domain.Goal]
	bills        *table[domain.Bill, *domain.Bill]
	budgets      *table[domain.Budget, *domain.Budget]
	recurring    *table[domain.RecurringTransaction, *domain.RecurringTransaction]
}

func Provide() domain.Repository {
	return &repo{
		bankAccounts: &table[domain.BankAccount, *domain.BankAccount]{
			name:    "bank_accounts",
			columns: []string{"account_name", "bank_name", "account_number", "account_type", "country", "currency", "current_balance", "interest_rate"},
			values: func(r *domain.BankAccount) []any {
				return []any{r.AccountName, r.BankName, r.AccountNumber, r.AccountType, r.Country, r.Currency, r.CurrentBalance, r.InterestRate}
			},
		},
		creditCards: &table[domain.CreditCard, *domain.CreditCard]{
			name:    "credit_cards",
			columns: []string{"name", "bank_account_id", "bank_name", "country", "currency", "credit_limit", "current_balance", "interest_rate", "due_date", "card_type"},
			values: func(r *domain.CreditCard) []any {
				return []any{r.Name, r.BankAccountID, r.BankName, r.Country, r.Currency, r.CreditLimit, r.CurrentBalance, r.InterestRate, r.DueDate, r.CardType}
			},
		},
		debitCards: &table[domain.DebitCard, *domain.DebitCard]{
			name:    "debit_cards",
			columns: []string{"bank_account_id", "card_name", "card_number", "expiry_date", "currency", "daily_limit", "status"},
			values: func(r *domain.DebitCard) []any {
				return []any{r.BankAccountID, r.CardName, r.CardNumber, r.ExpiryDate, r.Currency, r.DailyLimit, r.Status}
			},
			selectFrom: `SELECT t.*, b.account_name AS account_name, b.bank_name AS bank_name, b.currency AS account_currency
				FROM debit_cards t
				LEFT JOIN bank_accounts b ON t.bank_account_id = b.id AND b.user_id = t.user_id`,
			filter: func(f domain.Filter) (string, []any) {
				if f.BankAccountID == 0 {
					return "", nil
				}
				return ` AND t.bank_account_id = ?`, []any{f.BankAccountID}
			},
		},
		expenses: &table[domain.Expense, *domain.Expense]{
			name:    "expenses",
			columns: []string{"category", "description", "amount", "currency", "payment_method", "credit_card_id", "debit_card_id", "date"},
			values: func(r *domain.Expense) []any {
				return []any{r.Category, r.Description, r.Amount, r.Currency, r.PaymentMethod, r.CreditCardID, r.DebitCardID, r.Date}
			},
			selectFrom: `SELECT t.*, c.name AS credit_card_name, d.card_name AS debit_card_name, b.account_name AS debit_card_account_name
				FROM expenses t
				LEFT JOIN credit_cards c ON t.credit_card_id = c.id AND c.user_id = t.user_id
				LEFT JOIN debit_cards d ON t.debit_card_id = d.id AND d.user_id = t.user_id
				LEFT JOIN bank_accounts b ON d.bank_account_id = b.id AND b.user_id = t.user_id`,
			filter:  categoryAndDate,
			orderBy: `t.date DESC, t.created_at DESC, t.id DESC`,
		},
		income: &table[domain.Income, *domain.Income]{
			name:    "income",
			columns: []string{"income_type", "description", "amount", "currency", "date"},
			values: func(r *domain.Income) []any {
				return []any{r.IncomeType, r.Description, r.Amount, r.Currency, r.Date}
			},
			filter: func(f domain.Filter) (string, []any) {
				clause, args := dateRange("t.date", f)
				if f.Category != "" {
					clause += ` AND t.income_type = ?`
					args = append(args, f.Category)
				}
				return clause, args
			},
			orderBy: `t.date DESC, t.created_at DESC, t.id DESC`,
		},
		savings: &table[domain.Saving, *domain.Saving]{
			name:    "savings",
			columns: []string{"account_name", "bank_account_id", "account_type", "current_balance", "interest_rate", "goal_amount", "target_date", "currency"},
			values: func(r *domain.Saving) []any {
				return []any{r.AccountName, r.BankAccountID, r.AccountType, r.CurrentBalance, r.InterestRate, r.GoalAmount, r.TargetDate, r.Currency}
			},
		},
		stocks: &table[domain.Stock, *domain.Stock]{
			name:    "stocks",
			columns: []string{"symbol", "company_name", "shares", "purchase_price", "current_price", "currency", "purchase_date"},
			values: func(r *domain.Stock) []any {
				return []any{r.Symbol, r.CompanyName, r.Shares, r.PurchasePrice, r.CurrentPrice, r.Currency, r.PurchaseDate}
			},
		},
		installments: &table[domain.Installment, *domain.Installment]{
			name:    "installments",
			columns: []string{"credit_card_id", "description", "total_amount", "remaining_amount", "monthly_payment", "interest_rate", "start_date", "end_date", "status", "currency"},
			values: func(r *domain.Installment) []any {
				return []any{r.CreditCardID, r.Description, r.TotalAmount, r.RemainingAmount, r.MonthlyPayment, r.InterestRate, r.StartDate, r.EndDate, r.Status, r.Currency}
			},
			selectFrom: `SELECT t.*, c.name AS card_name
				FROM installments t
				LEFT JOIN credit_cards c ON t.credit_card_id = c.id AND c.user_id = t.user_id`,
		},
		loans: &table[domain.Loan, *domain.Loan]{
			name: "loans",
			columns: []string{"loan_name", "loan_type", "lender_name", "credit_card_id", "bank_account_id", "principal_amount",
				"remaining_balance", "monthly_payment", "interest_rate", "currency", "start_date", "end_date", "payment_day", "status", "notes"},
			values: func(r *domain.Loan) []any {
				return []any{r.LoanName, r.LoanType, r.LenderName, r.CreditCardID, r.BankAccountID, r.PrincipalAmount,
					r.RemainingBalance, r.MonthlyPayment, r.InterestRate, r.Currency, r.StartDate, r.EndDate, r.PaymentDay, r.Status, r.Notes}
			},
			selectFrom: `SELECT t.*, c.name AS card_name, b.account_name AS bank_account_name
				FROM loans t
				LEFT JOIN credit_cards c ON t.credit_card_id = c.id AND c.user_id = t.user_id
				LEFT JOIN bank_accounts b ON t.bank_account_id = b.id AND b.user_id = t.user_id`,
		},
		goals: &table[domain.Goal, *domain.Goal]{
			name:    "financial_goals",
			columns: []string{"name", "goal_type", "target_amount", "current_amount", "target_date", "priority", "status", "description"},
			values: func(r *domain.Goal) []any {
				return []any{r.Name, r.GoalType, r.TargetAmount, r.CurrentAmount, r.TargetDate, r.Priority, r.Status, r.Description}
			},
		},
		bills: &table[domain.Bill, *domain.Bill]{
			name:    "bill_reminders",
			columns: []string{"bill_name", "amount", "currency", "due_date", "frequency", "category", "is_paid"},
			values: func(r *domain.Bill) []any {
				return []any{r.BillName, r.Amount, r.Currency, r.DueDate, r.Frequency, r.Category, r.IsPaid}
			},
			orderBy: `t.due_date ASC, t.id ASC`,
		},
		budgets: &table[domain.Budget, *domain.Budget]{
			name:    "budgets",
			columns: []string{"category", "monthly_limit", "month", "year"},
			values: func(r *domain.Budget) []any {
				return []any{r.Category, r.MonthlyLimit, r.Month, r.Year}
			},
			filter: func(f domain.Filter) (string, []any) {
				if f.Month == 0 || f.Year == 0 {
					return "", nil
				}
				return ` AND t.month = ? AND t.year = ?`, []any{f.Month, f.Year}
			},
		},
		recurring: &table[domain.RecurringTransaction, *domain.RecurringTransaction]{
			name:    "recurring_transactions",
			columns: []string{"transaction_type", "description", "amount", "currency", "frequency", "next_date", "category", "is_active", "last_run_date"},
			values: func(r *domain.RecurringTransaction) []any {
				return []any{r.TransactionType, r.Description, r.Amount, r.Currency, r.Frequency, r.NextDate, r.Category, r.IsActive, r.LastRunDate}
			},
			orderBy: `t.next_date ASC, t.id ASC`,
		},
	}
}

func categoryAndDate(f domain.Filter) (string, []any) {
	clause, args := dateRange("t.date", f)
	if f.Category != "" {
		clause += ` AND t.category = ?`
		args = append(args, f.Category)
	}
	return clause, args
}

func (r *repo) BankAccounts() domain.Store[domain.BankAccount] { return r.bankAccounts }
func (r *repo) CreditCards() domain.Store[domain.CreditCard]   { return r.creditCards }
func (r *repo) DebitCards() domain.Store[domain.DebitCard]     { return r.debitCards }
func (r *repo) Expenses() domain.Store[domain.Expense]         { return r.expenses }
func (r *repo) Income() domain.Store[domain.Income]            { return r.income }
func (r *repo) Savings() domain.Store[domain.Saving]           { return r.savings }
func (r *repo) Stocks() domain.Store[domain.Stock]             { return r.stocks }
func (r *repo) Installments() domain.Store[domain.Installment] { return r.installments }
func (r *repo) Loans() domain.Store[domain.Loan]               { return r.loans }
func (r *repo) Goals() domain.Store[domain.Goal]               { return r.goals }
func (r *repo) Bills() domain.Store[domain.Bill]               { return r.bills }
func (r *repo) Budgets() domain.Store[domain.Budget]           { return r.budgets }
func (r *repo) Recurring() domain.Store[domain.RecurringTransaction] {
	return r.recurring
}

func (r *repo) AdjustCreditCardBalance(ctx context.Context, gw db.Gateway, userID, cardID snowflake.ID, delta decimal.Decimal) error {
	_, err := gw.Run(ctx,
		`UPDATE credit_cards SET current_balance = current_balance + ? WHERE id = ? AND user_id = ?`,
		delta, cardID, userID,
	)
	return err
}

func (r *repo) AdjustBankAccountBalance(ctx context.Context, gw db.Gateway, userID, accountID snowflake.ID, delta decimal.Decimal) error {
	_, err := gw.Run(ctx,
		`UPDATE bank_accounts SET current_balance = current_balance + ? WHERE id = ? AND user_id = ?`,
		delta, accountID, userID,
	)
	return err
}

func (r *repo) SetSavingsBalance(ctx context.Context, gw db.Gateway, userID, id snowflake.ID, balance decimal.Decimal, now time.Time) error {
	_, err := gw.Run(ctx,
		`UPDATE savings SET current_balance = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		balance, now, id, userID,
	)
	return err
}

func (r *repo) CountDebitCards(ctx context.Context, gw db.Gateway, userID, bankAccountID snowflake.ID) (int64, error) {
	row := map[string]any{}
	if _, err := gw.Get(ctx, &row,
		`SELECT COUNT(*) AS count FROM debit_cards WHERE user_id = ? AND bank_account_id = ?`,
		userID, bankAccountID,
	); err != nil {
		return 0, err
	}
	return db.ToInt64(row["count"])
}

func (r *repo) ExpenseTotals(ctx context.Context, gw db.Gateway, userID snowflake.ID, from, to string) ([]domain.CategoryTotal, error) {
	totals := make([]domain.CategoryTotal, 0)
	err := gw.Query(ctx, &totals,
		`SELECT category, SUM(amount) AS total FROM expenses
		 WHERE user_id = ? AND date >= ? AND date <= ?
		 GROUP BY category`,
		userID, from, to,
	)
	return totals, err
}

func (r *repo) DueRecurring(ctx context.Context, gw db.Gateway, today string) ([]domain.RecurringTransaction, error) {
	rows := make([]domain.RecurringTransaction, 0)
	err := gw.Query(ctx, &rows,
		`SELECT t.* FROM recurring_transactions t
		 WHERE t.is_active = 1 AND t.next_date <= ?
		 ORDER BY t.next_date ASC, t.id ASC`,
		today,
	)
	return rows, err
}

func (r *repo) AdvanceRecurring(ctx context.Context, gw db.Gateway, id snowflake.ID, from, to string, now time.Time) (bool, error) {
	res, err := gw.Run(ctx,
		`UPDATE recurring_transactions SET next_date = ?, last_run_date = ?, updated_at = ?
		 WHERE id = ? AND next_date = ?`,
		to, from, now, id, from,
	)
	if err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}
