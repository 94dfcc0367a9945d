package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	DB    db.Gateway
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    db.Gateway
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository

	bankAccounts *resource[domain.BankAccount, *domain.BankAccount]
	creditCards  *resource[domain.CreditCard, *domain.CreditCard]
	debitCards   *resource[domain.DebitCard, *domain.DebitCard]
	expenses     *resource[domain.Expense, *domain.Expense]
	income       *resource[domain.Income, *domain.Income]
	savings      *resource[domain.Saving, *domain.Saving]
	stocks       *resource[domain.Stock, *domain.Stock]
	installments *resource[domain.Installment, *domain.Installment]
	loans        *resource[domain.Loan, *domain.Loan]
	goals        *resource[domain.Goal, *domain.Goal]
	bills        *resource[domain.Bill, *domain.Bill]
	budgets      *resource[domain.Budget, *domain.Budget]
	recurring    *resource[domain.RecurringTransaction, *domain.RecurringTransaction]
}

func New(p Params) domain.Service {
	s := &Service{
		db:    p.DB,
		log:   p.Log.Named("finance.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}

	s.bankAccounts = newResource(s, p.Repo.BankAccounts(), hooks[domain.BankAccount]{})
	s.creditCards = newResource(s, p.Repo.CreditCards(), hooks[domain.CreditCard]{
		create: func(ctx context.Context, tx db.Gateway, rec *domain.CreditCard) error {
			return s.checkBankAccount(ctx, tx, rec.UserID, rec.BankAccountID)
		},
		update: func(ctx context.Context, tx db.Gateway, _, rec *domain.CreditCard) error {
			return s.checkBankAccount(ctx, tx, rec.UserID, rec.BankAccountID)
		},
	})
	s.debitCards = newResource(s, p.Repo.DebitCards(), hooks[domain.DebitCard]{
		create: func(ctx context.Context, tx db.Gateway, rec *domain.DebitCard) error {
			return s.attachDebitCard(ctx, tx, rec)
		},
		update: func(ctx context.Context, tx db.Gateway, old, rec *domain.DebitCard) error {
			if old.BankAccountID == rec.BankAccountID {
				if rec.Currency == "" {
					rec.Currency = old.Currency
				}
				return nil
			}
			return s.attachDebitCard(ctx, tx, rec)
		},
	})
	s.expenses = newResource(s, p.Repo.Expenses(), hooks[domain.Expense]{
		create: func(ctx context.Context, tx db.Gateway, rec *domain.Expense) error {
			return s.applyExpense(ctx, tx, rec, decimal.NewFromInt(1), true)
		},
		update: func(ctx context.Context, tx db.Gateway, old, rec *domain.Expense) error {
			if err := s.applyExpense(ctx, tx, old, decimal.NewFromInt(-1), false); err != nil {
				return err
			}
			return s.applyExpense(ctx, tx, rec, decimal.NewFromInt(1), true)
		},
		delete: func(ctx context.Context, tx db.Gateway, old *domain.Expense) error {
			return s.applyExpense(ctx, tx, old, decimal.NewFromInt(-1), false)
		},
	})
	s.income = newResource(s, p.Repo.Income(), hooks[domain.Income]{})
	s.savings = newResource(s, p.Repo.Savings(), hooks[domain.Saving]{
		create: func(ctx context.Context, tx db.Gateway, rec *domain.Saving) error {
			return s.checkBankAccount(ctx, tx, rec.UserID, rec.BankAccountID)
		},
		update: func(ctx context.Context, tx db.Gateway, _, rec *domain.Saving) error {
			return s.checkBankAccount(ctx, tx, rec.UserID, rec.BankAccountID)
		},
	})
	s.stocks = newResource(s, p.Repo.Stocks(), hooks[domain.Stock]{})
	s.installments = newResource(s, p.Repo.Installments(), hooks[domain.Installment]{
		create: func(ctx context.Context, tx db.Gateway, rec *domain.Installment) error {
			return s.checkCreditCard(ctx, tx, rec.UserID, rec.CreditCardID)
		},
		update: func(ctx context.Context, tx db.Gateway, _, rec *domain.Installment) error {
			return s.checkCreditCard(ctx, tx, rec.UserID, rec.CreditCardID)
		},
	})
	s.loans = newResource(s, p.Repo.Loans(), hooks[domain.Loan]{
		create: func(ctx context.Context, tx db.Gateway, rec *domain.Loan) error {
			return s.checkLoanLinks(ctx, tx, rec)
		},
		update: func(ctx context.Context, tx db.Gateway, _, rec *domain.Loan) error {
			return s.checkLoanLinks(ctx, tx, rec)
		},
	})
	s.goals = newResource(s, p.Repo.Goals(), hooks[domain.Goal]{})
	s.bills = newResource(s, p.Repo.Bills(), hooks[domain.Bill]{})
	s.budgets = newResource(s, p.Repo.Budgets(), hooks[domain.Budget]{
		filter: s.budgetPeriod,
		list:   s.budgetSpent,
	})
	s.recurring = newResource(s, p.Repo.Recurring(), hooks[domain.RecurringTransaction]{})

	return s
}

func newResource[T any, P interface {
	*T
	domain.Record
}](s *Service, store domain.Store[T], h hooks[T]) *resource[T, P] {
	return &resource[T, P]{
		db:    s.db,
		clock: s.clock,
		genID: s.genID,
		store: store,
		hooks: h,
	}
}

func (s *Service) BankAccounts() domain.Resource[domain.BankAccount] { return s.bankAccounts }
func (s *Service) CreditCards() domain.Resource[domain.CreditCard]   { return s.creditCards }
func (s *Service) DebitCards() domain.Resource[domain.DebitCard]     { return s.debitCards }
func (s *Service) Expenses() domain.Resource[domain.Expense]         { return s.expenses }
func (s *Service) Income() domain.Resource[domain.Income]            { return s.income }
func (s *Service) Savings() domain.Resource[domain.Saving]           { return s.savings }
func (s *Service) Stocks() domain.Resource[domain.Stock]             { return s.stocks }
func (s *Service) Installments() domain.Resource[domain.Installment] { return s.installments }
func (s *Service) Loans() domain.Resource[domain.Loan]               { return s.loans }
func (s *Service) Goals() domain.Resource[domain.Goal]               { return s.goals }
func (s *Service) Bills() domain.Resource[domain.Bill]               { return s.bills }
func (s *Service) Budgets() domain.Resource[domain.Budget]           { return s.budgets }
func (s *Service) Recurring() domain.Resource[domain.RecurringTransaction] {
	return s.recurring
}

func (s *Service) checkBankAccount(ctx context.Context, tx db.Gateway, userID snowflake.ID, id *snowflake.ID) error {
	if id == nil {
		return nil
	}
	account, err := s.repo.BankAccounts().Get(ctx, tx, userID, *id)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrBankAccountNotFound
	}
	return nil
}

func (s *Service) checkCreditCard(ctx context.Context, tx db.Gateway, userID snowflake.ID, id *snowflake.ID) error {
	if id == nil {
		return nil
	}
	card, err := s.repo.CreditCards().Get(ctx, tx, userID, *id)
	if err != nil {
		return err
	}
	if card == nil {
		return domain.ErrCreditCardNotFound
	}
	return nil
}

func (s *Service) checkLoanLinks(ctx context.Context, tx db.Gateway, rec *domain.Loan) error {
	if err := s.checkCreditCard(ctx, tx, rec.UserID, rec.CreditCardID); err != nil {
		return err
	}
	return s.checkBankAccount(ctx, tx, rec.UserID, rec.BankAccountID)
}

// attachDebitCard checks the target bank account and its card capacity, and
// inherits the account currency when none was given.
func (s *Service) attachDebitCard(ctx context.Context, tx db.Gateway, rec *domain.DebitCard) error {
	account, err := s.repo.BankAccounts().Get(ctx, tx, rec.UserID, rec.BankAccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrBankAccountNotFound
	}

	count, err := s.repo.CountDebitCards(ctx, tx, rec.UserID, rec.BankAccountID)
	if err != nil {
		return err
	}
	if count >= domain.MaxDebitCardsPerAccount {
		return validation.Invalid("bank_account_id",
			fmt.Sprintf("Maximum %d debit cards allowed per bank account", domain.MaxDebitCardsPerAccount))
	}

	if rec.Currency == "" {
		rec.Currency = account.Currency
	}
	return nil
}

// applyExpense moves linked balances by sign*amount: a credit card balance
// grows, a debit card's bank account shrinks. Reversals tolerate a card that
// has since been removed.
func (s *Service) applyExpense(ctx context.Context, tx db.Gateway, e *domain.Expense, sign decimal.Decimal, strict bool) error {
	amount := e.Amount.Mul(sign)

	switch {
	case e.CreditCardID != nil:
		card, err := s.repo.CreditCards().Get(ctx, tx, e.UserID, *e.CreditCardID)
		if err != nil {
			return err
		}
		if card == nil {
			if strict {
				return domain.ErrCreditCardNotFound
			}
			return nil
		}
		return s.repo.AdjustCreditCardBalance(ctx, tx, e.UserID, card.ID, amount)

	case e.DebitCardID != nil:
		card, err := s.repo.DebitCards().Get(ctx, tx, e.UserID, *e.DebitCardID)
		if err != nil {
			return err
		}
		if card == nil {
			if strict {
				return domain.ErrDebitCardNotFound
			}
			return nil
		}
		return s.repo.AdjustBankAccountBalance(ctx, tx, e.UserID, card.BankAccountID, amount.Neg())
	}
	return nil
}

func (s *Service) budgetPeriod(f domain.Filter) domain.Filter {
	if f.Month < 1 || f.Month > 12 || f.Year <= 0 {
		now := s.clock.Now().UTC()
		f.Month = int(now.Month())
		f.Year = now.Year()
	}
	return f
}

// budgetSpent fills Spent from the expenses of each budget's own month whose
// category slug matches the budget's.
func (s *Service) budgetSpent(ctx context.Context, userID snowflake.ID, _ domain.Filter, rows []domain.Budget) error {
	byPeriod := map[[2]int]map[string]decimal.Decimal{}
	for i := range rows {
		b := &rows[i]
		key := [2]int{b.Year, b.Month}
		totals, ok := byPeriod[key]
		if !ok {
			first := time.Date(b.Year, time.Month(b.Month), 1, 0, 0, 0, 0, time.UTC)
			list, err := s.repo.ExpenseTotals(ctx, s.db, userID,
				first.Format(domain.DateLayout),
				first.AddDate(0, 1, -1).Format(domain.DateLayout),
			)
			if err != nil {
				return err
			}
			totals = make(map[string]decimal.Decimal, len(list))
			for _, t := range list {
				k := slug.Make(t.Category)
				totals[k] = totals[k].Add(t.Total)
			}
			byPeriod[key] = totals
		}
		b.Spent = totals[slug.Make(b.Category)]
	}
	return nil
}

func (s *Service) ApplySavingsTransaction(ctx context.Context, userID, savingsID snowflake.ID, t domain.SavingsTransaction) (decimal.Decimal, error) {
	if err := t.Validate(); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err := s.db.Transaction(ctx, func(tx db.Gateway) error {
		account, err := s.repo.Savings().Get(ctx, tx, userID, savingsID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}

		balance = account.CurrentBalance
		if t.TransactionType == domain.SavingsWithdrawal {
			balance = balance.Sub(t.Amount)
		} else {
			balance = balance.Add(t.Amount)
		}
		return s.repo.SetSavingsBalance(ctx, tx, userID, savingsID, balance, s.clock.Now())
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.log.Debug("savings transaction applied",
		zap.String("savings_id", savingsID.String()),
		zap.String("type", string(t.TransactionType)),
		zap.String("balance", balance.String()),
	)
	return balance, nil
}

func (s *Service) MaterializeDue(ctx context.Context, eligible domain.Eligible) (int, error) {
	now := s.clock.Now()
	today := now.UTC().Format(domain.DateLayout)

	due, err := s.repo.DueRecurring(ctx, s.db, today)
	if err != nil {
		return 0, err
	}

	allowed := map[snowflake.ID]bool{}
	ran := 0
	for _, rec := range due {
		if eligible != nil {
			ok, seen := allowed[rec.UserID]
			if !seen {
				if ok, err = eligible(ctx, rec.UserID); err != nil {
					return ran, err
				}
				allowed[rec.UserID] = ok
			}
			if !ok {
				continue
			}
		}

		done, err := s.materialize(ctx, rec, now)
		if err != nil {
			s.log.Error("failed to materialize recurring transaction",
				zap.String("recurring_id", rec.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if done {
			ran++
		}
	}
	return ran, nil
}

// materialize writes the occurrence dated next_date and advances the row,
// unless another run advanced it first.
func (s *Service) materialize(ctx context.Context, rec domain.RecurringTransaction, now time.Time) (bool, error) {
	next, err := domain.NextOccurrence(rec.NextDate, rec.Frequency)
	if err != nil {
		return false, err
	}

	var done bool
	err = s.db.Transaction(ctx, func(tx db.Gateway) error {
		advanced, err := s.repo.AdvanceRecurring(ctx, tx, rec.ID, rec.NextDate, next, now)
		if err != nil || !advanced {
			return err
		}

		base := domain.Base{ID: s.genID.Generate(), UserID: rec.UserID, CreatedAt: now, UpdatedAt: now}
		description := rec.Description
		switch rec.TransactionType {
		case domain.TransactionIncome:
			category := description
			if rec.Category != nil && *rec.Category != "" {
				category = *rec.Category
			}
			err = s.repo.Income().Insert(ctx, tx, &domain.Income{
				Base:        base,
				IncomeType:  category,
				Description: &description,
				Amount:      rec.Amount,
				Currency:    rec.Currency,
				Date:        rec.NextDate,
			})
		default:
			category := "Other"
			if rec.Category != nil && *rec.Category != "" {
				category = *rec.Category
			}
			err = s.repo.Expenses().Insert(ctx, tx, &domain.Expense{
				Base:        base,
				Category:    category,
				Description: &description,
				Amount:      rec.Amount,
				Currency:    rec.Currency,
				Date:        rec.NextDate,
			})
		}
		if err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}
