package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/internal/providers/pdf"
	"github.com/smallbiznis/fintrack/internal/report/domain"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
	"github.com/smallbiznis/fintrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	DB      db.Gateway
	Log     *zap.Logger
	Clock   clock.Clock
	Users   userdomain.Repository
	Finance financedomain.Service
	Rates   *config.RatesHolder
	PDF     pdf.Provider
}

type Service struct {
	db      db.Gateway
	log     *zap.Logger
	clock   clock.Clock
	users   userdomain.Repository
	finance financedomain.Service
	rates   *config.RatesHolder
	pdf     pdf.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("report.service"),
		clock:   p.Clock,
		users:   p.Users,
		finance: p.Finance,
		rates:   p.Rates,
		pdf:     p.PDF,
	}
}

// converter sums amounts of mixed currencies into one target currency.
type converter struct {
	rates  config.ExchangeRates
	target string
}

func (c converter) to(amount decimal.Decimal, from string) decimal.Decimal {
	if from == "" {
		from = c.target
	}
	return c.rates.Convert(amount, from, c.target)
}

func (s *Service) Dashboard(ctx context.Context, userID snowflake.ID) (*domain.Dashboard, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	conv := s.converter(user)
	now := s.clock.Now()
	month := financedomain.Filter{Month: int(now.Month()), Year: now.Year()}

	accounts, err := s.finance.BankAccounts().List(ctx, userID, financedomain.Filter{})
	if err != nil {
		return nil, err
	}
	cards, err := s.finance.CreditCards().List(ctx, userID, financedomain.Filter{})
	if err != nil {
		return nil, err
	}
	savings, err := s.finance.Savings().List(ctx, userID, financedomain.Filter{})
	if err != nil {
		return nil, err
	}
	stocks, err := s.finance.Stocks().List(ctx, userID, financedomain.Filter{})
	if err != nil {
		return nil, err
	}
	expenses, err := s.finance.Expenses().List(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	income, err := s.finance.Income().List(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	installments, err := s.finance.Installments().List(ctx, userID, financedomain.Filter{})
	if err != nil {
		return nil, err
	}

	d := &domain.Dashboard{
		DefaultCurrency:   conv.target,
		BankAccountsCount: len(accounts),
		CreditCardsCount:  len(cards),
		SavingsCount:      len(savings),
		StocksCount:       len(stocks),
		ExpensesCount:     len(expenses),
		IncomeCount:       len(income),
	}
	for _, a := range accounts {
		d.TotalBankAccounts = d.TotalBankAccounts.Add(conv.to(a.CurrentBalance, a.Currency))
	}
	for _, c := range cards {
		d.TotalCreditLimit = d.TotalCreditLimit.Add(conv.to(c.CreditLimit, c.Currency))
		d.TotalCreditBalance = d.TotalCreditBalance.Add(conv.to(c.CurrentBalance, c.Currency))
	}
	for _, sv := range savings {
		d.TotalSavings = d.TotalSavings.Add(conv.to(sv.CurrentBalance, sv.Currency))
	}
	for _, st := range stocks {
		d.TotalStocks = d.TotalStocks.Add(conv.to(stockValue(st), st.Currency))
	}
	for _, e := range expenses {
		d.MonthlyExpenses = d.MonthlyExpenses.Add(conv.to(e.Amount, e.Currency))
	}
	for _, in := range income {
		d.MonthlyIncome = d.MonthlyIncome.Add(conv.to(in.Amount, in.Currency))
	}
	for _, inst := range installments {
		if inst.Status != financedomain.StatusActive {
			continue
		}
		d.ActiveInstallments = d.ActiveInstallments.Add(conv.to(inst.RemainingAmount, inst.Currency))
	}

	d.AvailableCredit = d.TotalCreditLimit.Sub(d.TotalCreditBalance)
	d.NetWorth = d.TotalBankAccounts.Add(d.TotalSavings).Add(d.TotalStocks).
		Sub(d.TotalCreditBalance).Sub(d.ActiveInstallments)
	d.MonthlyBalance = d.MonthlyIncome.Sub(d.MonthlyExpenses)

	for _, v := range []*decimal.Decimal{
		&d.TotalBankAccounts, &d.TotalCreditLimit, &d.TotalCreditBalance, &d.AvailableCredit,
		&d.TotalSavings, &d.TotalStocks, &d.MonthlyExpenses, &d.MonthlyIncome,
		&d.ActiveInstallments, &d.NetWorth, &d.MonthlyBalance,
	} {
		*v = v.Round(2)
	}
	return d, nil
}

func (s *Service) ExportAll(ctx context.Context, userID snowflake.ID) (*domain.Export, error) {
	var (
		out domain.Export
		err error
	)
	all := financedomain.Filter{}
	if out.BankAccounts, err = s.finance.BankAccounts().List(ctx, userID, all); err != nil {
		return nil, err
	}
	if out.CreditCards, err = s.finance.CreditCards().List(ctx, userID, all); err != nil {
		return nil, err
	}
	if out.Expenses, err = s.finance.Expenses().List(ctx, userID, all); err != nil {
		return nil, err
	}
	if out.Savings, err = s.finance.Savings().List(ctx, userID, all); err != nil {
		return nil, err
	}
	if out.Stocks, err = s.finance.Stocks().List(ctx, userID, all); err != nil {
		return nil, err
	}
	if out.Income, err = s.finance.Income().List(ctx, userID, all); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Statement(ctx context.Context, userID snowflake.ID, month, year int) (io.Reader, error) {
	now := s.clock.Now()
	if month == 0 && year == 0 {
		month, year = int(now.Month()), now.Year()
	}
	if month < 1 || month > 12 {
		return nil, validation.Invalid("month", "month must be between 1 and 12")
	}
	if year < 1970 {
		return nil, validation.Invalid("year", "year is invalid")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	conv := s.converter(user)
	period := financedomain.Filter{Month: month, Year: year}

	expenses, err := s.finance.Expenses().List(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	income, err := s.finance.Income().List(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	data := pdf.StatementData{
		OwnerName:   user.Name,
		OwnerEmail:  user.Email,
		Period:      time.Month(month).String() + " " + strconv.Itoa(year),
		Currency:    conv.target,
		GeneratedAt: now.Format(financedomain.DateLayout),
	}

	var spent, earned decimal.Decimal
	for _, e := range expenses {
		spent = spent.Add(conv.to(e.Amount, e.Currency))
		data.Expenses = append(data.Expenses, pdf.StatementLine{
			Date:        e.Date,
			Category:    e.Category,
			Description: deref(e.Description),
			Amount:      money(e.Amount, e.Currency),
		})
	}
	for _, in := range income {
		earned = earned.Add(conv.to(in.Amount, in.Currency))
		data.Income = append(data.Income, pdf.StatementLine{
			Date:        in.Date,
			Category:    in.IncomeType,
			Description: deref(in.Description),
			Amount:      money(in.Amount, in.Currency),
		})
	}
	data.Summary = []pdf.SummaryLine{
		{Label: "Income", Value: money(earned, conv.target)},
		{Label: "Expenses", Value: money(spent, conv.target)},
		{Label: "Balance", Value: money(earned.Sub(spent), conv.target)},
	}

	doc, err := s.pdf.GenerateStatement(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}
	s.log.Debug("statement rendered",
		zap.String("user_id", userID.String()),
		zap.String("period", data.Period),
		zap.Int("expenses", len(expenses)),
		zap.Int("income", len(income)),
	)
	return doc, nil
}

func (s *Service) loadUser(ctx context.Context, userID snowflake.ID) (*userdomain.User, error) {
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func (s *Service) converter(user *userdomain.User) converter {
	target := user.DefaultCurrency
	if target == "" {
		target = config.BaseCurrency
	}
	return converter{rates: s.rates.Get(), target: target}
}

func stockValue(st financedomain.Stock) decimal.Decimal {
	price := st.PurchasePrice
	if st.CurrentPrice.Valid {
		price = st.CurrentPrice.Decimal
	}
	return price.Mul(st.Shares)
}

func money(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
