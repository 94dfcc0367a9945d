package service

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/internal/report/domain"
	"github.com/smallbiznis/fintrack/internal/validation"
)

func (s *Service) ExportCSV(ctx context.Context, userID snowflake.ID, resource domain.CSVResource, w io.Writer) error {
	if !resource.Valid() {
		return validation.Invalid("resource", "resource must be one of expenses, income, bank_accounts, credit_cards")
	}

	rows, err := s.csvRows(ctx, userID, resource)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func (s *Service) csvRows(ctx context.Context, userID snowflake.ID, resource domain.CSVResource) ([][]string, error) {
	all := financedomain.Filter{}

	switch resource {
	case domain.CSVExpenses:
		list, err := s.finance.Expenses().List(ctx, userID, all)
		if err != nil {
			return nil, err
		}
		rows := [][]string{{"id", "date", "category", "description", "amount", "currency", "payment_method", "credit_card", "debit_card"}}
		for _, e := range list {
			rows = append(rows, []string{
				e.ID.String(), e.Date, e.Category, deref(e.Description), amount(e.Amount), e.Currency,
				deref(e.PaymentMethod), deref(e.CreditCardName), deref(e.DebitCardName),
			})
		}
		return rows, nil

	case domain.CSVIncome:
		list, err := s.finance.Income().List(ctx, userID, all)
		if err != nil {
			return nil, err
		}
		rows := [][]string{{"id", "date", "income_type", "description", "amount", "currency"}}
		for _, in := range list {
			rows = append(rows, []string{
				in.ID.String(), in.Date, in.IncomeType, deref(in.Description), amount(in.Amount), in.Currency,
			})
		}
		return rows, nil

	case domain.CSVBankAccounts:
		list, err := s.finance.BankAccounts().List(ctx, userID, all)
		if err != nil {
			return nil, err
		}
		rows := [][]string{{"id", "account_name", "bank_name", "account_type", "country", "currency", "current_balance"}}
		for _, a := range list {
			rows = append(rows, []string{
				a.ID.String(), a.AccountName, a.BankName, deref(a.AccountType), a.Country, a.Currency, amount(a.CurrentBalance),
			})
		}
		return rows, nil

	default:
		list, err := s.finance.CreditCards().List(ctx, userID, all)
		if err != nil {
			return nil, err
		}
		rows := [][]string{{"id", "name", "bank_name", "card_type", "currency", "credit_limit", "current_balance"}}
		for _, c := range list {
			rows = append(rows, []string{
				c.ID.String(), c.Name, deref(c.BankName), c.CardType, c.Currency, amount(c.CreditLimit), amount(c.CurrentBalance),
			})
		}
		return rows, nil
	}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
