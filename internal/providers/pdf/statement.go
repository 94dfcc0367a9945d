package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData is a monthly statement with every amount already formatted
// in the owner's default currency.
type StatementData struct {
	OwnerName   string
	OwnerEmail  string
	Period      string
	Currency    string
	GeneratedAt string

	Summary  []SummaryLine
	Expenses []StatementLine
	Income   []StatementLine
}

type SummaryLine struct {
	Label string
	Value string
}

type StatementLine struct {
	Date        string
	Category    string
	Description string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	if data.Period == "" {
		return nil, errors.New("statement period is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Monthly statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New(data.OwnerName, props.Text{Style: fontstyle.Bold}),
			text.New(data.OwnerEmail, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Period: "+data.Period, props.Text{Align: align.Right}),
			text.New("Currency: "+data.Currency, props.Text{Top: 5, Align: align.Right}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(12, "Summary", props.Text{Size: 14, Style: fontstyle.Bold, Top: 2}),
	)
	for _, line := range data.Summary {
		m.AddRow(7,
			text.NewCol(8, line.Label, props.Text{Size: 9}),
			text.NewCol(4, line.Value, props.Text{Size: 9, Align: align.Right}),
		)
	}

	addLines(m, "Expenses", data.Expenses)
	addLines(m, "Income", data.Income)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func addLines(m core.Maroto, title string, lines []StatementLine) {
	m.AddRow(14,
		text.NewCol(12, title, props.Text{Size: 14, Style: fontstyle.Bold, Top: 6}),
	)
	m.AddRow(8,
		text.NewCol(2, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Category", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	if len(lines) == 0 {
		m.AddRow(7, text.NewCol(12, "No entries", props.Text{Size: 9, Style: fontstyle.Italic}))
		return
	}
	for _, line := range lines {
		m.AddRow(7,
			text.NewCol(2, line.Date, props.Text{Size: 9}),
			text.NewCol(3, line.Category, props.Text{Size: 9}),
			text.NewCol(5, line.Description, props.Text{Size: 9}),
			text.NewCol(2, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}
