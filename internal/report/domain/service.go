package domain

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Dashboard(ctx context.Context, userID snowflake.ID) (*Dashboard, error)
	ExportAll(ctx context.Context, userID snowflake.ID) (*Export, error)
	// ExportCSV writes every row of resource owned by userID, header first.
	ExportCSV(ctx context.Context, userID snowflake.ID, resource CSVResource, w io.Writer) error
	// Statement renders the PDF statement of one calendar month. A zero month
	// or year selects the current month.
	Statement(ctx context.Context, userID snowflake.ID, month, year int) (io.Reader, error)
}
