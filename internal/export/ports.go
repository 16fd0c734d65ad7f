// Package export defines the outbound port for mirroring ledger rows to an
// external spreadsheet.
package export

import (
	"context"

	"tally/internal/core"
)

// Row is one exported ledger line.
type Row struct {
	Transaction core.Transaction
	Event       string
}

// LedgerWriter appends ledger rows to the export target.
type LedgerWriter interface {
	Append(ctx context.Context, row Row) (rowRef string, err error)
}
