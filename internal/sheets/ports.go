// Package sheets mirrors the ledger into a spreadsheet-shaped export.
package sheets

import (
	"context"
	"strconv"
	"strings"

	"roomies/internal/core"
)

// TransactionExporter keeps an external copy of the ledger, one row per
// transaction keyed by transaction id.
type TransactionExporter interface {
	// Upsert writes the row for t, replacing any row with the same id.
	Upsert(ctx context.Context, t core.Transaction) error
	// Delete removes the row for id. Deleting a missing row is not an error.
	Delete(ctx context.Context, id int64) error
	// ReplaceAll rewrites the whole export from txns.
	ReplaceAll(ctx context.Context, txns []core.Transaction) error
}

// Header is the first row of every export.
var Header = []any{"ID", "Date", "Description", "Amount", "Payer", "Participants", "Shares", "Comment"}

// Row renders t in Header column order.
func Row(t core.Transaction) []any {
	names := make([]string, len(t.Shares))
	shares := make([]string, len(t.Shares))
	for i, s := range t.Shares {
		names[i] = s.Person.Name
		shares[i] = s.Person.Name + " " + s.Amount.String()
	}
	return []any{
		strconv.FormatInt(t.ID, 10),
		t.Date.String(),
		t.Description,
		t.Amount.Float64(),
		t.Payer.Name,
		strings.Join(names, ", "),
		strings.Join(shares, "; "),
		t.Comment,
	}
}
