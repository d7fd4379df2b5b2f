// Package memory is a TransactionExporter that keeps rows in process.
package memory

import (
	"context"
	"slices"
	"sync"

	"roomies/internal/core"
	ports "roomies/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows map[int64][]any
	ids  []int64
}

var _ ports.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[int64][]any)}
}

func (e *Exporter) Upsert(_ context.Context, t core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rows[t.ID]; !ok {
		e.ids = append(e.ids, t.ID)
	}
	e.rows[t.ID] = ports.Row(t)
	return nil
}

func (e *Exporter) Delete(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rows[id]; !ok {
		return nil
	}
	delete(e.rows, id)
	e.ids = slices.DeleteFunc(e.ids, func(v int64) bool { return v == id })
	return nil
}

func (e *Exporter) ReplaceAll(_ context.Context, txns []core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = make(map[int64][]any, len(txns))
	e.ids = e.ids[:0]
	for _, t := range txns {
		if _, ok := e.rows[t.ID]; !ok {
			e.ids = append(e.ids, t.ID)
		}
		e.rows[t.ID] = ports.Row(t)
	}
	return nil
}

// Rows returns the export with the header first, in insertion order.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]any, 0, len(e.ids)+1)
	out = append(out, slices.Clone(ports.Header))
	for _, id := range e.ids {
		out = append(out, slices.Clone(e.rows[id]))
	}
	return out
}

// Row returns the stored row for id.
func (e *Exporter) Row(id int64) ([]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rows[id]
	return slices.Clone(r), ok
}
