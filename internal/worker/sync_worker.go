// Package worker mirrors the ledger into an external spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"roomies/internal/amqp"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
	"roomies/internal/sheets"
	"roomies/internal/storage"
)

// EventSource delivers ledger events until ctx is cancelled.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// SyncWorker keeps an exporter in step with the store. Events carry ids only;
// the row content is always read back from the store.
type SyncWorker struct {
	store    storage.Store
	exporter sheets.TransactionExporter
	metrics  *metrics.Metrics
	logger   *applog.Logger
}

func NewSyncWorker(store storage.Store, exporter sheets.TransactionExporter, m *metrics.Metrics, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		store:    store,
		exporter: exporter,
		metrics:  m,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent applies a single ledger event to the exporter.
func (w *SyncWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if event == nil {
		return errors.New("nil event")
	}

	switch event.Type {
	case amqp.EventTransactionCreated, amqp.EventTransactionUpdated:
		return w.upsert(ctx, event.TransactionID)
	case amqp.EventTransactionDeleted:
		return w.delete(ctx, event.TransactionID)
	case amqp.EventMemberRenamed:
		// names appear in many rows
		return w.Reconcile(ctx)
	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}
}

func (w *SyncWorker) upsert(ctx context.Context, id int64) error {
	t, err := w.store.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// deleted before the event was consumed
		w.logger.InfoContext(ctx, "Transaction gone before sync, removing row", applog.FieldTransactionID, id)
		return w.delete(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", id, err)
	}

	if err := w.exporter.Upsert(ctx, t); err != nil {
		w.metrics.ExportOperation("upsert", metrics.OutcomeError)
		w.logger.ErrorContext(ctx, "Failed to export transaction",
			applog.FieldTransactionID, id,
			applog.FieldError, err)
		return fmt.Errorf("export transaction %d: %w", id, err)
	}
	w.metrics.ExportOperation("upsert", metrics.OutcomeSuccess)
	w.logger.InfoContext(ctx, "Transaction exported",
		applog.FieldTransactionID, id,
		applog.FieldAmount, t.Amount.String())
	return nil
}

func (w *SyncWorker) delete(ctx context.Context, id int64) error {
	if err := w.exporter.Delete(ctx, id); err != nil {
		w.metrics.ExportOperation("delete", metrics.OutcomeError)
		w.logger.ErrorContext(ctx, "Failed to remove exported transaction",
			applog.FieldTransactionID, id,
			applog.FieldError, err)
		return fmt.Errorf("remove transaction %d: %w", id, err)
	}
	w.metrics.ExportOperation("delete", metrics.OutcomeSuccess)
	w.logger.InfoContext(ctx, "Exported transaction removed", applog.FieldTransactionID, id)
	return nil
}

// Reconcile rewrites the whole export from a store snapshot. It recovers from
// lost messages and worker downtime.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	start := time.Now()
	snap, err := w.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := w.exporter.ReplaceAll(ctx, snap.Transactions); err != nil {
		w.metrics.ExportOperation("reconcile", metrics.OutcomeError)
		return fmt.Errorf("replace export: %w", err)
	}
	w.metrics.ExportOperation("reconcile", metrics.OutcomeSuccess)
	w.logger.InfoContext(ctx, "Export reconciled",
		"transactions", len(snap.Transactions),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Run reconciles once, then consumes events from source and reconciles every
// interval until ctx is cancelled or consumption fails. A nil source leaves
// only the periodic reconcile running.
func (w *SyncWorker) Run(ctx context.Context, source EventSource, interval time.Duration) error {
	if err := w.Reconcile(ctx); err != nil {
		// keep going: the next tick or event may succeed
		w.logger.ErrorContext(ctx, "Startup reconcile failed", applog.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if source != nil {
		g.Go(func() error {
			err := source.ConsumeLedgerEvents(ctx, w.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume ledger events: %w", err)
			}
			return nil
		})
	}

	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := w.Reconcile(ctx); err != nil {
						w.logger.ErrorContext(ctx, "Periodic reconcile failed", applog.FieldError, err)
					}
				}
			}
		})
	}

	return g.Wait()
}
