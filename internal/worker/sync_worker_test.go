package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomies/internal/amqp"
	"roomies/internal/core"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
	sheetmem "roomies/internal/sheets/memory"
	"roomies/internal/storage/memory"
)

func newTestWorker(t *testing.T) (*SyncWorker, *memory.Store, *sheetmem.Exporter) {
	t.Helper()
	store := memory.New("Alice", "Bob")
	exporter := sheetmem.New()
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Format: applog.FormatJSON, Output: &buf})
	return NewSyncWorker(store, exporter, metrics.New(), logger), store, exporter
}

func addTxn(t *testing.T, store *memory.Store, desc, amount string) core.Transaction {
	t.Helper()
	ctx := context.Background()
	alice, err := store.GetPerson(ctx, 1)
	require.NoError(t, err)
	bob, err := store.GetPerson(ctx, 2)
	require.NoError(t, err)

	total := core.MustParseMoney(amount)
	parts, err := core.Split(total, 2)
	require.NoError(t, err)
	created, err := store.CreateTransaction(ctx, core.Transaction{
		Date:        core.NewDate(2024, 3, 9),
		Description: desc,
		Amount:      total,
		Payer:       alice,
		Shares:      []core.Share{{Person: alice, Amount: parts[0]}, {Person: bob, Amount: parts[1]}},
	})
	require.NoError(t, err)
	return created
}

func TestHandleEvent_CreatedAndUpdated(t *testing.T) {
	ctx := context.Background()
	w, store, exporter := newTestWorker(t)

	txn := addTxn(t, store, "Coffee", "5")
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCreated, txn.ID)))

	row, ok := exporter.Row(txn.ID)
	require.True(t, ok)
	assert.Equal(t, "Coffee", row[2])

	txn.Description = "Coffee beans"
	require.NoError(t, store.UpdateTransaction(ctx, txn))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionUpdated, txn.ID)))

	row, _ = exporter.Row(txn.ID)
	assert.Equal(t, "Coffee beans", row[2])
	assert.Len(t, exporter.Rows(), 2)
}

func TestHandleEvent_DeletedAndMissing(t *testing.T) {
	ctx := context.Background()
	w, store, exporter := newTestWorker(t)

	txn := addTxn(t, store, "Rent", "800")
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCreated, txn.ID)))

	// An update for a transaction that no longer exists drops the row.
	require.NoError(t, store.DeleteTransaction(ctx, txn.ID))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionUpdated, txn.ID)))
	_, ok := exporter.Row(txn.ID)
	assert.False(t, ok)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionDeleted, txn.ID)))
}

func TestHandleEvent_MemberRenamedReconciles(t *testing.T) {
	ctx := context.Background()
	w, store, exporter := newTestWorker(t)

	txn := addTxn(t, store, "Pizza", "20")
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCreated, txn.ID)))

	require.NoError(t, store.RenamePerson(ctx, 2, "Robert"))
	require.NoError(t, w.HandleEvent(ctx, amqp.NewMemberRenamedEvent(2)))

	row, ok := exporter.Row(txn.ID)
	require.True(t, ok)
	assert.Equal(t, "Alice, Robert", row[5])
}

func TestHandleEvent_Unsupported(t *testing.T) {
	w, _, _ := newTestWorker(t)
	assert.Error(t, w.HandleEvent(context.Background(), &amqp.LedgerEvent{Type: "member.exploded"}))
	assert.Error(t, w.HandleEvent(context.Background(), nil))
}

type stubSource struct {
	events []*amqp.LedgerEvent
	err    error
}

func (s *stubSource) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error {
	for _, e := range s.events {
		if err := handler(ctx, e); err != nil {
			return err
		}
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_ReconcilesThenConsumes(t *testing.T) {
	w, store, exporter := newTestWorker(t)
	first := addTxn(t, store, "Before start", "10")
	second := addTxn(t, store, "Queued", "4")

	ctx, cancel := context.WithCancel(context.Background())
	source := &stubSource{events: []*amqp.LedgerEvent{
		amqp.NewTransactionEvent(amqp.EventTransactionDeleted, first.ID),
	}}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, source, time.Hour) }()

	// the startup reconcile exports both, then the queued delete drops one
	require.Eventually(t, func() bool {
		_, hasFirst := exporter.Row(first.ID)
		_, hasSecond := exporter.Row(second.ID)
		return hasSecond && !hasFirst
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_PropagatesConsumerFailure(t *testing.T) {
	w, _, _ := newTestWorker(t)
	boom := errors.New("channel closed")

	err := w.Run(context.Background(), &stubSource{err: boom}, time.Hour)
	assert.ErrorIs(t, err, boom)
}
