package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomies/internal/amqp"
	"roomies/internal/core"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
	"roomies/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestService(t *testing.T, members ...string) (*LedgerService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	var buf bytes.Buffer
	svc := NewLedgerService(memory.New(members...), Options{
		Publisher: pub,
		Metrics:   metrics.New(),
		Logger:    applog.New(applog.Config{Level: slog.LevelDebug, Format: applog.FormatJSON, Output: &buf}),
	})
	return svc, pub
}

func input(desc, amount string, payer int64, participants ...int64) core.TransactionInput {
	refs := make([]string, len(participants))
	for i, id := range participants {
		refs[i] = strconv.FormatInt(id, 10)
	}
	return core.TransactionInput{
		Description:  desc,
		Date:         "2024-04-01",
		Amount:       amount,
		Payer:        strconv.FormatInt(payer, 10),
		Participants: refs,
		Source:       core.SourceForm,
	}
}

func TestCreateTransactionPublishesEvent(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, "Alice", "Bob", "Carol")

	txn, err := svc.CreateTransaction(ctx, input("Groceries", "10", 1, 1, 2, 3))
	require.NoError(t, err)
	assert.NotZero(t, txn.ID)
	assert.Equal(t, []amqp.EventType{amqp.EventTransactionCreated}, pub.types())

	got, err := svc.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Description)
	assert.Equal(t, "3.34", got.Shares[2].Amount.String())
}

func TestCreateTransactionValidationError(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, "Alice")

	_, err := svc.CreateTransaction(ctx, input("", "10", 1, 1))
	require.Error(t, err)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, core.MsgEmptyDescription, verr.Message)
	assert.Empty(t, pub.types())

	list, err := svc.ListTransactions(ctx, core.TransactionQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, "Alice")
	pub.err = errors.New("broker down")

	_, err := svc.CreateTransaction(ctx, input("Tea", "2", 1, 1))
	require.NoError(t, err)
	assert.Len(t, pub.types(), 1)
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, "Alice", "Bob")

	txn, err := svc.CreateTransaction(ctx, input("Rent", "100", 1, 1, 2))
	require.NoError(t, err)

	updated, err := svc.UpdateTransaction(ctx, txn.ID, input("Rent", "90", 2, 1))
	require.NoError(t, err)
	assert.Equal(t, txn.ID, updated.ID)
	assert.Equal(t, "Bob", updated.Payer.Name)
	require.Len(t, updated.Shares, 1)
	assert.Equal(t, "90.00", updated.Shares[0].Amount.String())

	_, err = svc.UpdateTransaction(ctx, 999, input("Rent", "90", 2, 1))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateTransaction(ctx, txn.ID, input("Rent", "-1", 2, 1))
	assert.ErrorIs(t, err, core.ErrNonPositiveAmount)

	require.NoError(t, svc.DeleteTransaction(ctx, txn.ID))
	assert.ErrorIs(t, svc.DeleteTransaction(ctx, txn.ID), ErrNotFound)
	_, err = svc.GetTransaction(ctx, txn.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []amqp.EventType{
		amqp.EventTransactionCreated,
		amqp.EventTransactionUpdated,
		amqp.EventTransactionDeleted,
	}, pub.types())
}

func TestMemberManagement(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, "Alice")

	_, err := svc.AddMember(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyName)

	bob, err := svc.AddMember(ctx, " Bob ")
	require.NoError(t, err)
	assert.Equal(t, "Bob", bob.Name)

	_, err = svc.AddMember(ctx, "Bob")
	assert.ErrorIs(t, err, ErrDuplicateMember)

	members, err := svc.Members(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2, "cache must be invalidated after adding a member")

	assert.ErrorIs(t, svc.RenameMember(ctx, bob.ID, "alice"), ErrDuplicateMember)
	assert.ErrorIs(t, svc.RenameMember(ctx, bob.ID, ""), ErrEmptyName)
	assert.ErrorIs(t, svc.RenameMember(ctx, 404, "Zed"), ErrNotFound)

	require.NoError(t, svc.RenameMember(ctx, bob.ID, "BOB"))
	byName, err := svc.MembersByName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byName[0].Name)
	assert.Equal(t, "BOB", byName[1].Name)
	assert.Equal(t, []amqp.EventType{amqp.EventMemberRenamed}, pub.types())

	_, err = svc.CreateTransaction(ctx, input("Pizza", "12", 1, bob.ID))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteMember(ctx, bob.ID), ErrMemberInUse)

	carol, err := svc.AddMember(ctx, "Carol")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteMember(ctx, carol.ID))
	assert.ErrorIs(t, svc.DeleteMember(ctx, carol.ID), ErrNotFound)
}

func TestEnsureDefaultMembers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	n, err := svc.EnsureDefaultMembers(ctx, []string{"Valentine", "Savel", "", "Savel"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.EnsureDefaultMembers(ctx, []string{"Someone"})
	require.NoError(t, err)
	assert.Zero(t, n, "seeding only happens on an empty ledger")
}

func TestLedgerView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, "Carol", "Alice", "Bob")
	// ids: Carol=1, Alice=2, Bob=3

	_, err := svc.CreateTransaction(ctx, input("Dinner", "30", 2, 1, 2, 3))
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, input("Taxi", "6", 3, 2))
	require.NoError(t, err)

	view, err := svc.Ledger(ctx)
	require.NoError(t, err)

	require.Len(t, view.People, 3)
	assert.Equal(t, "Alice", view.People[0].Name)

	assert.Equal(t, "14.00", view.Balances[2].String())
	assert.Equal(t, "-10.00", view.Balances[1].String())
	assert.Equal(t, "-4.00", view.Balances[3].String())

	// Carol owes Alice 10; Bob owes Alice 10 - 6 = 4.
	require.Len(t, view.Settlements, 2)
	assert.Equal(t, int64(1), view.Settlements[0].From.ID)
	assert.Equal(t, int64(2), view.Settlements[0].To.ID)
	assert.Equal(t, "10.00", view.Settlements[0].Amount.String())
	assert.Equal(t, int64(3), view.Settlements[1].From.ID)
	assert.Equal(t, "4.00", view.Settlements[1].Amount.String())

	assert.Len(t, view.ByPerson[2].Owed, 2)
	assert.Equal(t, 1, view.PayerStats[1].Count) // Bob
	assert.Equal(t, "30.00", view.PayerStats[0].Volume.String())
}
