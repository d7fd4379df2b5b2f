package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomies/internal/amqp"
	"roomies/internal/cache"
	"roomies/internal/core"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
	"roomies/internal/storage"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateMember = errors.New("member already exists")
	ErrMemberInUse     = errors.New("member is linked to existing transactions")
	ErrEmptyName       = errors.New("name is required")
)

// EventPublisher announces ledger changes to downstream consumers.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

const membersKey = "members"

// Options carries the optional collaborators of a LedgerService.
type Options struct {
	Publisher      EventPublisher
	Metrics        *metrics.Metrics
	Logger         *applog.Logger
	MemberCacheTTL time.Duration
}

// LedgerService orchestrates member and transaction operations across the
// store, the member cache and the event publisher.
type LedgerService struct {
	store      storage.Store
	publisher  EventPublisher
	members    *cache.LRUCache[[]core.Person]
	metrics    *metrics.Metrics
	logger     *applog.Logger
	structured *applog.StructuredLogger
}

func NewLedgerService(store storage.Store, opts Options) *LedgerService {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	ttl := opts.MemberCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger = logger.WithComponent(applog.ComponentLedger)
	return &LedgerService{
		store:      store,
		publisher:  opts.Publisher,
		members:    cache.NewLRUCache[[]core.Person](1, ttl),
		metrics:    opts.Metrics,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
	}
}

// MemberCache exposes the member directory cache for periodic cleanup.
func (s *LedgerService) MemberCache() cache.Cleaner { return s.members }

// Members returns every member in id order.
func (s *LedgerService) Members(ctx context.Context) ([]core.Person, error) {
	if people, ok := s.members.Get(membersKey); ok {
		s.metrics.MemberCacheLookup(true)
		return clonePeople(people), nil
	}
	s.metrics.MemberCacheLookup(false)

	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	s.members.Set(membersKey, people)
	return clonePeople(people), nil
}

// MembersByName returns every member ordered by name.
func (s *LedgerService) MembersByName(ctx context.Context) ([]core.Person, error) {
	people, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}
	core.SortPeopleByName(people)
	return people, nil
}

func (s *LedgerService) AddMember(ctx context.Context, name string) (core.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Person{}, ErrEmptyName
	}
	p, err := s.store.AddPerson(ctx, name)
	if errors.Is(err, storage.ErrDuplicate) {
		return core.Person{}, fmt.Errorf("%w: %s", ErrDuplicateMember, name)
	}
	if err != nil {
		s.metrics.LedgerOperation("add_member", metrics.OutcomeError)
		return core.Person{}, fmt.Errorf("add member: %w", err)
	}
	s.members.Purge()
	s.metrics.LedgerOperation("add_member", metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "Member added", applog.FieldMemberID, p.ID, applog.FieldMemberName, p.Name)
	return p, nil
}

// RenameMember changes a member's name. Names must stay unique ignoring case.
func (s *LedgerService) RenameMember(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if _, err := s.getPerson(ctx, id); err != nil {
		return err
	}
	people, err := s.Members(ctx)
	if err != nil {
		return err
	}
	for _, p := range people {
		if p.ID != id && strings.EqualFold(p.Name, name) {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, name)
		}
	}

	err = s.store.RenamePerson(ctx, id, name)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrDuplicateMember, name)
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: member %d", ErrNotFound, id)
	case err != nil:
		s.metrics.LedgerOperation("rename_member", metrics.OutcomeError)
		return fmt.Errorf("rename member: %w", err)
	}
	s.members.Purge()
	s.metrics.LedgerOperation("rename_member", metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "Member renamed", applog.FieldMemberID, id, applog.FieldMemberName, name)
	s.publish(ctx, amqp.NewMemberRenamedEvent(id))
	return nil
}

// DeleteMember removes a member who is not referenced by any transaction.
func (s *LedgerService) DeleteMember(ctx context.Context, id int64) error {
	if _, err := s.getPerson(ctx, id); err != nil {
		return err
	}
	inUse, err := s.store.PersonInUse(ctx, id)
	if err != nil {
		return fmt.Errorf("check member usage: %w", err)
	}
	if inUse {
		return ErrMemberInUse
	}
	if err := s.store.DeletePerson(ctx, id); err != nil {
		s.metrics.LedgerOperation("delete_member", metrics.OutcomeError)
		return fmt.Errorf("delete member: %w", err)
	}
	s.members.Purge()
	s.metrics.LedgerOperation("delete_member", metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "Member deleted", applog.FieldMemberID, id)
	return nil
}

// EnsureDefaultMembers seeds names when the ledger has no members and
// returns how many were added.
func (s *LedgerService) EnsureDefaultMembers(ctx context.Context, names []string) (int, error) {
	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}
	if len(people) > 0 {
		return 0, nil
	}
	added := 0
	for _, name := range names {
		if _, err := s.AddMember(ctx, name); err != nil {
			if errors.Is(err, ErrDuplicateMember) || errors.Is(err, ErrEmptyName) {
				continue
			}
			return added, err
		}
		added++
	}
	if added > 0 {
		s.logger.InfoContext(ctx, "Default members seeded", "count", added)
	}
	return added, nil
}

// CreateTransaction validates raw input and records the transaction.
// Validation failures are returned as *core.ValidationError.
func (s *LedgerService) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	people, err := s.Members(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	t, err := core.BuildTransaction(in, people)
	if err != nil {
		s.metrics.LedgerOperation(applog.OpCreate, metrics.OutcomeInvalid)
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		s.metrics.LedgerOperation(applog.OpCreate, metrics.OutcomeError)
		s.structured.LogError(ctx, "Failed to save transaction", err, applog.ComponentStorage, applog.OpCreate, nil)
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.metrics.LedgerOperation(applog.OpCreate, metrics.OutcomeSuccess)
	s.logRecorded(ctx, applog.OpCreate, created)
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCreated, created.ID))
	return created, nil
}

// UpdateTransaction rebuilds transaction id from raw input, replacing its shares.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	if _, err := s.GetTransaction(ctx, id); err != nil {
		return core.Transaction{}, err
	}
	people, err := s.Members(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	t, err := core.BuildTransaction(in, people)
	if err != nil {
		s.metrics.LedgerOperation(applog.OpUpdate, metrics.OutcomeInvalid)
		return core.Transaction{}, err
	}
	t.ID = id

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Transaction{}, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		s.metrics.LedgerOperation(applog.OpUpdate, metrics.OutcomeError)
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.metrics.LedgerOperation(applog.OpUpdate, metrics.OutcomeSuccess)
	s.logRecorded(ctx, applog.OpUpdate, t)
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionUpdated, id))
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	err := s.store.DeleteTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
	}
	if err != nil {
		s.metrics.LedgerOperation(applog.OpDelete, metrics.OutcomeError)
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.metrics.LedgerOperation(applog.OpDelete, metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "Transaction deleted", applog.FieldTransactionID, id)
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionDeleted, id))
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Transaction{}, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns transactions filtered and ordered by q.
func (s *LedgerService) ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return q.Apply(txns), nil
}

// LedgerView is everything derived from one consistent snapshot.
type LedgerView struct {
	// People is ordered by name.
	People       []core.Person
	Transactions []core.Transaction
	Balances     map[int64]core.Money
	Debts        core.DebtMatrix
	Settlements  []core.Settlement
	ByPerson     map[int64]core.PersonSettlements
	PayerStats   []core.PayerStat
}

// Ledger computes balances, debts and settlements from current state.
// Nothing here is cached.
func (s *LedgerService) Ledger(ctx context.Context) (LedgerView, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return LedgerView{}, fmt.Errorf("snapshot ledger: %w", err)
	}
	debts := core.ComputeDebts(snap.People, snap.Transactions)
	settlements := core.Settle(snap.People, debts)

	people := clonePeople(snap.People)
	core.SortPeopleByName(people)

	return LedgerView{
		People:       people,
		Transactions: snap.Transactions,
		Balances:     core.ComputeBalances(snap.People, snap.Transactions),
		Debts:        debts,
		Settlements:  settlements,
		ByPerson:     core.SettlementsByPerson(snap.People, settlements),
		PayerStats:   core.ComputePayerStats(people, snap.Transactions),
	}, nil
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *LedgerService) getPerson(ctx context.Context, id int64) (core.Person, error) {
	p, err := s.store.GetPerson(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Person{}, fmt.Errorf("%w: member %d", ErrNotFound, id)
	}
	if err != nil {
		return core.Person{}, fmt.Errorf("get member: %w", err)
	}
	return p, nil
}

// publish hands the event to the broker. Failures are logged and never
// fail the caller: the store is the source of truth.
func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		s.metrics.EventPublished(string(event.Type), metrics.OutcomeError)
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			applog.FieldError, err,
			applog.FieldEvent, event.Type,
			applog.FieldTransactionID, event.TransactionID)
		return
	}
	s.metrics.EventPublished(string(event.Type), metrics.OutcomeSuccess)
}

func (s *LedgerService) logRecorded(ctx context.Context, op string, t core.Transaction) {
	s.structured.LogTransactionRecorded(ctx, op, t.ID, t.Description, t.Amount.String(), t.Payer.ID, len(t.Shares))
}

func clonePeople(in []core.Person) []core.Person {
	out := make([]core.Person, len(in))
	copy(out, in)
	return out
}
