package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"roomies/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the Store backed by a SQLite file.
type SQLiteRepository struct {
	db            *sql.DB
	queries       *Queries
	schemaVersion uint
}

var _ Store = (*SQLiteRepository)(nil)

// dsn enables foreign keys, WAL journaling and a busy timeout on every
// pooled connection. Write transactions take the lock up front.
func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// readOnlyTx begins a deferred transaction that never takes the write lock.
var readOnlyTx = &sql.TxOptions{ReadOnly: true}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:            db,
		queries:       New(db),
		schemaVersion: version,
	}, nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListPeople(ctx context.Context) ([]core.Person, error) {
	rows, err := r.queries.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	return toPeople(rows), nil
}

func (r *SQLiteRepository) GetPerson(ctx context.Context, id int64) (core.Person, error) {
	row, err := r.queries.GetPerson(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Person{}, fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Person{}, fmt.Errorf("get person %d: %w", id, err)
	}
	return core.Person{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) AddPerson(ctx context.Context, name string) (core.Person, error) {
	row, err := r.queries.CreatePerson(ctx, name)
	if isUniqueViolation(err) {
		return core.Person{}, fmt.Errorf("person %q: %w", name, ErrDuplicate)
	}
	if err != nil {
		return core.Person{}, fmt.Errorf("create person: %w", err)
	}
	return core.Person{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) RenamePerson(ctx context.Context, id int64, name string) error {
	n, err := r.queries.RenamePerson(ctx, id, name)
	if isUniqueViolation(err) {
		return fmt.Errorf("person %q: %w", name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("rename person %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeletePerson(ctx context.Context, id int64) error {
	n, err := r.queries.DeletePerson(ctx, id)
	if err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) PersonInUse(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.CountPersonReferences(ctx, id)
	if err != nil {
		return false, fmt.Errorf("count references of person %d: %w", id, err)
	}
	return n > 0, nil
}

// CreateTransaction inserts the transaction and its shares atomically and
// returns it with the assigned id.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}
	cents, err := t.Amount.Cents()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}
	err = r.inTx(ctx, nil, func(q *Queries) error {
		id, err := q.CreateTransaction(ctx, CreateTransactionParams{
			Date:        t.Date.String(),
			Description: t.Description,
			AmountCents: cents,
			Comment:     t.Comment,
			PayerID:     t.Payer.ID,
		})
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		t.ID = id
		return insertShares(ctx, q, id, t.Shares)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// UpdateTransaction replaces the transaction fields and rebuilds its shares.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	cents, err := t.Amount.Cents()
	if err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	return r.inTx(ctx, nil, func(q *Queries) error {
		n, err := q.UpdateTransaction(ctx, UpdateTransactionParams{
			ID:          t.ID,
			Date:        t.Date.String(),
			Description: t.Description,
			AmountCents: cents,
			Comment:     t.Comment,
			PayerID:     t.Payer.ID,
		})
		if err != nil {
			return fmt.Errorf("update transaction %d: %w", t.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("transaction %d: %w", t.ID, ErrNotFound)
		}
		if err := q.DeleteSharesByTransaction(ctx, t.ID); err != nil {
			return fmt.Errorf("clear shares of transaction %d: %w", t.ID, err)
		}
		return insertShares(ctx, q, t.ID, t.Shares)
	})
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	shares, err := r.queries.ListSharesByTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("list shares of transaction %d: %w", id, err)
	}
	return toTransaction(row, shares)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return loadTransactions(ctx, r.queries)
}

// Snapshot reads people and transactions inside one read-only transaction.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.inTx(ctx, readOnlyTx, func(q *Queries) error {
		rows, err := q.ListPeople(ctx)
		if err != nil {
			return fmt.Errorf("list people: %w", err)
		}
		snap.People = toPeople(rows)
		snap.Transactions, err = loadTransactions(ctx, q)
		return err
	})
	return snap, err
}

func (r *SQLiteRepository) inTx(ctx context.Context, opts *sql.TxOptions, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertShares(ctx context.Context, q *Queries, transactionID int64, shares []core.Share) error {
	for i, s := range shares {
		cents, err := s.Amount.Cents()
		if err != nil {
			return fmt.Errorf("share for person %d: %w", s.Person.ID, err)
		}
		err = q.CreateShare(ctx, CreateShareParams{
			TransactionID: transactionID,
			PersonID:      s.Person.ID,
			Position:      int64(i),
			AmountCents:   cents,
		})
		if err != nil {
			return fmt.Errorf("create share for person %d: %w", s.Person.ID, err)
		}
	}
	return nil
}

func loadTransactions(ctx context.Context, q *Queries) ([]core.Transaction, error) {
	rows, err := q.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	shares, err := q.ListShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	byTxn := make(map[int64][]ShareRow, len(rows))
	for _, s := range shares {
		byTxn[s.TransactionID] = append(byTxn[s.TransactionID], s)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toTransaction(row, byTxn[row.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func toPeople(rows []PersonRow) []core.Person {
	people := make([]core.Person, len(rows))
	for i, row := range rows {
		people[i] = core.Person{ID: row.ID, Name: row.Name}
	}
	return people
}

func toTransaction(row TransactionRow, shares []ShareRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d has invalid date %q: %w", row.ID, row.Date, err)
	}
	t := core.Transaction{
		ID:          row.ID,
		Date:        date,
		Description: row.Description,
		Amount:      core.MoneyFromCents(row.AmountCents),
		Comment:     row.Comment,
		Payer:       core.Person{ID: row.PayerID, Name: row.PayerName},
		Shares:      make([]core.Share, len(shares)),
	}
	for i, s := range shares {
		t.Shares[i] = core.Share{
			Person: core.Person{ID: s.PersonID, Name: s.PersonName},
			Amount: core.MoneyFromCents(s.AmountCents),
		}
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
