package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type PersonRow struct {
	ID   int64
	Name string
}

type TransactionRow struct {
	ID          int64
	Date        string
	Description string
	AmountCents int64
	Comment     string
	PayerID     int64
	PayerName   string
}

type ShareRow struct {
	TransactionID int64
	PersonID      int64
	PersonName    string
	AmountCents   int64
}

type CreateTransactionParams struct {
	Date        string
	Description string
	AmountCents int64
	Comment     string
	PayerID     int64
}

type UpdateTransactionParams struct {
	ID          int64
	Date        string
	Description string
	AmountCents int64
	Comment     string
	PayerID     int64
}

type CreateShareParams struct {
	TransactionID int64
	PersonID      int64
	Position      int64
	AmountCents   int64
}

const listPeople = `SELECT id, name FROM people ORDER BY id`

func (q *Queries) ListPeople(ctx context.Context) ([]PersonRow, error) {
	rows, err := q.db.QueryContext(ctx, listPeople)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PersonRow
	for rows.Next() {
		var i PersonRow
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getPerson = `SELECT id, name FROM people WHERE id = ?`

func (q *Queries) GetPerson(ctx context.Context, id int64) (PersonRow, error) {
	var i PersonRow
	err := q.db.QueryRowContext(ctx, getPerson, id).Scan(&i.ID, &i.Name)
	return i, err
}

const createPerson = `INSERT INTO people (name) VALUES (?) RETURNING id, name`

func (q *Queries) CreatePerson(ctx context.Context, name string) (PersonRow, error) {
	var i PersonRow
	err := q.db.QueryRowContext(ctx, createPerson, name).Scan(&i.ID, &i.Name)
	return i, err
}

const renamePerson = `UPDATE people SET name = ? WHERE id = ?`

func (q *Queries) RenamePerson(ctx context.Context, id int64, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, renamePerson, name, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deletePerson = `DELETE FROM people WHERE id = ?`

func (q *Queries) DeletePerson(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePerson, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countPersonReferences = `
SELECT
    (SELECT COUNT(*) FROM transactions WHERE payer_id = ?1) +
    (SELECT COUNT(*) FROM transaction_shares WHERE person_id = ?1)`

func (q *Queries) CountPersonReferences(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countPersonReferences, id).Scan(&n)
	return n, err
}

const createTransaction = `
INSERT INTO transactions (date, description, amount_cents, comment, payer_id)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createTransaction,
		arg.Date, arg.Description, arg.AmountCents, arg.Comment, arg.PayerID,
	).Scan(&id)
	return id, err
}

const updateTransaction = `
UPDATE transactions
SET date = ?, description = ?, amount_cents = ?, comment = ?, payer_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Date, arg.Description, arg.AmountCents, arg.Comment, arg.PayerID, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const transactionColumns = `
SELECT t.id, t.date, t.description, t.amount_cents, t.comment, t.payer_id, p.name
FROM transactions t
JOIN people p ON p.id = t.payer_id`

const getTransaction = transactionColumns + ` WHERE t.id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	var i TransactionRow
	err := q.db.QueryRowContext(ctx, getTransaction, id).Scan(
		&i.ID, &i.Date, &i.Description, &i.AmountCents, &i.Comment, &i.PayerID, &i.PayerName,
	)
	return i, err
}

const listTransactions = transactionColumns + ` ORDER BY t.id`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(&i.ID, &i.Date, &i.Description, &i.AmountCents, &i.Comment, &i.PayerID, &i.PayerName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const shareColumns = `
SELECT s.transaction_id, s.person_id, p.name, s.amount_cents
FROM transaction_shares s
JOIN people p ON p.id = s.person_id`

const listShares = shareColumns + ` ORDER BY s.transaction_id, s.position`

func (q *Queries) ListShares(ctx context.Context) ([]ShareRow, error) {
	return q.queryShares(ctx, listShares)
}

const listSharesByTransaction = shareColumns + ` WHERE s.transaction_id = ? ORDER BY s.position`

func (q *Queries) ListSharesByTransaction(ctx context.Context, transactionID int64) ([]ShareRow, error) {
	return q.queryShares(ctx, listSharesByTransaction, transactionID)
}

func (q *Queries) queryShares(ctx context.Context, query string, args ...interface{}) ([]ShareRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ShareRow
	for rows.Next() {
		var i ShareRow
		if err := rows.Scan(&i.TransactionID, &i.PersonID, &i.PersonName, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createShare = `
INSERT INTO transaction_shares (transaction_id, person_id, position, amount_cents)
VALUES (?, ?, ?, ?)`

func (q *Queries) CreateShare(ctx context.Context, arg CreateShareParams) error {
	_, err := q.db.ExecContext(ctx, createShare, arg.TransactionID, arg.PersonID, arg.Position, arg.AmountCents)
	return err
}

const deleteSharesByTransaction = `DELETE FROM transaction_shares WHERE transaction_id = ?`

func (q *Queries) DeleteSharesByTransaction(ctx context.Context, transactionID int64) error {
	_, err := q.db.ExecContext(ctx, deleteSharesByTransaction, transactionID)
	return err
}
