// Package storage persists household members and their transactions.
package storage

import (
	"context"
	"errors"

	"roomies/internal/core"
)

var (
	// ErrNotFound is returned when a member or transaction id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a member name is already taken.
	ErrDuplicate = errors.New("duplicate")
)

// Snapshot is a consistent view of the whole ledger.
type Snapshot struct {
	People       []core.Person
	Transactions []core.Transaction
}

// PeopleStore manages household members.
type PeopleStore interface {
	ListPeople(ctx context.Context) ([]core.Person, error)
	GetPerson(ctx context.Context, id int64) (core.Person, error)
	AddPerson(ctx context.Context, name string) (core.Person, error)
	RenamePerson(ctx context.Context, id int64, name string) error
	DeletePerson(ctx context.Context, id int64) error
	// PersonInUse reports whether the person paid for or shares any transaction.
	PersonInUse(ctx context.Context, id int64) (bool, error)
}

// TransactionStore manages ledger transactions. Shares are always written
// together with their transaction.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
}

// Store is the full persistence surface used by the ledger service.
type Store interface {
	PeopleStore
	TransactionStore
	Snapshot(ctx context.Context) (Snapshot, error)
	Ping(ctx context.Context) error
	Close() error
}
