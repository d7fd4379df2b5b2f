package backend

import (
	"context"

	"roomies/internal/amqp"
	"roomies/internal/core"
	"roomies/internal/services"
	"roomies/internal/sheets"
	"roomies/internal/storage"
)

// Ledger is everything the web layer needs from the service.
type Ledger interface {
	Members(ctx context.Context) ([]core.Person, error)
	MembersByName(ctx context.Context) ([]core.Person, error)
	AddMember(ctx context.Context, name string) (core.Person, error)
	RenameMember(ctx context.Context, id int64, name string) error
	DeleteMember(ctx context.Context, id int64) error

	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error)
	Ledger(ctx context.Context) (services.LedgerView, error)

	Ping(ctx context.Context) error
}

var _ Ledger = (*services.LedgerService)(nil)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired service and the resources behind it.
type BackendResult struct {
	Service *services.LedgerService
	Store   storage.Store
	// Publisher is nil when no broker is configured or reachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
