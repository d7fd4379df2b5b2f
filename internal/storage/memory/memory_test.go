package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"roomies/internal/core"
	"roomies/internal/storage"
)

func txn(payer core.Person, amount string, shares ...core.Person) core.Transaction {
	total := core.MustParseMoney(amount)
	parts, _ := core.Split(total, len(shares))
	t := core.Transaction{
		Date:        core.NewDate(2024, 5, 1),
		Description: "test",
		Amount:      total,
		Payer:       payer,
	}
	for i, p := range shares {
		t.Shares = append(t.Shares, core.Share{Person: p, Amount: parts[i]})
	}
	return t
}

func TestMemoryStorePeople(t *testing.T) {
	ctx := context.Background()
	s := New("Alice", " Bob ", "Alice", "")

	people, err := s.ListPeople(ctx)
	if err != nil || len(people) != 2 {
		t.Fatalf("unexpected people: %v err=%v", people, err)
	}
	if people[1].Name != "Bob" || people[1].ID != 2 {
		t.Fatalf("unexpected second person: %+v", people[1])
	}

	if _, err := s.AddPerson(ctx, "Bob"); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	carol, err := s.AddPerson(ctx, "Carol")
	if err != nil || carol.ID != 3 {
		t.Fatalf("unexpected add: %+v err=%v", carol, err)
	}
	if err := s.RenamePerson(ctx, carol.ID, "Alice"); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected duplicate on rename, got %v", err)
	}
	if err := s.DeletePerson(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreTransactions(t *testing.T) {
	ctx := context.Background()
	s := New("Alice", "Bob")
	alice, _ := s.GetPerson(ctx, 1)
	bob, _ := s.GetPerson(ctx, 2)

	created, err := s.CreateTransaction(ctx, txn(alice, "9.99", alice, bob))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("unexpected id %d", created.ID)
	}

	if inUse, _ := s.PersonInUse(ctx, bob.ID); !inUse {
		t.Fatal("bob should be in use")
	}
	if err := s.DeletePerson(ctx, bob.ID); err == nil {
		t.Fatal("deleting a referenced person should fail")
	}

	// renames show up on stored transactions
	if err := s.RenamePerson(ctx, bob.ID, "Robert"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := s.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Shares[1].Person.Name != "Robert" {
		t.Fatalf("share name not refreshed: %+v", got.Shares[1])
	}

	updated := txn(bob, "4", bob)
	updated.ID = created.ID
	if err := s.UpdateTransaction(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if inUse, _ := s.PersonInUse(ctx, alice.ID); inUse {
		t.Fatal("alice should no longer be in use")
	}

	snap, _ := s.Snapshot(ctx)
	if len(snap.Transactions) != 1 || snap.Transactions[0].Amount.String() != "4.00" {
		t.Fatalf("unexpected snapshot: %+v", snap.Transactions)
	}

	if err := s.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreRejectsUnknownPeople(t *testing.T) {
	ctx := context.Background()
	s := New("Alice")
	alice, _ := s.GetPerson(ctx, 1)

	if _, err := s.CreateTransaction(ctx, txn(alice, "1", core.Person{ID: 9})); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for unknown participant, got %v", err)
	}
	bad := txn(alice, "1", alice)
	bad.Shares[0].Amount = core.MustParseMoney("0.50")
	if _, err := s.CreateTransaction(ctx, bad); !errors.Is(err, core.ErrSharesMismatch) {
		t.Fatalf("expected shares mismatch, got %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	if people, _ := NewFromFile(filepath.Join(dir, "missing.txt")).ListPeople(context.Background()); len(people) != 0 {
		t.Fatalf("expected empty store for missing file, got %v", people)
	}

	path := filepath.Join(dir, "members.txt")
	if err := os.WriteFile(path, []byte("# roommates\nAnn\n\nBen\nAnn\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	people, _ := NewFromFile(path).ListPeople(context.Background())
	if len(people) != 2 || people[0].Name != "Ann" || people[1].Name != "Ben" {
		t.Fatalf("unexpected people: %v", people)
	}
}
