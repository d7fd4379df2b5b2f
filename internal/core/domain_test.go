package core

import (
	"errors"
	"testing"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-28")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2025-02-28" {
		t.Fatalf("round trip = %s", d)
	}
	for _, bad := range []string{"", "2025-02-30", "28/02/2025", "2025-2-8"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	alice := Person{ID: 1, Name: "Alice"}
	bob := Person{ID: 2, Name: "Bob"}
	good := Transaction{
		Date:        NewDate(2025, 1, 1),
		Description: "groceries",
		Amount:      MustParseMoney("10.00"),
		Payer:       alice,
		Shares: []Share{
			{Person: alice, Amount: MustParseMoney("5.00")},
			{Person: bob, Amount: MustParseMoney("5.00")},
		},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mismatch := good
	mismatch.Shares = []Share{{Person: alice, Amount: MustParseMoney("9.99")}}
	if err := mismatch.Validate(); !errors.Is(err, ErrSharesMismatch) {
		t.Fatalf("expected ErrSharesMismatch, got %v", err)
	}

	dup := good
	dup.Shares = []Share{
		{Person: bob, Amount: MustParseMoney("5.00")},
		{Person: bob, Amount: MustParseMoney("5.00")},
	}
	if err := dup.Validate(); !errors.Is(err, ErrDuplicateShare) {
		t.Fatalf("expected ErrDuplicateShare, got %v", err)
	}

	noPayer := good
	noPayer.Payer = Person{}
	if err := noPayer.Validate(); !errors.Is(err, ErrMissingPayer) {
		t.Fatalf("expected ErrMissingPayer, got %v", err)
	}

	zero := good
	zero.Amount = Zero
	if err := zero.Validate(); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("expected ErrNonPositiveAmount, got %v", err)
	}
}

func TestTransactionParticipants(t *testing.T) {
	txn := Transaction{Shares: []Share{{Person: Person{ID: 3}}, {Person: Person{ID: 1}}}}
	ids := txn.Participants()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 1 {
		t.Fatalf("participants = %v", ids)
	}
	if _, ok := txn.ShareOf(1); !ok {
		t.Fatal("expected share for person 1")
	}
	if _, ok := txn.ShareOf(2); ok {
		t.Fatal("unexpected share for person 2")
	}
}
