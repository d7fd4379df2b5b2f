// Package memory provides an in-process ledger store for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"roomies/internal/core"
	"roomies/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	people []core.Person
	txns   []core.Transaction
	nextP  int64
	nextT  int64
}

var _ storage.Store = (*Store)(nil)

// New returns a store seeded with the given member names.
func New(members ...string) *Store {
	s := &Store{nextP: 1, nextT: 1}
	for _, name := range dedupe(members) {
		s.people = append(s.people, core.Person{ID: s.nextP, Name: name})
		s.nextP++
	}
	return s
}

// NewFromFile seeds members from a newline separated file. Blank lines
// and lines starting with # are skipped; a missing file yields an empty store.
func NewFromFile(path string) *Store {
	return New(readLines(path)...)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) ListPeople(context.Context) ([]core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.people), nil
}

func (s *Store) GetPerson(_ context.Context, id int64) (core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.personIndex(id); i >= 0 {
		return s.people[i], nil
	}
	return core.Person{}, fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
}

func (s *Store) AddPerson(_ context.Context, name string) (core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(name, 0) {
		return core.Person{}, fmt.Errorf("person %q: %w", name, storage.ErrDuplicate)
	}
	p := core.Person{ID: s.nextP, Name: name}
	s.nextP++
	s.people = append(s.people, p)
	return p, nil
}

func (s *Store) RenamePerson(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.personIndex(id)
	if i < 0 {
		return fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
	}
	if s.nameTaken(name, id) {
		return fmt.Errorf("person %q: %w", name, storage.ErrDuplicate)
	}
	s.people[i].Name = name
	return nil
}

func (s *Store) DeletePerson(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.personIndex(id)
	if i < 0 {
		return fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
	}
	if s.inUse(id) {
		return fmt.Errorf("person %d is referenced by transactions", id)
	}
	s.people = slices.Delete(s.people, i, i+1)
	return nil
}

func (s *Store) PersonInUse(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse(id), nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs(t); err != nil {
		return core.Transaction{}, err
	}
	t.ID = s.nextT
	s.nextT++
	t.Shares = slices.Clone(t.Shares)
	s.txns = append(s.txns, t)
	return s.hydrate(t), nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txnIndex(t.ID)
	if i < 0 {
		return fmt.Errorf("transaction %d: %w", t.ID, storage.ErrNotFound)
	}
	if err := s.checkRefs(t); err != nil {
		return err
	}
	t.Shares = slices.Clone(t.Shares)
	s.txns[i] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txnIndex(id)
	if i < 0 {
		return fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	s.txns = slices.Delete(s.txns, i, i+1)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txnIndex(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	return s.hydrate(s.txns[i]), nil
}

func (s *Store) ListTransactions(context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(), nil
}

func (s *Store) Snapshot(context.Context) (storage.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.Snapshot{
		People:       slices.Clone(s.people),
		Transactions: s.listLocked(),
	}, nil
}

func (s *Store) listLocked() []core.Transaction {
	out := make([]core.Transaction, len(s.txns))
	for i, t := range s.txns {
		out[i] = s.hydrate(t)
	}
	return out
}

// hydrate returns a copy of t carrying current member names.
func (s *Store) hydrate(t core.Transaction) core.Transaction {
	names := make(map[int64]string, len(s.people))
	for _, p := range s.people {
		names[p.ID] = p.Name
	}
	t.Payer.Name = names[t.Payer.ID]
	shares := make([]core.Share, len(t.Shares))
	for i, sh := range t.Shares {
		sh.Person.Name = names[sh.Person.ID]
		shares[i] = sh
	}
	t.Shares = shares
	return t
}

func (s *Store) checkRefs(t core.Transaction) error {
	if s.personIndex(t.Payer.ID) < 0 {
		return fmt.Errorf("payer %d: %w", t.Payer.ID, storage.ErrNotFound)
	}
	for _, sh := range t.Shares {
		if s.personIndex(sh.Person.ID) < 0 {
			return fmt.Errorf("participant %d: %w", sh.Person.ID, storage.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) inUse(id int64) bool {
	for _, t := range s.txns {
		if t.Payer.ID == id {
			return true
		}
		if _, ok := t.ShareOf(id); ok {
			return true
		}
	}
	return false
}

func (s *Store) nameTaken(name string, except int64) bool {
	for _, p := range s.people {
		if p.ID != except && p.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) personIndex(id int64) int {
	return slices.IndexFunc(s.people, func(p core.Person) bool { return p.ID == id })
}

func (s *Store) txnIndex(id int64) int {
	return slices.IndexFunc(s.txns, func(t core.Transaction) bool { return t.ID == id })
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe trims names and drops blanks and repeats, preserving input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
