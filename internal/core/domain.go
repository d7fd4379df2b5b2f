package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on every surface.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day in UTC, rendered as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	// Person is a member of the household.
	Person struct {
		ID   int64
		Name string
	}

	// Share is the part of a transaction attributed to one participant.
	Share struct {
		Person Person
		Amount Money
	}

	// Transaction is one expense fronted by Payer and split across Shares.
	Transaction struct {
		ID          int64
		Date        Date
		Description string
		Amount      Money
		Comment     string
		Payer       Person
		Shares      []Share
	}
)

var (
	ErrSharesMismatch = errors.New("shares do not sum to transaction amount")
	ErrDuplicateShare = errors.New("duplicate share for the same person")
	ErrNegativeShare  = errors.New("negative share amount")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String returns the ISO form of the date.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// ShareOf returns the share held by the given person, if any.
func (t Transaction) ShareOf(personID int64) (Share, bool) {
	for _, s := range t.Shares {
		if s.Person.ID == personID {
			return s, true
		}
	}
	return Share{}, false
}

// Participants returns the ids of the share holders in share order.
func (t Transaction) Participants() []int64 {
	ids := make([]int64, len(t.Shares))
	for i, s := range t.Shares {
		ids[i] = s.Person.ID
	}
	return ids
}

// Validate checks the structural invariants a stored transaction must hold.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if t.Payer.ID == 0 {
		return ErrMissingPayer
	}
	if len(t.Shares) == 0 {
		return ErrNoParticipants
	}

	seen := make(map[int64]struct{}, len(t.Shares))
	sum := Zero
	for _, s := range t.Shares {
		if _, dup := seen[s.Person.ID]; dup {
			return fmt.Errorf("%w: person %d", ErrDuplicateShare, s.Person.ID)
		}
		seen[s.Person.ID] = struct{}{}
		if s.Amount.IsNegative() {
			return ErrNegativeShare
		}
		sum = sum.Add(s.Amount)
	}
	if !sum.Equal(t.Amount) {
		return fmt.Errorf("%w: %s != %s", ErrSharesMismatch, sum, t.Amount)
	}
	return nil
}
