package core

import (
	"strconv"
	"strings"
)

// InputSource records which wire shape produced a TransactionInput.
type InputSource string

const (
	SourceForm InputSource = "form"
	SourceJSON InputSource = "json"
)

// TransactionInput is the canonical raw record accepted by BuildTransaction.
// Every field is untrusted text as received from a client.
type TransactionInput struct {
	Description  string
	Date         string
	Amount       string
	Payer        string
	Participants []string
	Comment      string

	Source InputSource
	// PayerField and ParticipantsField name the keys that supplied
	// Payer and Participants, e.g. "payer_id" or "payerId".
	PayerField        string
	ParticipantsField string
}

// User-facing validation messages.
const (
	MsgEmptyDescription   = "Description is required."
	MsgInvalidDate        = "Date must be provided in YYYY-MM-DD format."
	MsgInvalidAmount      = "Amount must be a valid number."
	MsgNonPositiveAmount  = "Amount must be greater than zero."
	MsgMissingPayer       = "Select who paid for this expense."
	MsgUnknownPayer       = "Selected payer does not exist."
	MsgNoParticipants     = "Select at least one participant to split the expense."
	MsgUnknownParticipant = "Some participants are invalid."
)

// BuildTransaction validates raw input against the known people and
// returns an unsaved Transaction. Checks run in a fixed order and the
// first failure is returned as a *ValidationError.
func BuildTransaction(in TransactionInput, known []Person) (Transaction, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return Transaction{}, invalid(ErrEmptyDescription, MsgEmptyDescription)
	}

	date, err := ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return Transaction{}, invalid(ErrInvalidDate, MsgInvalidDate)
	}

	rawAmount := strings.TrimSpace(in.Amount)
	if rawAmount == "" {
		rawAmount = "0"
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return Transaction{}, invalid(ErrInvalidAmount, MsgInvalidAmount)
	}
	if !amount.IsPositive() {
		return Transaction{}, invalid(ErrNonPositiveAmount, MsgNonPositiveAmount)
	}

	people := make(map[int64]Person, len(known))
	for _, p := range known {
		people[p.ID] = p
	}

	payerRef := strings.TrimSpace(in.Payer)
	if payerRef == "" {
		return Transaction{}, invalid(ErrMissingPayer, MsgMissingPayer)
	}
	payer, ok := resolve(payerRef, people)
	if !ok {
		return Transaction{}, invalid(ErrUnknownPayer, MsgUnknownPayer)
	}

	participants, unknown := dedupeRefs(in.Participants, people)
	if len(participants) == 0 && !unknown {
		return Transaction{}, invalid(ErrNoParticipants, MsgNoParticipants)
	}
	if unknown {
		return Transaction{}, invalid(ErrUnknownParticipant, MsgUnknownParticipant)
	}

	comment := strings.TrimSpace(in.Comment)

	amounts, err := Split(amount, len(participants))
	if err != nil {
		return Transaction{}, err
	}
	shares := make([]Share, len(participants))
	for i, p := range participants {
		shares[i] = Share{Person: p, Amount: amounts[i]}
	}

	return Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Comment:     comment,
		Payer:       payer,
		Shares:      shares,
	}, nil
}

func resolve(ref string, people map[int64]Person) (Person, bool) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return Person{}, false
	}
	p, ok := people[id]
	return p, ok
}

// dedupeRefs resolves participant references keeping the first occurrence
// of each person. Blank references are ignored; any other reference that
// does not resolve sets unknown.
func dedupeRefs(refs []string, people map[int64]Person) (out []Person, unknown bool) {
	seen := make(map[int64]struct{}, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			unknown = true
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p, ok := people[id]
		if !ok {
			unknown = true
			continue
		}
		out = append(out, p)
	}
	return out, unknown
}
