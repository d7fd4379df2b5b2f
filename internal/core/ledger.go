package core

import "sort"

// DebtMatrix maps debtor id -> creditor id -> amount the debtor owes.
type DebtMatrix map[int64]map[int64]Money

// Owes returns what debtor owes creditor, zero for unknown pairs.
func (m DebtMatrix) Owes(debtor, creditor int64) Money {
	if row, ok := m[debtor]; ok {
		if v, ok := row[creditor]; ok {
			return v
		}
	}
	return Zero
}

func (m DebtMatrix) add(debtor, creditor int64, amount Money) {
	row, ok := m[debtor]
	if !ok {
		row = make(map[int64]Money)
		m[debtor] = row
	}
	row[creditor] = m.Owes(debtor, creditor).Add(amount)
}

// Settlement is a single directed amount that clears the net debt
// between two people.
type Settlement struct {
	From   Person
	To     Person
	Amount Money
}

// ComputeBalances returns the net balance of every person: what they
// paid minus what they were attributed. Positive means the person is
// owed money overall. People without transactions are present at zero.
func ComputeBalances(people []Person, txns []Transaction) map[int64]Money {
	balances := make(map[int64]Money, len(people))
	for _, p := range people {
		balances[p.ID] = Zero
	}
	for _, t := range txns {
		balances[t.Payer.ID] = balances[t.Payer.ID].Add(t.Amount)
		for _, s := range t.Shares {
			balances[s.Person.ID] = balances[s.Person.ID].Sub(s.Amount)
		}
	}
	return balances
}

// ComputeDebts builds the directed debt matrix. Every ordered pair of
// known people is present, self pairs included. A share held by the
// payer is skipped, so self pairs stay at zero.
func ComputeDebts(people []Person, txns []Transaction) DebtMatrix {
	debts := make(DebtMatrix, len(people))
	for _, a := range people {
		row := make(map[int64]Money, len(people))
		for _, b := range people {
			row[b.ID] = Zero
		}
		debts[a.ID] = row
	}
	for _, t := range txns {
		for _, s := range t.Shares {
			if s.Person.ID == t.Payer.ID {
				continue
			}
			debts.add(s.Person.ID, t.Payer.ID, s.Amount)
		}
	}
	return debts
}

// Settle nets every unordered pair of people down to at most one
// directed settlement. Pairs are visited in ascending person id order.
func Settle(people []Person, debts DebtMatrix) []Settlement {
	ordered := make([]Person, len(people))
	copy(ordered, people)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var out []Settlement
	for i, a := range ordered {
		for _, b := range ordered[i+1:] {
			net := NewMoney(debts.Owes(a.ID, b.ID).Sub(debts.Owes(b.ID, a.ID)).Decimal())
			switch {
			case net.IsPositive():
				out = append(out, Settlement{From: a, To: b, Amount: net})
			case net.IsNegative():
				out = append(out, Settlement{From: b, To: a, Amount: net.Neg()})
			}
		}
	}
	return out
}

// Counterparty is one side of a settlement seen from a single person.
type Counterparty struct {
	Person Person
	Amount Money
}

// PersonSettlements lists who a person owes and who owes them.
type PersonSettlements struct {
	Owes []Counterparty
	Owed []Counterparty
}

// SettlementsByPerson indexes settlements per person. Every known person
// gets an entry, possibly empty.
func SettlementsByPerson(people []Person, settlements []Settlement) map[int64]PersonSettlements {
	out := make(map[int64]PersonSettlements, len(people))
	for _, p := range people {
		out[p.ID] = PersonSettlements{}
	}
	for _, s := range settlements {
		from := out[s.From.ID]
		from.Owes = append(from.Owes, Counterparty{Person: s.To, Amount: s.Amount})
		out[s.From.ID] = from

		to := out[s.To.ID]
		to.Owed = append(to.Owed, Counterparty{Person: s.From, Amount: s.Amount})
		out[s.To.ID] = to
	}
	return out
}
