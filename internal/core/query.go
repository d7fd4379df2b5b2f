package core

import (
	"sort"
	"strings"
)

// SortKey orders transaction listings. A leading '-' means descending.
type SortKey string

const (
	SortDateAsc    SortKey = "date"
	SortDateDesc   SortKey = "-date"
	SortAmountAsc  SortKey = "amount"
	SortAmountDesc SortKey = "-amount"
	SortPayerAsc   SortKey = "payer"
	SortPayerDesc  SortKey = "-payer"

	DefaultSort = SortDateDesc
)

// ParseSortKey maps a query value to a known key, falling back to DefaultSort.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortDateAsc, SortDateDesc, SortAmountAsc, SortAmountDesc, SortPayerAsc, SortPayerDesc:
		return k
	default:
		return DefaultSort
	}
}

// TransactionQuery selects and orders a listing.
type TransactionQuery struct {
	Sort SortKey
	// MemberID keeps only transactions the member participates in. Zero disables the filter.
	MemberID int64
}

// Apply returns a filtered, sorted copy of txns. Ties keep id order so
// results are stable across calls.
func (q TransactionQuery) Apply(txns []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if q.MemberID != 0 {
			if _, ok := t.ShareOf(q.MemberID); !ok {
				continue
			}
		}
		out = append(out, t)
	}

	key := q.Sort
	if key == "" {
		key = DefaultSort
	}
	less := lessFor(key)
	sort.SliceStable(out, func(i, j int) bool {
		if c := less(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func lessFor(key SortKey) func(a, b Transaction) int {
	desc := strings.HasPrefix(string(key), "-")
	var cmp func(a, b Transaction) int
	switch strings.TrimPrefix(string(key), "-") {
	case "amount":
		cmp = func(a, b Transaction) int { return a.Amount.Cmp(b.Amount) }
	case "payer":
		cmp = func(a, b Transaction) int {
			return strings.Compare(strings.ToLower(a.Payer.Name), strings.ToLower(b.Payer.Name))
		}
	default:
		cmp = func(a, b Transaction) int { return a.Date.Compare(b.Date.Time) }
	}
	if desc {
		return func(a, b Transaction) int { return -cmp(a, b) }
	}
	return cmp
}

// PayerStat summarises what one person has fronted.
type PayerStat struct {
	Person Person
	Count  int
	Volume Money
}

// ComputePayerStats counts transactions and total volume paid per person,
// in the order of people.
func ComputePayerStats(people []Person, txns []Transaction) []PayerStat {
	index := make(map[int64]int, len(people))
	stats := make([]PayerStat, len(people))
	for i, p := range people {
		index[p.ID] = i
		stats[i] = PayerStat{Person: p, Volume: Zero}
	}
	for _, t := range txns {
		i, ok := index[t.Payer.ID]
		if !ok {
			continue
		}
		stats[i].Count++
		stats[i].Volume = stats[i].Volume.Add(t.Amount)
	}
	return stats
}

// SortPeopleByName orders people by name, then id.
func SortPeopleByName(people []Person) {
	sort.SliceStable(people, func(i, j int) bool {
		if people[i].Name != people[j].Name {
			return people[i].Name < people[j].Name
		}
		return people[i].ID < people[j].ID
	})
}
