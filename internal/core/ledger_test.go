package core

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, in TransactionInput) Transaction {
	t.Helper()
	txn, err := BuildTransaction(in, household)
	require.NoError(t, err)
	return txn
}

func TestEndToEndScenario(t *testing.T) {
	txn := mustBuild(t, TransactionInput{
		Description:  "Dinner",
		Date:         "2024-03-10",
		Amount:       "100.00",
		Payer:        "1",
		Participants: []string{"1", "2", "3"},
	})
	txns := []Transaction{txn}

	balances := ComputeBalances(household, txns)
	assert.Equal(t, "66.67", balances[1].String())
	assert.Equal(t, "-33.33", balances[2].String())
	assert.Equal(t, "-33.34", balances[3].String())

	total := Zero
	for _, b := range balances {
		total = total.Add(b)
	}
	assert.True(t, total.IsZero(), "balances sum to %s", total)

	settlements := Settle(household, ComputeDebts(household, txns))
	assert.Equal(t, []string{"Bob->Alice 33.33", "Carol->Alice 33.34"}, describe(settlements))
}

func describe(settlements []Settlement) []string {
	out := make([]string, len(settlements))
	for i, s := range settlements {
		out[i] = s.From.Name + "->" + s.To.Name + " " + s.Amount.String()
	}
	return out
}

func TestComputeBalances_IncludesIdlePeople(t *testing.T) {
	balances := ComputeBalances(household, nil)
	require.Len(t, balances, 3)
	for id, b := range balances {
		assert.True(t, b.IsZero(), "person %d has %s", id, b)
	}
}

func TestComputeDebts_FullyPopulatedWithZeroSelfPairs(t *testing.T) {
	txns := []Transaction{
		mustBuild(t, TransactionInput{Description: "a", Date: "2024-01-01", Amount: "30", Payer: "1", Participants: []string{"1", "2", "3"}}),
		mustBuild(t, TransactionInput{Description: "b", Date: "2024-01-02", Amount: "12", Payer: "2", Participants: []string{"1", "2"}}),
		mustBuild(t, TransactionInput{Description: "c", Date: "2024-01-03", Amount: "9", Payer: "3", Participants: []string{"3"}}),
	}

	debts := ComputeDebts(household, txns)
	require.Len(t, debts, 3)
	for _, a := range household {
		require.Len(t, debts[a.ID], 3)
		assert.True(t, debts[a.ID][a.ID].IsZero(), "self debt for %s", a.Name)
	}

	assert.Equal(t, "10.00", debts.Owes(2, 1).String())
	assert.Equal(t, "10.00", debts.Owes(3, 1).String())
	assert.Equal(t, "6.00", debts.Owes(1, 2).String())
	assert.True(t, debts.Owes(1, 3).IsZero())
	assert.True(t, debts.Owes(99, 1).IsZero())
}

func TestSettle_NetsPairsInOneDirection(t *testing.T) {
	txns := []Transaction{
		mustBuild(t, TransactionInput{Description: "rent", Date: "2024-01-01", Amount: "30", Payer: "1", Participants: []string{"1", "2", "3"}}),
		mustBuild(t, TransactionInput{Description: "gas", Date: "2024-01-02", Amount: "12", Payer: "2", Participants: []string{"1", "2"}}),
		mustBuild(t, TransactionInput{Description: "wifi", Date: "2024-01-03", Amount: "20", Payer: "3", Participants: []string{"1", "3"}}),
	}

	settlements := Settle(household, ComputeDebts(household, txns))

	seen := map[[2]int64]bool{}
	for _, s := range settlements {
		assert.True(t, s.Amount.IsPositive())
		pair := [2]int64{min(s.From.ID, s.To.ID), max(s.From.ID, s.To.ID)}
		assert.False(t, seen[pair], "pair %v settled twice", pair)
		seen[pair] = true
	}

	// Bob and Alice net to 4 in Alice's favour; Alice and Carol cancel out.
	assert.Equal(t, []string{"Bob->Alice 4.00"}, describe(settlements))
}

func TestSettle_CanonicalOrderIndependentOfInput(t *testing.T) {
	txns := []Transaction{
		mustBuild(t, TransactionInput{Description: "x", Date: "2024-01-01", Amount: "9", Payer: "3", Participants: []string{"1", "2", "3"}}),
	}
	reversed := []Person{household[2], household[1], household[0]}

	a := Settle(household, ComputeDebts(household, txns))
	b := Settle(reversed, ComputeDebts(reversed, txns))
	assert.Equal(t, describe(a), describe(b))
	assert.Equal(t, []string{"Alice->Carol 3.00", "Bob->Carol 3.00"}, describe(a))
}

func TestSettlementsByPerson(t *testing.T) {
	settlements := []Settlement{
		{From: household[1], To: household[0], Amount: MustParseMoney("4.00")},
	}
	view := SettlementsByPerson(household, settlements)
	require.Len(t, view, 3)

	assert.Empty(t, view[1].Owes)
	require.Len(t, view[1].Owed, 1)
	assert.Equal(t, household[1], view[1].Owed[0].Person)

	require.Len(t, view[2].Owes, 1)
	assert.Equal(t, household[0], view[2].Owes[0].Person)
	assert.Equal(t, "4.00", view[2].Owes[0].Amount.String())

	assert.Empty(t, view[3].Owes)
	assert.Empty(t, view[3].Owed)
}

func TestLedgerPropertiesOverManyTransactions(t *testing.T) {
	group := []Person{
		{ID: 4, Name: "Dan"},
		{ID: 1, Name: "Alice"},
		{ID: 5, Name: "Eve"},
		{ID: 2, Name: "Bob"},
		{ID: 3, Name: "Carol"},
	}

	var txns []Transaction
	for i := 0; i < 120; i++ {
		payer := group[i%len(group)]
		mask := (i*7)%31 + 1
		var refs []string
		for bit, p := range group {
			if mask&(1<<bit) != 0 {
				refs = append(refs, strconv.FormatInt(p.ID, 10))
			}
		}
		amount := MoneyFromCents(int64(1 + (i*7919)%100000))

		txn, err := BuildTransaction(TransactionInput{
			Description:  "item " + strconv.Itoa(i),
			Date:         "2024-01-01",
			Amount:       amount.String(),
			Payer:        strconv.FormatInt(payer.ID, 10),
			Participants: refs,
		}, group)
		require.NoError(t, err)
		txns = append(txns, txn)

		balances := ComputeBalances(group, txns)
		require.Len(t, balances, len(group))
		total := Zero
		for _, b := range balances {
			total = total.Add(b)
		}
		require.True(t, total.IsZero(), "after %d transactions balances sum to %s", len(txns), total)

		debts := ComputeDebts(group, txns)
		net := make(map[int64]Money, len(group))
		seen := make(map[[2]int64]bool)
		for _, s := range Settle(group, debts) {
			require.True(t, s.Amount.IsPositive(), "settlement %+v", s)
			require.NotEqual(t, s.From.ID, s.To.ID)
			require.False(t, seen[[2]int64{s.To.ID, s.From.ID}], "pair %d/%d settled both ways", s.From.ID, s.To.ID)
			require.False(t, seen[[2]int64{s.From.ID, s.To.ID}], "pair %d->%d settled twice", s.From.ID, s.To.ID)
			seen[[2]int64{s.From.ID, s.To.ID}] = true
			net[s.To.ID] = net[s.To.ID].Add(s.Amount)
			net[s.From.ID] = net[s.From.ID].Sub(s.Amount)
		}
		for _, p := range group {
			require.True(t, debts.Owes(p.ID, p.ID).IsZero())
			require.True(t, net[p.ID].Equal(balances[p.ID]),
				"%s: settlements net %s, balance %s", p.Name, net[p.ID], balances[p.ID])
		}
	}
}
