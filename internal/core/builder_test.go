package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var household = []Person{
	{ID: 1, Name: "Alice"},
	{ID: 2, Name: "Bob"},
	{ID: 3, Name: "Carol"},
}

func validInput() TransactionInput {
	return TransactionInput{
		Description:  "  Groceries ",
		Date:         "2024-05-01",
		Amount:       "100.00",
		Payer:        "1",
		Participants: []string{"1", "2", "3"},
		Comment:      "  weekly shop  ",
		Source:       SourceForm,
	}
}

func TestBuildTransaction_Success(t *testing.T) {
	txn, err := BuildTransaction(validInput(), household)
	require.NoError(t, err)

	assert.Equal(t, "Groceries", txn.Description)
	assert.Equal(t, "weekly shop", txn.Comment)
	assert.Equal(t, "2024-05-01", txn.Date.String())
	assert.Equal(t, "100.00", txn.Amount.String())
	assert.Equal(t, household[0], txn.Payer)
	require.Len(t, txn.Shares, 3)

	want := []string{"33.33", "33.33", "33.34"}
	for i, s := range txn.Shares {
		assert.Equal(t, household[i], s.Person)
		assert.Equal(t, want[i], s.Amount.String())
	}
	assert.NoError(t, txn.Validate())
}

func TestBuildTransaction_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *TransactionInput)
		kind    error
		message string
	}{
		{
			name:    "blank description wins over bad date",
			mutate:  func(in *TransactionInput) { in.Description = "   "; in.Date = "nope" },
			kind:    ErrEmptyDescription,
			message: MsgEmptyDescription,
		},
		{
			name:    "bad date wins over bad amount",
			mutate:  func(in *TransactionInput) { in.Date = "01/05/2024"; in.Amount = "x" },
			kind:    ErrInvalidDate,
			message: MsgInvalidDate,
		},
		{
			name:    "unparseable amount",
			mutate:  func(in *TransactionInput) { in.Amount = "12.3.4" },
			kind:    ErrInvalidAmount,
			message: MsgInvalidAmount,
		},
		{
			name:    "exponent notation amount",
			mutate:  func(in *TransactionInput) { in.Amount = "1e5" },
			kind:    ErrInvalidAmount,
			message: MsgInvalidAmount,
		},
		{
			name:    "huge negative exponent amount",
			mutate:  func(in *TransactionInput) { in.Amount = "1e-10000000" },
			kind:    ErrInvalidAmount,
			message: MsgInvalidAmount,
		},
		{
			name:    "amount above the maximum",
			mutate:  func(in *TransactionInput) { in.Amount = "184467440737095517.16" },
			kind:    ErrInvalidAmount,
			message: MsgInvalidAmount,
		},
		{
			name:    "empty amount is zero",
			mutate:  func(in *TransactionInput) { in.Amount = "" },
			kind:    ErrNonPositiveAmount,
			message: MsgNonPositiveAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(in *TransactionInput) { in.Amount = "-5" },
			kind:    ErrNonPositiveAmount,
			message: MsgNonPositiveAmount,
		},
		{
			name:    "amount rounding to zero",
			mutate:  func(in *TransactionInput) { in.Amount = "0.004" },
			kind:    ErrNonPositiveAmount,
			message: MsgNonPositiveAmount,
		},
		{
			name:    "missing payer",
			mutate:  func(in *TransactionInput) { in.Payer = "" },
			kind:    ErrMissingPayer,
			message: MsgMissingPayer,
		},
		{
			name:    "unknown payer",
			mutate:  func(in *TransactionInput) { in.Payer = "42" },
			kind:    ErrUnknownPayer,
			message: MsgUnknownPayer,
		},
		{
			name:    "non numeric payer",
			mutate:  func(in *TransactionInput) { in.Payer = "alice" },
			kind:    ErrUnknownPayer,
			message: MsgUnknownPayer,
		},
		{
			name:    "no participants",
			mutate:  func(in *TransactionInput) { in.Participants = nil },
			kind:    ErrNoParticipants,
			message: MsgNoParticipants,
		},
		{
			name:    "unknown participant with valid payer",
			mutate:  func(in *TransactionInput) { in.Participants = []string{"1", "99"} },
			kind:    ErrUnknownParticipant,
			message: MsgUnknownParticipant,
		},
		{
			name:    "non numeric participant",
			mutate:  func(in *TransactionInput) { in.Participants = []string{"bob"} },
			kind:    ErrUnknownParticipant,
			message: MsgUnknownParticipant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := BuildTransaction(in, household)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v, want kind %v", err, tt.kind)
			assert.Equal(t, tt.message, err.Error())
			assert.True(t, IsValidation(err))
		})
	}
}

func TestBuildTransaction_CommaDecimal(t *testing.T) {
	in := validInput()
	in.Amount = "12,50"
	in.Participants = []string{"2"}

	txn, err := BuildTransaction(in, household)
	require.NoError(t, err)
	assert.Equal(t, "12.50", txn.Amount.String())
	require.Len(t, txn.Shares, 1)
	assert.Equal(t, "12.50", txn.Shares[0].Amount.String())
}

func TestBuildTransaction_DedupesParticipantsInOrder(t *testing.T) {
	in := validInput()
	in.Amount = "10"
	in.Participants = []string{"3", "1", "3", " 1 ", "2"}

	txn, err := BuildTransaction(in, household)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, txn.Participants())
	assert.Equal(t, "3.34", txn.Shares[2].Amount.String())
}

func TestBuildTransaction_PayerNotParticipant(t *testing.T) {
	in := validInput()
	in.Participants = []string{"2", "3"}

	txn, err := BuildTransaction(in, household)
	require.NoError(t, err)
	_, ok := txn.ShareOf(1)
	assert.False(t, ok)
	assert.Equal(t, "50.00", txn.Shares[0].Amount.String())
}
