package http

import (
	"net/http"

	"roomies/internal/core"
)

const msgInvalidPayload = "Request body must be a JSON object."

type apiMember struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type apiShare struct {
	Member apiMember `json:"member"`
	Amount float64   `json:"amount"`
}

type apiTransaction struct {
	ID          int64      `json:"id"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Comment     string     `json:"comment"`
	Payer       apiMember  `json:"payer"`
	Shares      []apiShare `json:"shares"`
}

type apiBalance struct {
	Member  apiMember `json:"member"`
	Balance float64   `json:"balance"`
}

type apiSettlement struct {
	From   apiMember `json:"from"`
	To     apiMember `json:"to"`
	Amount float64   `json:"amount"`
}

type apiBalances struct {
	Balances    []apiBalance    `json:"balances"`
	Settlements []apiSettlement `json:"settlements"`
}

func toAPIMember(p core.Person) apiMember {
	return apiMember{ID: p.ID, Name: p.Name}
}

// serializeTransaction renders amounts as JSON numbers with two-decimal
// values.
func serializeTransaction(t core.Transaction) apiTransaction {
	out := apiTransaction{
		ID:          t.ID,
		Date:        t.Date.String(),
		Description: t.Description,
		Amount:      t.Amount.Float64(),
		Comment:     t.Comment,
		Payer:       toAPIMember(t.Payer),
		Shares:      make([]apiShare, 0, len(t.Shares)),
	}
	for _, sh := range t.Shares {
		out.Shares = append(out.Shares, apiShare{Member: toAPIMember(sh.Person), Amount: sh.Amount.Float64()})
	}
	return out
}

func (s *Server) handleAPIMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.ledger.MembersByName(r.Context())
	if err != nil {
		s.serverError(w, r, "List members failed", err)
		return
	}
	out := make([]apiMember, 0, len(members))
	for _, m := range members {
		out = append(out, toAPIMember(m))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.ledger.ListTransactions(r.Context(), parseListQuery(r.URL.Query()))
	if err != nil {
		s.serverError(w, r, "List transactions failed", err)
		return
	}
	out := make([]apiTransaction, 0, len(txns))
	for _, t := range txns {
		out = append(out, serializeTransaction(t))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleAPICreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := normalizeTransactionPayload(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		BadRequestError(msgInvalidPayload).Write(w)
		return
	}

	t, err := s.ledger.CreateTransaction(r.Context(), in)
	if msg, ok := validationMessage(err); ok {
		BadRequestError(msg).Write(w)
		return
	}
	if err != nil {
		s.serverError(w, r, "Create transaction failed", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(serializeTransaction(t)).Write(w)
}

func (s *Server) handleAPIBalances(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.Ledger(r.Context())
	if err != nil {
		s.serverError(w, r, "Compute ledger failed", err)
		return
	}
	out := apiBalances{
		Balances:    make([]apiBalance, 0, len(view.People)),
		Settlements: make([]apiSettlement, 0, len(view.Settlements)),
	}
	for _, p := range view.People {
		out.Balances = append(out.Balances, apiBalance{Member: toAPIMember(p), Balance: view.Balances[p.ID].Float64()})
	}
	for _, st := range view.Settlements {
		out.Settlements = append(out.Settlements, apiSettlement{
			From:   toAPIMember(st.From),
			To:     toAPIMember(st.To),
			Amount: st.Amount.Float64(),
		})
	}
	NewResponse().JSON(out).Write(w)
}
