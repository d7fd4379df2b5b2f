package http

import (
	"errors"
	"net/http"
	"strconv"

	"roomies/internal/core"
	applog "roomies/internal/log"
	"roomies/internal/services"
)

// Flash messages shown after transaction changes.
const (
	msgTransactionRecorded = "Transaction recorded successfully."
	msgTransactionUpdated  = "Transaction updated successfully."
	msgTransactionDeleted  = "Transaction deleted successfully."
	msgInvalidForm         = "Invalid form submission."
)

type pageData struct {
	Title    string
	Active   string
	Flashes  []Flash
	Currency string
}

func (s *Server) newPage(w http.ResponseWriter, r *http.Request, title, active string) pageData {
	return pageData{
		Title:    title,
		Active:   active,
		Flashes:  popFlashes(w, r),
		Currency: s.currency,
	}
}

// transactionForm holds the values shown in the create and edit forms.
type transactionForm struct {
	Description  string
	Date         string
	Amount       string
	Comment      string
	PayerID      int64
	Participants map[int64]bool
}

func formFromInput(in core.TransactionInput) transactionForm {
	f := transactionForm{
		Description:  in.Description,
		Date:         in.Date,
		Amount:       in.Amount,
		Comment:      in.Comment,
		Participants: make(map[int64]bool, len(in.Participants)),
	}
	f.PayerID, _ = strconv.ParseInt(in.Payer, 10, 64)
	for _, ref := range in.Participants {
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			f.Participants[id] = true
		}
	}
	return f
}

func formFromTransaction(t core.Transaction) transactionForm {
	f := transactionForm{
		Description:  t.Description,
		Date:         t.Date.String(),
		Amount:       t.Amount.String(),
		Comment:      t.Comment,
		PayerID:      t.Payer.ID,
		Participants: make(map[int64]bool, len(t.Shares)),
	}
	for _, sh := range t.Shares {
		f.Participants[sh.Person.ID] = true
	}
	return f
}

type transactionFormPage struct {
	pageData
	Members     []core.Person
	Form        transactionForm
	Transaction core.Transaction
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	members, err := s.ledger.MembersByName(r.Context())
	if err != nil {
		s.serverError(w, r, "List members failed", err)
		return
	}

	form := transactionForm{
		Date:         s.now().Format(core.DateLayout),
		Participants: make(map[int64]bool, len(members)),
	}
	for _, m := range members {
		form.Participants[m.ID] = true
	}

	s.render(w, r, http.StatusOK, "index.html", transactionFormPage{
		pageData: s.newPage(w, r, "Record expense", "index"),
		Members:  members,
		Form:     form,
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderTransactionForm(w, r, http.StatusBadRequest, "index.html", core.Transaction{}, transactionForm{}, msgInvalidForm)
		return
	}
	in := formTransactionInput(r.PostForm)

	_, err := s.ledger.CreateTransaction(r.Context(), in)
	if msg, ok := validationMessage(err); ok {
		s.renderTransactionForm(w, r, http.StatusUnprocessableEntity, "index.html", core.Transaction{}, formFromInput(in), msg)
		return
	}
	if err != nil {
		s.serverError(w, r, "Create transaction failed", err)
		return
	}
	RedirectWith("/transactions", FlashSuccess, msgTransactionRecorded).Write(w)
}

type balanceRow struct {
	Person  core.Person
	Balance core.Money
	Owes    []core.Counterparty
	Owed    []core.Counterparty
}

func balanceRows(view services.LedgerView) []balanceRow {
	rows := make([]balanceRow, 0, len(view.People))
	for _, p := range view.People {
		ps := view.ByPerson[p.ID]
		rows = append(rows, balanceRow{
			Person:  p,
			Balance: view.Balances[p.ID],
			Owes:    ps.Owes,
			Owed:    ps.Owed,
		})
	}
	return rows
}

type sortOption struct {
	Value string
	Label string
}

var sortOptions = []sortOption{
	{string(core.SortDateDesc), "Newest first"},
	{string(core.SortDateAsc), "Oldest first"},
	{string(core.SortAmountDesc), "Largest amount"},
	{string(core.SortAmountAsc), "Smallest amount"},
	{string(core.SortPayerAsc), "Payer A-Z"},
	{string(core.SortPayerDesc), "Payer Z-A"},
}

type transactionsPage struct {
	pageData
	Transactions []core.Transaction
	Members      []core.Person
	Balances     []balanceRow
	Sort         string
	MemberID     int64
	SortOptions  []sortOption
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := parseListQuery(r.URL.Query())
	txns, err := s.ledger.ListTransactions(r.Context(), q)
	if err != nil {
		s.serverError(w, r, "List transactions failed", err)
		return
	}
	view, err := s.ledger.Ledger(r.Context())
	if err != nil {
		s.serverError(w, r, "Compute ledger failed", err)
		return
	}

	s.render(w, r, http.StatusOK, "transactions.html", transactionsPage{
		pageData:     s.newPage(w, r, "Transactions", "transactions"),
		Transactions: txns,
		Members:      view.People,
		Balances:     balanceRows(view),
		Sort:         string(q.Sort),
		MemberID:     q.MemberID,
		SortOptions:  sortOptions,
	})
}

func (s *Server) handleEditTransactionForm(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTransaction(w, r)
	if !ok {
		return
	}
	members, err := s.ledger.MembersByName(r.Context())
	if err != nil {
		s.serverError(w, r, "List members failed", err)
		return
	}
	s.render(w, r, http.StatusOK, "edit_transaction.html", transactionFormPage{
		pageData:    s.newPage(w, r, "Edit transaction", "transactions"),
		Members:     members,
		Form:        formFromTransaction(t),
		Transaction: t,
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTransaction(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderTransactionForm(w, r, http.StatusBadRequest, "edit_transaction.html", t, formFromTransaction(t), msgInvalidForm)
		return
	}
	in := formTransactionInput(r.PostForm)

	_, err := s.ledger.UpdateTransaction(r.Context(), t.ID, in)
	if msg, ok := validationMessage(err); ok {
		s.renderTransactionForm(w, r, http.StatusUnprocessableEntity, "edit_transaction.html", t, formFromInput(in), msg)
		return
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		s.serverError(w, r, "Update transaction failed", err)
	default:
		RedirectWith("/transactions", FlashSuccess, msgTransactionUpdated).Write(w)
	}
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	err := s.ledger.DeleteTransaction(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		s.serverError(w, r, "Delete transaction failed", err)
	default:
		RedirectWith("/transactions", FlashSuccess, msgTransactionDeleted).Write(w)
	}
}

// renderTransactionForm re-renders the create or edit form with the
// submitted values and an error flash.
func (s *Server) renderTransactionForm(w http.ResponseWriter, r *http.Request, status int, page string, t core.Transaction, form transactionForm, message string) {
	members, err := s.ledger.MembersByName(r.Context())
	if err != nil {
		s.serverError(w, r, "List members failed", err)
		return
	}
	title, active := "Record expense", "index"
	if page == "edit_transaction.html" {
		title, active = "Edit transaction", "transactions"
	}
	data := transactionFormPage{
		pageData:    s.newPage(w, r, title, active),
		Members:     members,
		Form:        form,
		Transaction: t,
	}
	data.Flashes = append(data.Flashes, Flash{Kind: FlashDanger, Message: message})
	s.render(w, r, status, page, data)
}

func (s *Server) lookupTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, bool) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return core.Transaction{}, false
	}
	t, err := s.ledger.GetTransaction(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		http.NotFound(w, r)
		return core.Transaction{}, false
	}
	if err != nil {
		s.serverError(w, r, "Load transaction failed", err)
		return core.Transaction{}, false
	}
	return t, true
}

type balancesPage struct {
	pageData
	Rows []balanceRow
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.Ledger(r.Context())
	if err != nil {
		s.serverError(w, r, "Compute ledger failed", err)
		return
	}
	s.render(w, r, http.StatusOK, "balances.html", balancesPage{
		pageData: s.newPage(w, r, "Balances", "balances"),
		Rows:     balanceRows(view),
	})
}

type diagramsPage struct {
	pageData
	Count  donutChart
	Volume donutChart
}

func (s *Server) handleDiagrams(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.Ledger(r.Context())
	if err != nil {
		s.serverError(w, r, "Compute ledger failed", err)
		return
	}
	count, volume := s.payerCharts(view.PayerStats)
	s.render(w, r, http.StatusOK, "diagrams.html", diagramsPage{
		pageData: s.newPage(w, r, "Diagrams", "diagrams"),
		Count:    count,
		Volume:   volume,
	})
}

// validationMessage returns the user-facing text of a validation failure.
func validationMessage(err error) (string, bool) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		applog.FieldError, err,
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	if isAPIRequest(r) {
		InternalServerError("Internal server error").Write(w)
		return
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
