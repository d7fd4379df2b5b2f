package google

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"roomies/internal/core"
	applog "roomies/internal/log"
)

// fakeSheets serves the subset of the Sheets v4 API the exporter uses,
// backed by a single in-memory grid.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]any
	deletes int
	gets    int
}

var rowRange = regexp.MustCompile(`!A(\d+):H(\d+)$`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rq := range req.Requests {
			if d := rq.DeleteDimension; d != nil {
				f.rows = append(f.rows[:d.Range.StartIndex], f.rows[d.Range.EndIndex:]...)
				f.deletes++
			}
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))

	case strings.HasSuffix(path, ":clear"):
		f.rows = nil
		_, _ = w.Write([]byte(`{}`))

	case strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		if r.Method == http.MethodGet {
			f.gets++
			vr := gsheet.ValueRange{Range: rng}
			for _, row := range f.rows {
				vr.Values = append(vr.Values, []any{row[0]})
			}
			_ = json.NewEncoder(w).Encode(vr)
			return
		}
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m := rowRange.FindStringSubmatch(rng)
		if m == nil {
			http.Error(w, "bad range "+rng, http.StatusBadRequest)
			return
		}
		start, _ := strconv.Atoi(m[1])
		for len(f.rows) < start-1+len(vr.Values) {
			f.rows = append(f.rows, []any{""})
		}
		for i, row := range vr.Values {
			f.rows[start-1+i] = row
		}
		_, _ = w.Write([]byte(`{}`))

	default:
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":7,"title":"Transactions"}}]}`))
	}
}

func (f *fakeSheets) column(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for r, row := range f.rows {
		if i < len(row) {
			out[r] = strings.TrimSpace(jsonString(row[i]))
		}
	}
	return out
}

func jsonString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestExporter(t *testing.T) (*Exporter, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Format: applog.FormatText, Output: &buf})
	return NewWithService(svc, "sheet-1", "Transactions", logger), fake
}

func txn(id int64, desc, amount string) core.Transaction {
	alice := core.Person{ID: 1, Name: "Alice"}
	total := core.MustParseMoney(amount)
	return core.Transaction{
		ID:          id,
		Date:        core.NewDate(2024, 6, 1),
		Description: desc,
		Amount:      total,
		Payer:       alice,
		Shares:      []core.Share{{Person: alice, Amount: total}},
	}
}

func TestFindRow(t *testing.T) {
	ids := []string{"ID", "3", "", "12"}
	if got := findRow(ids, 12); got != 4 {
		t.Errorf("findRow(12) = %d, want 4", got)
	}
	if got := findRow(ids, 1); got != 0 {
		t.Errorf("findRow(1) = %d, want 0", got)
	}
}

func TestNew_RequiresSpreadsheetAndCredentials(t *testing.T) {
	logger := applog.New(applog.Config{Output: &bytes.Buffer{}})
	if _, err := New(context.Background(), Config{}, logger); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, logger)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/non/existent.json"}, logger)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestExporter_UpsertWritesHeaderThenRows(t *testing.T) {
	ctx := context.Background()
	e, fake := newTestExporter(t)

	if err := e.Upsert(ctx, txn(1, "Milk", "2.50")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := e.Upsert(ctx, txn(2, "Bread", "3")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := e.Upsert(ctx, txn(1, "Oat milk", "2.75")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ids := fake.column(0)
	if strings.Join(ids, ",") != "ID,1,2" {
		t.Fatalf("unexpected id column: %v", ids)
	}
	if desc := fake.column(2); desc[1] != "Oat milk" {
		t.Fatalf("row 1 not updated in place: %v", desc)
	}
}

func TestExporter_Delete(t *testing.T) {
	ctx := context.Background()
	e, fake := newTestExporter(t)

	for i := int64(1); i <= 3; i++ {
		if err := e.Upsert(ctx, txn(i, "item", "1")); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	if err := e.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := e.Delete(ctx, 42); err != nil {
		t.Fatalf("deleting a missing row should succeed: %v", err)
	}

	if ids := strings.Join(fake.column(0), ","); ids != "ID,1,3" {
		t.Fatalf("unexpected ids after delete: %s", ids)
	}
	if fake.deletes != 1 {
		t.Fatalf("expected one row deletion, got %d", fake.deletes)
	}
}

func TestExporter_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	e, fake := newTestExporter(t)

	if err := e.Upsert(ctx, txn(9, "stale", "1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := e.ReplaceAll(ctx, []core.Transaction{txn(1, "a", "1"), txn(2, "b", "2")}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if ids := strings.Join(fake.column(0), ","); ids != "ID,1,2" {
		t.Fatalf("unexpected ids: %s", ids)
	}
}

func TestExporter_ReplaceAllBatches(t *testing.T) {
	ctx := context.Background()
	e, fake := newTestExporter(t)
	e.batchSize = 2

	var txns []core.Transaction
	for i := int64(1); i <= 5; i++ {
		txns = append(txns, txn(i, "row", "1"))
	}
	if err := e.ReplaceAll(ctx, txns); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if ids := strings.Join(fake.column(0), ","); ids != "ID,1,2,3,4,5" {
		t.Fatalf("unexpected ids: %s", ids)
	}
}
