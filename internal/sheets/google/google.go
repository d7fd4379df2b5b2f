package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"roomies/internal/core"
	applog "roomies/internal/log"
	ports "roomies/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the target sheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	// BatchSize bounds the rows sent per update during ReplaceAll.
	BatchSize int
}

// Exporter writes one row per transaction into a Google Sheet, column A
// holding the transaction id.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	batchSize     int
	logger        *applog.Logger

	mu      sync.Mutex
	sheetID *int64
}

var _ ports.TransactionExporter = (*Exporter)(nil)

const defaultBatchSize = 50

// New creates an Exporter authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	e := NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger)
	if cfg.BatchSize > 0 {
		e.batchSize = cfg.BatchSize
	}
	return e, nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *applog.Logger) *Exporter {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Transactions"
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		batchSize:     defaultBatchSize,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	logger.WithComponent(applog.ComponentSheets).InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON))

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and bounded timeouts for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// Upsert overwrites the row whose column A equals t.ID, or appends a new
// row after the last used one.
func (e *Exporter) Upsert(ctx context.Context, t core.Transaction) error {
	if t.ID <= 0 {
		return errors.New("transaction without id")
	}
	ids, err := e.readIDs(ctx)
	if err != nil {
		return err
	}

	row := findRow(ids, t.ID)
	if row == 0 {
		if len(ids) == 0 {
			if err := e.writeRows(ctx, 1, [][]any{ports.Header}); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			ids = append(ids, "ID")
		}
		row = len(ids) + 1
	}

	if err := e.writeRows(ctx, row, [][]any{ports.Row(t)}); err != nil {
		return fmt.Errorf("write transaction %d: %w", t.ID, err)
	}
	e.logger.DebugContext(ctx, "Transaction row written", applog.FieldTransactionID, t.ID, "row", row)
	return nil
}

// Delete removes the row holding id, shifting later rows up.
func (e *Exporter) Delete(ctx context.Context, id int64) error {
	ids, err := e.readIDs(ctx)
	if err != nil {
		return err
	}
	row := findRow(ids, id)
	if row == 0 {
		return nil
	}

	sheetID, err := e.resolveSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// the first tab usually has id 0
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d for transaction %d: %w", row, id, err)
	}
	e.logger.DebugContext(ctx, "Transaction row deleted", applog.FieldTransactionID, id, "row", row)
	return nil
}

// ReplaceAll clears the sheet and writes the header followed by txns.
func (e *Exporter) ReplaceAll(ctx context.Context, txns []core.Transaction) error {
	clearRange := fmt.Sprintf("%s!A:H", e.sheetName)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := make([][]any, 0, len(txns)+1)
	rows = append(rows, ports.Header)
	for _, t := range txns {
		rows = append(rows, ports.Row(t))
	}
	for start := 0; start < len(rows); start += e.batchSize {
		end := min(start+e.batchSize, len(rows))
		if err := e.writeRows(ctx, start+1, rows[start:end]); err != nil {
			return fmt.Errorf("write export rows %d-%d: %w", start+1, end, err)
		}
	}
	e.logger.InfoContext(ctx, "Sheet rewritten", "rows", len(txns), "sheet", e.sheetName)
	return nil
}

func (e *Exporter) readIDs(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", e.sheetName)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

func (e *Exporter) writeRows(ctx context.Context, firstRow int, rows [][]any) error {
	rng := fmt.Sprintf("%s!A%d:H%d", e.sheetName, firstRow, firstRow+len(rows)-1)
	vr := &gsheet.ValueRange{Values: rows}
	_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

// resolveSheetID looks up the numeric id of the sheet tab once.
func (e *Exporter) resolveSheetID(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sheetID != nil {
		return *e.sheetID, nil
	}
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == e.sheetName {
			id := s.Properties.SheetId
			e.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", e.sheetName)
}

// findRow returns the 1-based row whose id cell equals id, or 0.
func findRow(ids []string, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, v := range ids {
		if v == want {
			return i + 1
		}
	}
	return 0
}
