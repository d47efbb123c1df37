package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"homeledger/internal/core"
	"homeledger/internal/store"
)

// Ensure interface conformance
var (
	_ store.Store    = (*Client)(nil)
	_ store.Appender = (*Client)(nil)
	_ store.Rewriter = (*Client)(nil)
)

// ErrUnreadableRows is returned by a rewrite when the sheet holds rows that
// reads skip; rewriting from the parsed records would drop them.
var ErrUnreadableRows = errors.New("sheet has unreadable rows")

// Config names the spreadsheet and worksheets backing the streams.
type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	SnapshotsSheet    string
	// CategoriesSheet is optional; column A holds one category per row.
	CategoriesSheet string

	// Service account credentials, inline or as a file path. When both are
	// empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
}

// Client stores each stream in one worksheet, one record per row under a
// header row. A stream's version is the sheet's row count including the
// header, so it only moves forward while records are appended.
type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	snapshotsSheet    string
	categoriesSheet   string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	c := &Client{
		svc:               svc,
		spreadsheetID:     strings.TrimSpace(cfg.SpreadsheetID),
		transactionsSheet: strings.TrimSpace(cfg.TransactionsSheet),
		snapshotsSheet:    strings.TrimSpace(cfg.SnapshotsSheet),
		categoriesSheet:   strings.TrimSpace(cfg.CategoriesSheet),
	}
	if c.transactionsSheet == "" {
		c.transactionsSheet = "logs"
	}
	if c.snapshotsSheet == "" {
		c.snapshotsSheet = "assets"
	}
	return c
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	credsFile := strings.TrimSpace(cfg.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentials []byte
	switch {
	case credsJSON != "":
		credentials = []byte(credsJSON)
	case credsFile != "":
		b, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentials = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentials),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) ReadTransactions(ctx context.Context) ([]core.Transaction, store.Version, error) {
	rows, err := c.readRows(ctx, c.transactionsSheet, transactionCols)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for i, row := range rows {
		cols := toStrings(row)
		if isHeader(cols) {
			continue
		}
		t, err := parseTransaction(cols)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable transaction row",
				"sheet", c.transactionsSheet, "row", i+1, "error", err)
			continue
		}
		out = append(out, t)
	}
	return out, store.Version(len(rows)), nil
}

func (c *Client) ReadSnapshots(ctx context.Context) ([]core.AssetSnapshot, store.Version, error) {
	rows, err := c.readRows(ctx, c.snapshotsSheet, snapshotCols)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.AssetSnapshot, 0, len(rows))
	for i, row := range rows {
		cols := toStrings(row)
		if isHeader(cols) {
			continue
		}
		s, err := parseSnapshot(cols)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable snapshot row",
				"sheet", c.snapshotsSheet, "row", i+1, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, store.Version(len(rows)), nil
}

// AppendTransaction inserts one row after the last row of the sheet. The
// Sheets append call is atomic, so concurrent writers never overwrite each
// other.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (store.Version, error) {
	return c.appendRow(ctx, c.transactionsSheet, transactionCols, transactionHeader, transactionRow(t))
}

func (c *Client) AppendSnapshot(ctx context.Context, s core.AssetSnapshot) (store.Version, error) {
	return c.appendRow(ctx, c.snapshotsSheet, snapshotCols, snapshotHeader, snapshotRow(s))
}

// ReplaceTransactions rewrites the whole sheet when its row count still
// matches expect. The check and the rewrite are separate API calls; callers
// that need strict safety should prefer AppendTransaction. A sheet holding
// rows that ReadTransactions skips is never rewritten: ErrUnreadableRows.
func (c *Client) ReplaceTransactions(ctx context.Context, all []core.Transaction, expect store.Version) (store.Version, error) {
	rows := make([][]any, 0, len(all)+1)
	rows = append(rows, transactionHeader)
	for _, t := range all {
		rows = append(rows, transactionRow(t))
	}
	return c.replaceRows(ctx, c.transactionsSheet, transactionCols, rows, expect, func(cols []string) error {
		_, err := parseTransaction(cols)
		return err
	})
}

func (c *Client) ReplaceSnapshots(ctx context.Context, all []core.AssetSnapshot, expect store.Version) (store.Version, error) {
	rows := make([][]any, 0, len(all)+1)
	rows = append(rows, snapshotHeader)
	for _, s := range all {
		rows = append(rows, snapshotRow(s))
	}
	return c.replaceRows(ctx, c.snapshotsSheet, snapshotCols, rows, expect, func(cols []string) error {
		_, err := parseSnapshot(cols)
		return err
	})
}

// ListCategories reads column A of the categories sheet, or returns the
// default list when no sheet is configured.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	if c.categoriesSheet == "" {
		return append([]string(nil), core.DefaultCategories...), nil
	}
	cats, err := c.readCol(ctx, c.categoriesSheet, "A:A")
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	return cats, nil
}

func (c *Client) readRows(ctx context.Context, sheet, cols string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	// Unformatted values keep display formats such as "¥ 1,234" out of
	// amounts; dates stay as the strings the sheet shows.
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, sheet, cols string, header, row []any) (store.Version, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	values := [][]any{row}
	existing, err := c.readRows(ctx, sheet, "A1:A1")
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		values = [][]any{header, row}
	}

	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to append to sheet %s: %w", sheet, err)
	}
	if resp.Updates == nil {
		return 0, fmt.Errorf("append to sheet %s: no update range returned", sheet)
	}
	last, err := lastRow(resp.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	return store.Version(last), nil
}

func (c *Client) replaceRows(ctx context.Context, sheet, cols string, rows [][]any, expect store.Version, parse func([]string) error) (store.Version, error) {
	current, err := c.readRows(ctx, sheet, cols)
	if err != nil {
		return 0, err
	}
	if store.Version(len(current)) != expect {
		return store.Version(len(current)), store.ErrVersionConflict
	}
	for i, row := range current {
		cells := toStrings(row)
		if isHeader(cells) {
			continue
		}
		if err := parse(cells); err != nil {
			return store.Version(len(current)), fmt.Errorf("%w: %s row %d: %v", ErrUnreadableRows, sheet, i+1, err)
		}
	}

	rng := fmt.Sprintf("%s!%s", sheet, cols)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("failed to clear sheet %s: %w", sheet, err)
	}
	start := fmt.Sprintf("%s!A1", sheet)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to update sheet %s: %w", sheet, err)
	}
	return store.Version(len(rows)), nil
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rows, err := c.readRows(ctx, sheetName, col)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") || strings.EqualFold(v, "category") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// lastRow extracts the final row number from an A1 range such as "logs!A5:G5".
func lastRow(rng string) (int, error) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	if i := strings.LastIndex(rng, ":"); i >= 0 {
		rng = rng[i+1:]
	}
	digits := strings.TrimLeftFunc(rng, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("unexpected range %q", rng)
	}
	return n, nil
}
