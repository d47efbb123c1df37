package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"homeledger/internal/core"
	"homeledger/internal/store"
)

// fakeSheets emulates the subset of the Sheets values API the client uses.
// Ranges are resolved to whole sheets; "A1:A1" returns only the first row.
type fakeSheets struct {
	mu     sync.Mutex
	sheets map[string][][]any
	reads  []string // valueRenderOption of every GET
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		return
	}
	action := ""
	for _, suffix := range []string{":append", ":clear"} {
		if strings.HasSuffix(rng, suffix) {
			action = suffix
			rng = strings.TrimSuffix(rng, suffix)
		}
	}
	sheet, cells, _ := strings.Cut(rng, "!")

	switch {
	case r.Method == http.MethodGet:
		f.reads = append(f.reads, r.URL.Query().Get("valueRenderOption"))
		rows := f.sheets[sheet]
		if cells == "A1:A1" && len(rows) > 0 {
			rows = rows[:1]
		}
		writeJSON(w, map[string]any{"range": rng, "majorDimension": "ROWS", "values": rows})
	case action == ":append":
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		start := len(f.sheets[sheet]) + 1
		f.sheets[sheet] = append(f.sheets[sheet], vr.Values...)
		end := len(f.sheets[sheet])
		writeJSON(w, map[string]any{
			"spreadsheetId": "test",
			"updates":       map[string]any{"updatedRange": fmt.Sprintf("%s!A%d:G%d", sheet, start, end), "updatedRows": end - start + 1},
		})
	case action == ":clear":
		delete(f.sheets, sheet)
		writeJSON(w, map[string]any{"spreadsheetId": "test", "clearedRange": rng})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.sheets[sheet] = vr.Values
		writeJSON(w, map[string]any{"spreadsheetId": "test", "updatedRows": len(vr.Values)})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{sheets: map[string][][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	cfg.SpreadsheetID = "test"
	return NewWithService(svc, cfg), fake
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_InvalidCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id", CredentialsFile: "/nonexistent/creds.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, _, err := c.ReadTransactions(context.Background()); err == nil {
		t.Fatal("expected error without service")
	}
	if _, err := c.AppendSnapshot(context.Background(), core.AssetSnapshot{}); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestClient_AppendWritesHeaderOnce(t *testing.T) {
	c, fake := newTestClient(t, Config{})
	ctx := context.Background()

	tx := core.Transaction{Date: core.NewDate(2025, 3, 1), Kind: core.Expense, Amount: decimal.RequireFromString("12.50"), Category: "Dining", Person: "wife"}
	v, err := c.AppendTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if v != 2 {
		t.Fatalf("first append should report header+row, got %d", v)
	}
	v, err = c.AppendTransaction(ctx, tx)
	if err != nil || v != 3 {
		t.Fatalf("second append: v=%d err=%v", v, err)
	}
	if got := len(fake.sheets["logs"]); got != 3 {
		t.Fatalf("expected 3 rows in sheet, got %d", got)
	}

	txs, v, err := c.ReadTransactions(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(txs) != 2 || v != 3 {
		t.Fatalf("unexpected read: len=%d v=%d", len(txs), v)
	}
	if txs[0].Person != "wife" || !txs[0].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected record: %+v", txs[0])
	}
}

func TestClient_ReadSkipsBadRows(t *testing.T) {
	c, fake := newTestClient(t, Config{SnapshotsSheet: "balances"})
	fake.sheets["balances"] = [][]any{
		snapshotHeader,
		{"2025-01-01", "checking", "liquid_funds", "1000"},
		{"not a date", "checking", "liquid_funds", "5"},
		{"2025-02-01", "checking", "liquid_funds", "1200", "wife"},
	}

	snaps, v, err := c.ReadSnapshots(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snaps) != 2 || v != 4 {
		t.Fatalf("unexpected read: len=%d v=%d", len(snaps), v)
	}
	if snaps[1].Identity.Owner != "wife" {
		t.Fatalf("owner column not read: %+v", snaps[1])
	}
}

func TestClient_ReplaceChecksVersion(t *testing.T) {
	c, fake := newTestClient(t, Config{})
	ctx := context.Background()
	fake.sheets["assets"] = [][]any{snapshotHeader, {"2025-01-01", "checking", "liquid_funds", "1000"}}

	snaps, v, err := c.ReadSnapshots(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	next := append(snaps, core.AssetSnapshot{
		Date:     core.NewDate(2025, 2, 1),
		Identity: core.AssetIdentity{Name: "checking", Owner: core.JointOwner},
		Class:    core.LiquidFunds,
		Balance:  decimal.NewFromInt(900),
	})

	if _, err := c.ReplaceSnapshots(ctx, next, v-1); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	nv, err := c.ReplaceSnapshots(ctx, next, v)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if nv != 3 {
		t.Fatalf("expected version 3, got %d", nv)
	}
	got, _, _ := c.ReadSnapshots(ctx)
	if len(got) != 2 || got[1].Balance.IntPart() != 900 {
		t.Fatalf("unexpected contents after replace: %+v", got)
	}
}

func TestClient_ReplaceRefusesUnreadableRows(t *testing.T) {
	c, fake := newTestClient(t, Config{})
	ctx := context.Background()
	fake.sheets["logs"] = [][]any{
		transactionHeader,
		{"2025-01-01", "expense", "10", "Dining"},
		{"2025-01-02", "refund", "5", "Dining"},
	}

	txs, v, err := c.ReadTransactions(ctx)
	if err != nil || len(txs) != 1 {
		t.Fatalf("read: len=%d err=%v", len(txs), err)
	}
	if _, err := c.ReplaceTransactions(ctx, txs, v); !errors.Is(err, ErrUnreadableRows) {
		t.Fatalf("expected ErrUnreadableRows, got %v", err)
	}
	if got := len(fake.sheets["logs"]); got != 3 {
		t.Fatalf("sheet must be untouched, has %d rows", got)
	}
}

func TestClient_ReadsHouseholdWorkbook(t *testing.T) {
	c, fake := newTestClient(t, Config{})
	ctx := context.Background()
	fake.sheets["logs"] = [][]any{
		{"date", "type", "amount", "category", "user", "note"},
		{"2026-01-05 00:00:00", "支出", 35.5, "餐饮美食", "老公", ""},
		{"2026-01-10 00:00:00", "收入", 12000, "工资收入", "老婆", "一月"},
	}
	fake.sheets["assets"] = [][]any{
		{"date", "asset_name", "asset_type", "balance"},
		{"2026-01-31 00:00:00", "招商银行", "现金/存款", 1234567},
		{"2026-01-31 00:00:00", "信用卡", "负债/信用卡", -1500},
	}

	txs, _, err := c.ReadTransactions(ctx)
	if err != nil {
		t.Fatalf("read transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Kind != core.Expense || txs[1].Kind != core.Income {
		t.Fatalf("unexpected kinds: %s, %s", txs[0].Kind, txs[1].Kind)
	}
	if !txs[1].Amount.Equal(decimal.NewFromInt(12000)) || txs[0].Person != "老公" {
		t.Fatalf("unexpected record: %+v", txs[1])
	}

	snaps, _, err := c.ReadSnapshots(ctx)
	if err != nil {
		t.Fatalf("read snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Class != core.LiquidFunds || !snaps[0].Balance.Equal(decimal.NewFromInt(1234567)) {
		t.Fatalf("unexpected snapshot: %+v", snaps[0])
	}
	if snaps[1].Class != core.Liability || !snaps[1].Balance.Equal(decimal.NewFromInt(-1500)) {
		t.Fatalf("unexpected liability: %+v", snaps[1])
	}

	for i, opt := range fake.reads {
		if opt != "UNFORMATTED_VALUE" {
			t.Fatalf("read %d used valueRenderOption %q", i, opt)
		}
	}
}

func TestClient_ListCategories(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	cats, err := c.ListCategories(context.Background())
	if err != nil || len(cats) != len(core.DefaultCategories) {
		t.Fatalf("expected defaults, got %v err=%v", cats, err)
	}

	c, fake := newTestClient(t, Config{CategoriesSheet: "categories"})
	fake.sheets["categories"] = [][]any{{"category"}, {"Dining"}, {"# comment"}, {""}, {"Dining"}, {"Rent"}}
	cats, err = c.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 2 || cats[0] != "Dining" || cats[1] != "Rent" {
		t.Fatalf("unexpected categories: %v", cats)
	}
}
