package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
	"homeledger/internal/ledger"
	applog "homeledger/internal/log"
	"homeledger/internal/services"
	"homeledger/internal/store/memory"
)

func newWorker(t *testing.T, st *memory.Store) (*BudgetAlertWorker, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := applog.New(applog.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	reports := services.NewReportService(st, services.ReportConfig{
		Budgets:   []ledger.Budget{{Label: "Dining", Ceiling: decimal.NewFromInt(100)}},
		CacheSize: 4,
		CacheTTL:  time.Hour,
	})
	return NewBudgetAlertWorker(reports, logger), &buf
}

func appendExpense(t *testing.T, st *memory.Store, amount int64) {
	t.Helper()
	_, err := st.AppendTransaction(context.Background(), core.Transaction{
		Date:     core.NewDate(2024, 3, 10),
		Kind:     core.Expense,
		Amount:   decimal.NewFromInt(amount),
		Category: "Dining",
		Person:   core.Household,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestBudgetAlertWorker_LogsTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New(nil)
	w, buf := newWorker(t, st)
	msg := amqp.NewRecordAppendedMessage("transactions", 1, "2024-03-10")

	appendExpense(t, st, 50)
	if err := w.HandleRecordAppended(ctx, msg); err != nil {
		t.Fatalf("HandleRecordAppended() error = %v", err)
	}
	if strings.Contains(buf.String(), "Budget") {
		t.Fatalf("unexpected alert at 50%%: %s", buf.String())
	}

	appendExpense(t, st, 35)
	if err := w.HandleRecordAppended(ctx, msg); err != nil {
		t.Fatalf("HandleRecordAppended() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Budget nearly used up") || !strings.Contains(buf.String(), "budget_state=warning") {
		t.Fatalf("expected warning alert, got: %s", buf.String())
	}

	// still warning: no repeated alert
	buf.Reset()
	if err := w.HandleRecordAppended(ctx, msg); err != nil {
		t.Fatalf("HandleRecordAppended() error = %v", err)
	}
	if strings.Contains(buf.String(), "Budget nearly used up") {
		t.Fatalf("warning logged twice: %s", buf.String())
	}

	appendExpense(t, st, 40)
	if err := w.HandleRecordAppended(ctx, msg); err != nil {
		t.Fatalf("HandleRecordAppended() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Budget exceeded") || !strings.Contains(buf.String(), "label=Dining") {
		t.Fatalf("expected exceeded alert, got: %s", buf.String())
	}
}

func TestBudgetAlertWorker_IgnoresOtherEvents(t *testing.T) {
	ctx := context.Background()
	st := memory.New(nil)
	appendExpense(t, st, 500)
	w, buf := newWorker(t, st)

	if err := w.HandleRecordAppended(ctx, amqp.NewRecordAppendedMessage("asset_snapshots", 1, "2024-03-10")); err != nil {
		t.Fatalf("snapshot event: %v", err)
	}
	if err := w.HandleRecordAppended(ctx, amqp.NewRecordAppendedMessage("transactions", 1, "not a date")); err != nil {
		t.Fatalf("bad date should be dropped, got %v", err)
	}
	if strings.Contains(buf.String(), "Budget exceeded") {
		t.Fatalf("no budget should have been evaluated: %s", buf.String())
	}
}

func TestBudgetAlertWorker_StartupCheck(t *testing.T) {
	st := memory.New(nil)
	appendExpense(t, st, 150)
	w, buf := newWorker(t, st)

	if err := w.StartupCheck(context.Background(), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("StartupCheck() error = %v", err)
	}
	if !strings.Contains(buf.String(), "alerts=1") {
		t.Fatalf("expected one alert, got: %s", buf.String())
	}
}

type failingReporter struct{}

func (failingReporter) Budget(context.Context, ledger.Month) (*services.BudgetReport, error) {
	return nil, errors.New("store offline")
}

func (failingReporter) Invalidate() {}

func TestBudgetAlertWorker_ReportErrorRequeues(t *testing.T) {
	w := NewBudgetAlertWorker(failingReporter{}, nil)
	err := w.HandleRecordAppended(context.Background(), amqp.NewRecordAppendedMessage("transactions", 3, "2024-03-10"))
	if err == nil || !strings.Contains(err.Error(), "store offline") {
		t.Fatalf("expected store error, got %v", err)
	}
}

type countingProcessor struct {
	calls atomic.Int64
	err   error
}

func (p *countingProcessor) ProcessDue(context.Context, time.Time) (int, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestScheduler_RunsOnStartAndTick(t *testing.T) {
	proc := &countingProcessor{}
	s := NewScheduler(proc, 10*time.Millisecond)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	deadline := time.Now().Add(time.Second)
	for proc.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if proc.calls.Load() < 3 {
		t.Fatalf("calls = %d, want at least 3", proc.calls.Load())
	}
	if s.IsRunning() {
		t.Fatal("scheduler still running after Stop")
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestScheduler_ContinuesAfterError(t *testing.T) {
	proc := &countingProcessor{err: errors.New("read failed")}
	s := NewScheduler(proc, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for proc.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if proc.calls.Load() < 2 {
		t.Fatalf("calls = %d, want at least 2", proc.calls.Load())
	}
}

func TestScheduler_InvalidInterval(t *testing.T) {
	if err := NewScheduler(&countingProcessor{}, 0).Start(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
