package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
	"homeledger/internal/ledger"
	applog "homeledger/internal/log"
	"homeledger/internal/services"
	"homeledger/internal/store"
)

// BudgetReporter evaluates the budgets of one month. *services.ReportService
// implements it.
type BudgetReporter interface {
	Budget(ctx context.Context, m ledger.Month) (*services.BudgetReport, error)
	Invalidate()
}

// BudgetAlertWorker re-evaluates budgets whenever a transaction is appended and
// logs labels that enter the warning or exceeded state.
type BudgetAlertWorker struct {
	reports BudgetReporter
	logger  *applog.Logger

	mu   sync.Mutex
	seen map[string]ledger.BudgetState // month|label -> last logged state
}

func NewBudgetAlertWorker(reports BudgetReporter, logger *applog.Logger) *BudgetAlertWorker {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &BudgetAlertWorker{
		reports: reports,
		logger:  logger.WithComponent(applog.ComponentBudget),
		seen:    map[string]ledger.BudgetState{},
	}
}

// HandleRecordAppended processes one record event from AMQP. Snapshot events
// do not affect budgets and are acknowledged without work.
func (w *BudgetAlertWorker) HandleRecordAppended(ctx context.Context, msg *amqp.RecordAppendedMessage) error {
	if msg.Stream != string(store.Transactions) {
		return nil
	}

	date, err := core.ParseDate(msg.Date)
	if err != nil {
		// redelivery cannot fix a bad date
		slog.WarnContext(ctx, "Ignoring record event with bad date",
			"id", msg.ID,
			applog.FieldError, err.Error())
		return nil
	}

	w.logger.DebugContext(ctx, "Processing record event",
		"id", msg.ID,
		applog.FieldStream, msg.Stream,
		applog.FieldVersion, msg.Version)

	// another process wrote the stream
	w.reports.Invalidate()
	_, err = w.Check(ctx, ledger.MonthOf(date))
	return err
}

// Check evaluates the budgets of m, logs new alerts and returns them.
func (w *BudgetAlertWorker) Check(ctx context.Context, m ledger.Month) ([]ledger.BudgetStatus, error) {
	report, err := w.reports.Budget(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("evaluate budgets for %s: %w", m, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var fresh []ledger.BudgetStatus
	for _, st := range report.Statuses {
		key := m.String() + "|" + st.Label
		prev := w.seen[key]
		w.seen[key] = st.State
		if st.State == ledger.BudgetNormal || st.State == prev {
			continue
		}
		fresh = append(fresh, st)

		fields := applog.NewFields().
			WithBudget(st.Label, string(st.State), st.Percent.StringFixed(0)).
			WithOperation(applog.OpReport)
		args := append(fields.ToSlice(),
			applog.FieldMonth, m.String(),
			applog.FieldAmount, st.Spent.String())
		if st.State == ledger.BudgetExceeded {
			w.logger.ErrorContext(ctx, "Budget exceeded", args...)
		} else {
			w.logger.WarnContext(ctx, "Budget nearly used up", args...)
		}
	}
	return fresh, nil
}

// StartupCheck evaluates the current month once so alerts raised while the
// worker was down are not missed.
func (w *BudgetAlertWorker) StartupCheck(ctx context.Context, now time.Time) error {
	alerts, err := w.Check(ctx, ledger.CurrentMonth(now))
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Startup budget check completed", "alerts", len(alerts))
	return nil
}
