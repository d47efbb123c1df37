package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"homeledger/internal/cache"
	"homeledger/internal/core"
	"homeledger/internal/ledger"
	applog "homeledger/internal/log"
	"homeledger/internal/store"
)

// RecentLimit is how many transactions the dashboard lists.
const RecentLimit = 5

// Versions are the stream revisions a report was computed from.
type Versions struct {
	Transactions store.Version `json:"transactions"`
	Snapshots    store.Version `json:"asset_snapshots"`
}

// Dashboard is the monthly overview.
type Dashboard struct {
	Month             ledger.Month          `json:"month"`
	Summary           ledger.MonthlySummary `json:"summary"`
	ExpenseByCategory []ledger.Group        `json:"expense_by_category"`
	Budgets           []ledger.BudgetStatus `json:"budgets"`
	Alerts            []ledger.BudgetStatus `json:"alerts"`
	NetWorth          decimal.Decimal       `json:"net_worth"`
	Assets            []core.AssetSnapshot  `json:"assets"`
	Classes           []ledger.ClassTotal   `json:"classes"`
	PnL               ledger.PnL            `json:"pnl"`
	Hierarchy         *ledger.Node          `json:"hierarchy"`
	Recent            []core.Transaction    `json:"recent"`
	Versions          Versions              `json:"versions"`
}

// NetWorthReport is the current balance sheet plus its history.
type NetWorthReport struct {
	NetWorth decimal.Decimal        `json:"net_worth"`
	Assets   []core.AssetSnapshot   `json:"assets"`
	Classes  []ledger.ClassTotal    `json:"classes"`
	History  []ledger.NetWorthPoint `json:"history"`
	Versions Versions               `json:"versions"`
}

// PnLReport is the overall investment result and its per-account split.
type PnLReport struct {
	Total    ledger.PnL          `json:"total"`
	Accounts []ledger.AccountPnL `json:"accounts"`
	Versions Versions            `json:"versions"`
}

// BudgetReport is the budget evaluation of one month.
type BudgetReport struct {
	Month    ledger.Month          `json:"month"`
	Statuses []ledger.BudgetStatus `json:"statuses"`
	Alerts   []ledger.BudgetStatus `json:"alerts"`
}

// TrendReport is a yearly income and expense series.
type TrendReport struct {
	Year   int                 `json:"year"`
	Points []ledger.TrendPoint `json:"points"`
}

type streams struct {
	txs      []core.Transaction
	snaps    []core.AssetSnapshot
	versions Versions
}

// ReportConfig tunes the read path. A zero CacheSize disables caching.
type ReportConfig struct {
	Budgets   []ledger.Budget
	Matcher   ledger.Matcher
	CacheSize int
	CacheTTL  time.Duration
}

// ReportService is the read path. Every report is recomputed from both streams;
// the cache only skips that work while no write has happened since.
type ReportService struct {
	store   store.Store
	budgets []ledger.Budget
	matcher ledger.Matcher

	streams cache.Cache[streams]
	reports cache.Cache[any]
}

// NewReportService creates the read path over st.
func NewReportService(st store.Store, cfg ReportConfig) *ReportService {
	s := &ReportService{
		store:   st,
		budgets: cfg.Budgets,
		matcher: cfg.Matcher,
	}
	if s.matcher == nil {
		s.matcher = ledger.SubstringMatcher{}
	}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		s.streams = cache.NewLRUCache[streams](1, cfg.CacheTTL)
		s.reports = cache.NewLRUCache[any](cfg.CacheSize, cfg.CacheTTL)
	}
	return s
}

// Caches exposes the caches for periodic cleanup; empty when caching is off.
func (s *ReportService) Caches() []cache.Cleaner {
	if s.streams == nil {
		return nil
	}
	var out []cache.Cleaner
	for _, c := range []any{s.streams, s.reports} {
		if cl, ok := c.(cache.Cleaner); ok {
			out = append(out, cl)
		}
	}
	return out
}

// Invalidate drops every cached stream and report.
func (s *ReportService) Invalidate() {
	if s.streams == nil {
		return
	}
	s.streams.Purge()
	s.reports.Purge()
}

// Categories returns the category suggestions for entry forms.
func (s *ReportService) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Transactions returns the transaction stream and its version.
func (s *ReportService) Transactions(ctx context.Context) ([]core.Transaction, store.Version, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, 0, err
	}
	return st.txs, st.versions.Transactions, nil
}

// Dashboard computes the monthly overview for m.
func (s *ReportService) Dashboard(ctx context.Context, m ledger.Month) (*Dashboard, error) {
	return report(ctx, s, "dashboard|"+m.String(), func(st streams) *Dashboard {
		monthExpenses := ledger.Select(st.txs, ledger.Query{
			Window: ledger.SingleMonth(m),
			Kinds:  []core.Kind{core.Expense},
		})
		resolved := ledger.Resolve(st.snaps)
		statuses := ledger.Track(monthExpenses, s.budgets, s.matcher)
		return &Dashboard{
			Month:             m,
			Summary:           ledger.Summarize(st.txs, m),
			ExpenseByCategory: ledger.Aggregate(monthExpenses, ledger.Query{GroupBy: []ledger.GroupKey{ledger.ByCategory}}),
			Budgets:           statuses,
			Alerts:            ledger.Alerts(statuses),
			NetWorth:          ledger.NetWorth(resolved),
			Assets:            ledger.Latest(st.snaps),
			Classes:           ledger.ClassBreakdown(resolved),
			PnL:               ledger.ComputePnL(st.txs, st.snaps),
			Hierarchy:         ledger.BuildHierarchy(monthExpenses),
			Recent:            Recent(st.txs, RecentLimit),
			Versions:          st.versions,
		}
	})
}

// Budget evaluates the configured budgets for m.
func (s *ReportService) Budget(ctx context.Context, m ledger.Month) (*BudgetReport, error) {
	return report(ctx, s, "budget|"+m.String(), func(st streams) *BudgetReport {
		statuses := ledger.Track(ledger.Select(st.txs, ledger.Query{Window: ledger.SingleMonth(m)}), s.budgets, s.matcher)
		return &BudgetReport{Month: m, Statuses: statuses, Alerts: ledger.Alerts(statuses)}
	})
}

// NetWorth computes the current balance sheet and its history.
func (s *ReportService) NetWorth(ctx context.Context) (*NetWorthReport, error) {
	return report(ctx, s, "networth", func(st streams) *NetWorthReport {
		resolved := ledger.Resolve(st.snaps)
		return &NetWorthReport{
			NetWorth: ledger.NetWorth(resolved),
			Assets:   ledger.Latest(st.snaps),
			Classes:  ledger.ClassBreakdown(resolved),
			History:  ledger.NetWorthHistory(st.snaps),
			Versions: st.versions,
		}
	})
}

// PnL computes the investment result overall and per account.
func (s *ReportService) PnL(ctx context.Context) (*PnLReport, error) {
	return report(ctx, s, "pnl", func(st streams) *PnLReport {
		return &PnLReport{
			Total:    ledger.ComputePnL(st.txs, st.snaps),
			Accounts: ledger.ComputePnLByAccount(st.txs, st.snaps),
			Versions: st.versions,
		}
	})
}

// Trend computes the monthly income and expense series of year.
func (s *ReportService) Trend(ctx context.Context, year int) (*TrendReport, error) {
	return report(ctx, s, fmt.Sprintf("trend|%d", year), func(st streams) *TrendReport {
		return &TrendReport{
			Year:   year,
			Points: ledger.TrendSeries(st.txs, ledger.Query{Window: ledger.YearWindow(year)}),
		}
	})
}

// Hierarchy breaks the expenses of m down by category and note.
func (s *ReportService) Hierarchy(ctx context.Context, m ledger.Month) (*ledger.Node, error) {
	return report(ctx, s, "hierarchy|"+m.String(), func(st streams) *ledger.Node {
		return ledger.BuildHierarchy(ledger.Select(st.txs, ledger.Query{
			Window: ledger.SingleMonth(m),
			Kinds:  []core.Kind{core.Expense},
		}))
	})
}

// report serves a cached result for the current stream versions or computes it.
func report[T any](ctx context.Context, s *ReportService, name string, compute func(streams) T) (T, error) {
	var zero T
	st, err := s.load(ctx)
	if err != nil {
		return zero, err
	}
	if s.reports == nil {
		return compute(st), nil
	}

	key := fmt.Sprintf("%s|%d|%d", name, st.versions.Transactions, st.versions.Snapshots)
	if v, ok := s.reports.Get(key); ok {
		if out, ok := v.(T); ok {
			return out, nil
		}
	}
	out := compute(st)
	s.reports.Set(key, out)
	slog.DebugContext(ctx, "Report computed",
		applog.FieldComponent, applog.ComponentReport,
		applog.FieldOperation, strings.SplitN(name, "|", 2)[0])
	return out, nil
}

// load reads both streams concurrently, or serves them from cache.
func (s *ReportService) load(ctx context.Context) (streams, error) {
	const key = "streams"
	if s.streams != nil {
		if st, ok := s.streams.Get(key); ok {
			return st, nil
		}
	}

	var st streams
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, v, err := s.store.ReadTransactions(gctx)
		if err != nil {
			return fmt.Errorf("read transactions: %w", err)
		}
		st.txs, st.versions.Transactions = txs, v
		return nil
	})
	g.Go(func() error {
		snaps, v, err := s.store.ReadSnapshots(gctx)
		if err != nil {
			return fmt.Errorf("read snapshots: %w", err)
		}
		st.snaps, st.versions.Snapshots = snaps, v
		return nil
	})
	if err := g.Wait(); err != nil {
		return streams{}, err
	}

	if s.streams != nil {
		s.streams.Set(key, st)
	}
	return st, nil
}

// Recent returns up to n transactions, newest date first. Among equal dates the
// later appended one comes first.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	for i, t := range txs {
		out[len(txs)-1-i] = t
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
