package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"homeledger/internal/core"
	applog "homeledger/internal/log"
	"homeledger/internal/store"
)

// RecurringTemplate books the same transaction on a schedule: rent, salary,
// a standing investment plan.
type RecurringTemplate struct {
	Start       core.Date        `json:"start"`
	Every       Frequency        `json:"every"`
	Transaction core.Transaction `json:"transaction"`
}

// Normalize checks the template's schedule and transaction, returning it with
// the transaction's blank defaults filled in as the validator stores them.
func (rt RecurringTemplate) Normalize(v core.Validator) (RecurringTemplate, error) {
	if err := rt.Start.Validate(); err != nil {
		return rt, fmt.Errorf("start: %w", err)
	}
	if _, err := GetDuenessChecker(rt.Every); err != nil {
		return rt, err
	}
	probe := rt.Transaction
	probe.Date = rt.Start
	t, err := v.Transaction(probe)
	if err != nil {
		return rt, err
	}
	t.Date = core.Date{}
	rt.Transaction = t
	return rt, nil
}

// matches reports whether t was booked from this template. The stream carries
// no template reference, so every descriptive field must agree.
func (rt RecurringTemplate) matches(t core.Transaction) bool {
	want := rt.Transaction
	return t.Kind == want.Kind &&
		t.Amount.Equal(want.Amount) &&
		t.Category == want.Category &&
		t.Account == want.Account &&
		t.Note == want.Note &&
		t.Person == want.Person
}

// LoadRecurring reads templates from a JSON file. A missing file yields none.
func LoadRecurring(path string, v core.Validator) ([]RecurringTemplate, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recurring templates: %w", err)
	}
	var templates []RecurringTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("decode recurring templates: %w", err)
	}
	for i, rt := range templates {
		if templates[i], err = rt.Normalize(v); err != nil {
			return nil, fmt.Errorf("recurring template %d: %w", i, err)
		}
	}
	return templates, nil
}

// RecurringProcessor books due recurring templates through the ledger. The last
// booking of a template is found in the transaction stream itself, so nothing
// beyond the stream has to be stored.
type RecurringProcessor struct {
	reader    store.Reader
	ledger    *LedgerService
	templates []RecurringTemplate
}

// NewRecurringProcessor creates a processor for templates, which are expected
// to be normalized.
func NewRecurringProcessor(reader store.Reader, ledger *LedgerService, templates []RecurringTemplate) *RecurringProcessor {
	return &RecurringProcessor{
		reader:    reader,
		ledger:    ledger,
		templates: templates,
	}
}

// ProcessDue books every template that is due on now's date and returns how
// many transactions were written. A failing template is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.reader == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	if len(p.templates) == 0 {
		return 0, nil
	}

	txs, _, err := p.reader.ReadTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("read transactions: %w", err)
	}

	today := core.DateOf(now)
	processed := 0
	for i, rt := range p.templates {
		if today.Before(rt.Start) {
			continue
		}
		checker, err := GetDuenessChecker(rt.Every)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping recurring template", "template", i, applog.FieldError, err.Error())
			continue
		}
		if !checker.IsDue(lastBooked(rt, txs), today, rt.Start) {
			continue
		}

		t := rt.Transaction
		t.Date = today
		if _, _, err := p.ledger.RecordTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to book recurring transaction",
				"template", i,
				applog.FieldCategory, t.Category,
				applog.FieldError, err.Error())
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"templates", len(p.templates),
		applog.FieldComponent, applog.ComponentWorker)
	return processed, nil
}

// lastBooked returns the latest date a matching transaction was booked on or
// after the template's start, or the zero date.
func lastBooked(rt RecurringTemplate, txs []core.Transaction) core.Date {
	var last core.Date
	for _, t := range txs {
		if t.Date.Before(rt.Start) || !rt.matches(t) {
			continue
		}
		if last.IsZero() || t.Date.After(last) {
			last = t.Date
		}
	}
	return last
}
