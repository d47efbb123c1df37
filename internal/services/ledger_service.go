package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
	applog "homeledger/internal/log"
	"homeledger/internal/store"
)

// ErrReadOnly is returned when the configured store accepts no writes.
var ErrReadOnly = errors.New("store does not accept writes")

// Publisher announces appended records. *amqp.Client implements it.
type Publisher interface {
	PublishRecordAppended(ctx context.Context, msg *amqp.RecordAppendedMessage) error
}

// LedgerService is the write path: validate, append, announce, invalidate.
type LedgerService struct {
	store     store.Store
	validator core.Validator
	publisher Publisher
	retries   int
	onWrite   []func()
}

// NewLedgerService creates the write path over st. publisher may be nil; retries
// bounds the read-modify-write attempts on stores without atomic append.
func NewLedgerService(st store.Store, validator core.Validator, publisher Publisher, retries int) *LedgerService {
	if retries < 1 {
		retries = 1
	}
	return &LedgerService{
		store:     st,
		validator: validator,
		publisher: publisher,
		retries:   retries,
	}
}

// OnWrite registers a callback run after every successful write.
func (s *LedgerService) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

// RecordTransaction validates t and appends it to the transaction stream. The
// stored record is returned with defaults filled in.
func (s *LedgerService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, store.Version, error) {
	t, err := s.validator.Transaction(t)
	if err != nil {
		return core.Transaction{}, 0, err
	}

	var version store.Version
	switch st := s.store.(type) {
	case store.Appender:
		version, err = st.AppendTransaction(ctx, t)
	case store.Rewriter:
		version, err = s.withRetry(ctx, store.Transactions, func(ctx context.Context) (store.Version, error) {
			prior, expect, err := st.ReadTransactions(ctx)
			if err != nil {
				return 0, err
			}
			all := make([]core.Transaction, 0, len(prior)+1)
			all = append(append(all, prior...), t)
			return st.ReplaceTransactions(ctx, all, expect)
		})
	default:
		err = ErrReadOnly
	}
	if err != nil {
		return core.Transaction{}, 0, fmt.Errorf("record transaction: %w", err)
	}

	fields := applog.NewFields().WithTransaction(string(t.Kind), t.Amount.String(), t.Category, t.Person)
	s.afterWrite(ctx, store.Transactions, version, t.Date, fields)
	return t, version, nil
}

// RecordSnapshot validates snap and appends it to the asset snapshot stream.
func (s *LedgerService) RecordSnapshot(ctx context.Context, snap core.AssetSnapshot) (core.AssetSnapshot, store.Version, error) {
	snap, err := s.validator.Snapshot(snap)
	if err != nil {
		return core.AssetSnapshot{}, 0, err
	}

	var version store.Version
	switch st := s.store.(type) {
	case store.Appender:
		version, err = st.AppendSnapshot(ctx, snap)
	case store.Rewriter:
		version, err = s.withRetry(ctx, store.AssetSnapshots, func(ctx context.Context) (store.Version, error) {
			prior, expect, err := st.ReadSnapshots(ctx)
			if err != nil {
				return 0, err
			}
			all := make([]core.AssetSnapshot, 0, len(prior)+1)
			all = append(append(all, prior...), snap)
			return st.ReplaceSnapshots(ctx, all, expect)
		})
	default:
		err = ErrReadOnly
	}
	if err != nil {
		return core.AssetSnapshot{}, 0, fmt.Errorf("record snapshot: %w", err)
	}

	fields := applog.NewFields().WithSnapshot(snap.Identity.String(), string(snap.Class), snap.Balance.String())
	s.afterWrite(ctx, store.AssetSnapshots, version, snap.Date, fields)
	return snap, version, nil
}

// withRetry repeats attempt while it loses the optimistic version check. The
// last conflict is returned once the attempts are used up.
func (s *LedgerService) withRetry(ctx context.Context, stream store.Stream, attempt func(context.Context) (store.Version, error)) (store.Version, error) {
	var err error
	for i := 1; i <= s.retries; i++ {
		var v store.Version
		v, err = attempt(ctx)
		if !errors.Is(err, store.ErrVersionConflict) {
			return v, err
		}
		slog.WarnContext(ctx, "Stream moved during write, retrying",
			applog.FieldStream, stream,
			applog.FieldAttempt, i,
			applog.FieldComponent, applog.ComponentLedger)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
	}
	return 0, fmt.Errorf("%d attempts: %w", s.retries, err)
}

func (s *LedgerService) afterWrite(ctx context.Context, stream store.Stream, version store.Version, date core.Date, fields applog.LogFields) {
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogRecordAppended(ctx, string(stream), int64(version), fields)

	for _, fn := range s.onWrite {
		fn()
	}

	if s.publisher == nil {
		return
	}
	msg := amqp.NewRecordAppendedMessage(string(stream), int64(version), date.String())
	if err := s.publisher.PublishRecordAppended(ctx, msg); err != nil {
		// the record is stored; the event is best effort
		slog.ErrorContext(ctx, "Failed to publish record event",
			applog.FieldStream, stream,
			applog.FieldVersion, version,
			applog.FieldError, err.Error())
	}
}
