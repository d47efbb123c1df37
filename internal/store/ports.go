// Package store defines the Record Store boundary: two append-only streams of
// records plus the category list used by entry forms.
//
// Adapters advertise what they can do through capability interfaces. An
// Appender adds one record atomically; a Rewriter replaces a whole stream and
// rejects the write when the stream moved since it was read.
package store

import (
	"context"
	"errors"

	"homeledger/internal/core"
)

// Stream names a record stream.
type Stream string

const (
	Transactions   Stream = "transactions"
	AssetSnapshots Stream = "asset_snapshots"
)

// Version is a monotonic revision of one stream. A stream that was never
// written is at version zero.
type Version int64

// ErrVersionConflict is returned by a Rewriter when the stream changed between
// the read and the write.
var ErrVersionConflict = errors.New("stream version conflict")

// Ports for outbound adapters.
type (
	// Reader returns a stream in insertion order together with its version.
	// Never-written streams yield empty slices.
	Reader interface {
		ReadTransactions(ctx context.Context) ([]core.Transaction, Version, error)
		ReadSnapshots(ctx context.Context) ([]core.AssetSnapshot, Version, error)
	}

	// Rewriter replaces a stream's full contents if it is still at expect.
	Rewriter interface {
		Reader
		ReplaceTransactions(ctx context.Context, all []core.Transaction, expect Version) (Version, error)
		ReplaceSnapshots(ctx context.Context, all []core.AssetSnapshot, expect Version) (Version, error)
	}

	// Appender adds one record to the end of a stream in a single call.
	Appender interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (Version, error)
		AppendSnapshot(ctx context.Context, s core.AssetSnapshot) (Version, error)
	}

	// CategoryLister returns the configured category suggestions.
	CategoryLister interface {
		ListCategories(ctx context.Context) ([]string, error)
	}

	// Store is what every backend provides. Writers additionally implement
	// Appender, Rewriter or both.
	Store interface {
		Reader
		CategoryLister
	}
)
