// Package sqlite persists both streams in a local SQLite database. Insertion
// order is the autoincrement id and each stream carries its own version row,
// bumped in the same transaction as every write.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"homeledger/internal/core"
	"homeledger/internal/store"
)

var (
	_ store.Store    = (*Repository)(nil)
	_ store.Appender = (*Repository)(nil)
	_ store.Rewriter = (*Repository)(nil)
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time; sqlite would otherwise report SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) ReadTransactions(ctx context.Context) ([]core.Transaction, store.Version, error) {
	var (
		out []core.Transaction
		v   store.Version
	)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if v, err = version(ctx, tx, store.Transactions); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT date, kind, amount, category, account, person, note FROM transactions ORDER BY id`)
		if err != nil {
			return fmt.Errorf("query transactions: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, v, nil
}

func (r *Repository) ReadSnapshots(ctx context.Context) ([]core.AssetSnapshot, store.Version, error) {
	var (
		out []core.AssetSnapshot
		v   store.Version
	)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if v, err = version(ctx, tx, store.AssetSnapshots); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT date, asset_name, owner, asset_class, balance FROM asset_snapshots ORDER BY id`)
		if err != nil {
			return fmt.Errorf("query asset snapshots: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSnapshot(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	if out == nil {
		out = []core.AssetSnapshot{}
	}
	return out, v, nil
}

// AppendTransaction inserts one row and bumps the stream version atomically.
func (r *Repository) AppendTransaction(ctx context.Context, t core.Transaction) (store.Version, error) {
	var v store.Version
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		var err error
		v, err = bump(ctx, tx, store.Transactions)
		return err
	})
	if err != nil {
		return 0, err
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite", "version", v, "kind", t.Kind, "amount", t.Amount.String())
	return v, nil
}

func (r *Repository) AppendSnapshot(ctx context.Context, s core.AssetSnapshot) (store.Version, error) {
	var v store.Version
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertSnapshot(ctx, tx, s); err != nil {
			return err
		}
		var err error
		v, err = bump(ctx, tx, store.AssetSnapshots)
		return err
	})
	if err != nil {
		return 0, err
	}
	slog.DebugContext(ctx, "Snapshot saved to SQLite", "version", v, "asset", s.Identity.String())
	return v, nil
}

func (r *Repository) ReplaceTransactions(ctx context.Context, all []core.Transaction, expect store.Version) (store.Version, error) {
	var v store.Version
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkVersion(ctx, tx, store.Transactions, expect); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		for _, t := range all {
			if err := insertTransaction(ctx, tx, t); err != nil {
				return err
			}
		}
		var err error
		v, err = bump(ctx, tx, store.Transactions)
		return err
	})
	return v, err
}

func (r *Repository) ReplaceSnapshots(ctx context.Context, all []core.AssetSnapshot, expect store.Version) (store.Version, error) {
	var v store.Version
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkVersion(ctx, tx, store.AssetSnapshots, expect); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM asset_snapshots`); err != nil {
			return fmt.Errorf("clear asset snapshots: %w", err)
		}
		for _, s := range all {
			if err := insertSnapshot(ctx, tx, s); err != nil {
				return err
			}
		}
		var err error
		v, err = bump(ctx, tx, store.AssetSnapshots)
		return err
	})
	return v, err
}

// ListCategories returns the categories seeded by migrations in display order.
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func version(ctx context.Context, tx *sql.Tx, s store.Stream) (store.Version, error) {
	var v int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM streams WHERE name = ?`, string(s)).Scan(&v); err != nil {
		return 0, fmt.Errorf("read %s version: %w", s, err)
	}
	return store.Version(v), nil
}

func checkVersion(ctx context.Context, tx *sql.Tx, s store.Stream, expect store.Version) error {
	v, err := version(ctx, tx, s)
	if err != nil {
		return err
	}
	if v != expect {
		return store.ErrVersionConflict
	}
	return nil
}

func bump(ctx context.Context, tx *sql.Tx, s store.Stream) (store.Version, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE streams SET version = version + 1 WHERE name = ?`, string(s)); err != nil {
		return 0, fmt.Errorf("bump %s version: %w", s, err)
	}
	return version(ctx, tx, s)
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (date, kind, amount, category, account, person, note) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(), string(t.Kind), t.Amount.String(), t.Category, t.Account, t.Person, t.Note)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, s core.AssetSnapshot) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO asset_snapshots (date, asset_name, owner, asset_class, balance) VALUES (?, ?, ?, ?, ?)`,
		s.Date.String(), s.Identity.Name, s.Identity.Owner, string(s.Class), s.Balance.String())
	if err != nil {
		return fmt.Errorf("insert asset snapshot: %w", err)
	}
	return nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		t            core.Transaction
		date, amount string
		kind         string
	)
	if err := rows.Scan(&date, &kind, &amount, &t.Category, &t.Account, &t.Person, &t.Note); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction date: %w", err)
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction amount %q: %w", amount, err)
	}
	t.Date, t.Kind, t.Amount = d, core.Kind(kind), a
	return t, nil
}

func scanSnapshot(rows *sql.Rows) (core.AssetSnapshot, error) {
	var (
		s                    core.AssetSnapshot
		date, class, balance string
	)
	if err := rows.Scan(&date, &s.Identity.Name, &s.Identity.Owner, &class, &balance); err != nil {
		return core.AssetSnapshot{}, fmt.Errorf("scan asset snapshot: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.AssetSnapshot{}, fmt.Errorf("scan asset snapshot date: %w", err)
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return core.AssetSnapshot{}, fmt.Errorf("scan asset snapshot balance %q: %w", balance, err)
	}
	s.Date, s.Class, s.Balance = d, core.AssetClass(class), b
	return s, nil
}
