package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"homeledger/internal/core"
	"homeledger/internal/store"
)

var (
	_ store.Store    = (*Store)(nil)
	_ store.Appender = (*Store)(nil)
	_ store.Rewriter = (*Store)(nil)
)

// Store keeps both streams in process memory. It supports every write
// capability and is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	cats    []string
	txs     []core.Transaction
	snaps   []core.AssetSnapshot
	txVer   store.Version
	snapVer store.Version
}

func New(cats []string) *Store {
	return &Store{cats: dedupe(cats)}
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling back to
// the default category list when the file is missing or empty.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = core.DefaultCategories
	}
	return New(cats)
}

func (s *Store) ReadTransactions(_ context.Context) ([]core.Transaction, store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction{}, s.txs...), s.txVer, nil
}

func (s *Store) ReadSnapshots(_ context.Context) ([]core.AssetSnapshot, store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.AssetSnapshot{}, s.snaps...), s.snapVer, nil
}

func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, t)
	s.txVer++
	return s.txVer, nil
}

func (s *Store) AppendSnapshot(_ context.Context, snap core.AssetSnapshot) (store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	s.snapVer++
	return s.snapVer, nil
}

func (s *Store) ReplaceTransactions(_ context.Context, all []core.Transaction, expect store.Version) (store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txVer != expect {
		return s.txVer, store.ErrVersionConflict
	}
	s.txs = append([]core.Transaction{}, all...)
	s.txVer++
	return s.txVer, nil
}

func (s *Store) ReplaceSnapshots(_ context.Context, all []core.AssetSnapshot, expect store.Version) (store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapVer != expect {
		return s.snapVer, store.ErrVersionConflict
	}
	s.snaps = append([]core.AssetSnapshot{}, all...)
	s.snapVer++
	return s.snapVer, nil
}

// ListCategories returns the seeded categories.
func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, preserving input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
