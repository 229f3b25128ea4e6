package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := Open(dbPath, logger)
	require.NoError(t, err, "open store")
	t.Cleanup(func() { s.Close() })
	return s
}

// recordingIndexer captures every indexed book.
type recordingIndexer struct {
	mu    sync.Mutex
	books []*domain.BookView
	err   error
}

func (r *recordingIndexer) IndexBook(_ context.Context, b *domain.BookView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books = append(r.books, b)
	return r.err
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"books", "authors", "publishers"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(dbPath, nil)
	require.NoError(t, err)
	_, err = s.SaveBook(ctx, &domain.Book{Title: "Effective Java", ISBN13: "9780134685991"}, "Joshua Bloch", "Addison-Wesley")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dbPath, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindBookByISBN(ctx, "9780134685991")
	require.NoError(t, err)
	assert.Equal(t, "Effective Java", got.Title)
}
