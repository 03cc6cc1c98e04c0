package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/scopelink-core/internal/infrastructure/database"
	_ "github.com/nerrad567/scopelink-core/migrations" // registers embedded migrations
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "store.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CRUD(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, NamespaceDevice, "selected"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	if err := repo.Put(ctx, NamespaceDevice, "selected", []byte(`{"name":"a"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := repo.Put(ctx, NamespaceDevice, "selected", []byte(`{"name":"b"}`)); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	got, err := repo.Get(ctx, NamespaceDevice, "selected")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"name":"b"}` {
		t.Errorf("Get() = %s, want overwritten value", got)
	}

	if err := repo.Put(ctx, NamespaceUI, "camera", []byte(`{}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	list, err := repo.List(ctx, NamespaceDevice)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List(device) len = %d, want 1 (namespaces must not leak)", len(list))
	}

	if err := repo.Delete(ctx, NamespaceDevice, "selected"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, NamespaceDevice, "selected"); err != nil {
		t.Fatalf("Delete() of missing key error = %v", err)
	}
	if _, err := repo.Get(ctx, NamespaceDevice, "selected"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}
