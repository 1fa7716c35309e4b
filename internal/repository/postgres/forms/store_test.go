package forms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/domain/repositories"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	"formbuilder/internal/repository/postgres"
)

// newTestStore connects to TEST_DATABASE_URL with a throwaway table prefix
func newTestStore(t *testing.T) (formsRepo.FormStore, repositories.TransactionManager) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	tables := postgres.NewTableNames("test_store_")
	if err := postgres.DropSchema(ctx, pool, tables); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { _ = postgres.DropSchema(context.Background(), pool, tables) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewFormStore(&postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger})
	return store, postgres.NewTransactionManager(pool, logger)
}

func sampleForm(name string) *models.Form {
	now := time.Now().UTC().Truncate(time.Microsecond)
	initial := "Initial"
	return &models.Form{
		Name:           name,
		Title:          "Sample",
		Status:         models.StatusDraft,
		SchemaJSON:     `{"pages":[]}`,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
		Versions: []models.FormVersion{
			{Idx: 1, Version: 1, SchemaJSON: `{"pages":[]}`, Changelog: &initial, CreatedAt: now},
		},
	}
}

func TestFormStoreLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, sampleForm("f1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	var conflict *domain.ConflictError
	if err := store.Create(ctx, sampleForm("f1")); !errors.As(err, &conflict) {
		t.Errorf("duplicate create err = %v", err)
	}

	got, err := store.GetByName(ctx, "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Sample" || got.Status != models.StatusDraft || len(got.Versions) != 1 {
		t.Errorf("got %+v", got)
	}

	got.Title = "Renamed"
	got.CurrentVersion = 2
	got.SchemaJSON = `{"pages":[{"name":"p1"}]}`
	got.UpdatedAt = time.Now()
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.AppendVersions(ctx, "f1", []models.FormVersion{{Idx: 2, Version: 2, SchemaJSON: got.SchemaJSON, CreatedAt: time.Now()}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendVersions(ctx, "f1", []models.FormVersion{{Idx: 3, Version: 2, SchemaJSON: "{}", CreatedAt: time.Now()}}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate version err = %v", err)
	}

	got, _ = store.GetByName(ctx, "f1")
	if got.MaxVersion() != 2 || got.CurrentVersion != 2 || got.Title != "Renamed" {
		t.Errorf("after update %+v", got)
	}

	list, err := store.List(ctx, formsRepo.ListOptions{})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}

	if err := store.Delete(ctx, "f1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByName(ctx, "f1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
	if err := store.Delete(ctx, "f1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestFormStoreTransactionRollback(t *testing.T) {
	store, tx := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := store.Create(ctx, sampleForm("tx1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx err = %v", err)
	}
	if _, err := store.GetByName(ctx, "tx1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("rolled back form visible: %v", err)
	}
}

func TestFormStoreListOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c"} {
		f := sampleForm(name)
		f.UpdatedAt = f.UpdatedAt.Add(time.Duration(i) * time.Second)
		if err := store.Create(ctx, f); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	desc, _ := store.List(ctx, formsRepo.ListOptions{})
	if desc[0].Name != "c" || desc[2].Name != "a" {
		t.Errorf("desc order = %s,%s,%s", desc[0].Name, desc[1].Name, desc[2].Name)
	}
	asc, _ := store.List(ctx, formsRepo.ListOptions{Ascending: true, Limit: 2})
	if len(asc) != 2 || asc[0].Name != "a" {
		t.Errorf("asc = %+v", asc)
	}
}
