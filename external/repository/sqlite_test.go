package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/foxseedlab/scamwatch/internal/repository"
)

func openTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "scamwatch.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestSQLiteRepository_InsertListOrder(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.InsertRecord(ctx, repository.TranscriptRecord{ID: id, Text: id, CreatedAt: base.Add(time.Duration(i) * time.Nanosecond)}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	list, err := repo.ListRecords(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != "c" || list[2].ID != "a" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[0].RiskScore != nil || list[0].Advice != nil {
		t.Fatal("expected unscored record")
	}
}

func TestSQLiteRepository_RiskAndTextReset(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	if err := repo.InsertRecord(ctx, repository.TranscriptRecord{ID: "a", Text: "hello", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	score := 82
	advice := "looks like a scam"
	if err := repo.UpdateRisk(ctx, repository.UpdateRiskInput{ID: "a", RiskScore: &score, Advice: &advice}); err != nil {
		t.Fatalf("update risk: %v", err)
	}
	if err := repo.UpdateLoading(ctx, "a", true); err != nil {
		t.Fatalf("update loading: %v", err)
	}
	list, _ := repo.ListRecords(ctx)
	if list[0].RiskScore == nil || *list[0].RiskScore != 82 || list[0].Advice == nil || !list[0].IsAdviceLoading {
		t.Fatalf("unexpected record: %+v", list[0])
	}

	if err := repo.UpdateText(ctx, "a", "edited"); err != nil {
		t.Fatalf("update text: %v", err)
	}
	list, _ = repo.ListRecords(ctx)
	if list[0].Text != "edited" || list[0].RiskScore != nil || list[0].Advice != nil || list[0].IsAdviceLoading {
		t.Fatalf("expected reset record, got %+v", list[0])
	}
}

func TestSQLiteRepository_MissingRecord(t *testing.T) {
	repo := openTestSQLite(t)
	if err := repo.UpdateText(context.Background(), "missing", "x"); !errors.Is(err, repository.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestSQLiteRepository_CombineAndDelete(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	now := time.Now()
	_ = repo.InsertRecord(ctx, repository.TranscriptRecord{ID: "a", Text: "one", CreatedAt: now})
	_ = repo.InsertRecord(ctx, repository.TranscriptRecord{ID: "b", Text: "two", CreatedAt: now.Add(time.Millisecond)})
	_ = repo.InsertRecord(ctx, repository.TranscriptRecord{ID: "c", Text: "three", CreatedAt: now.Add(2 * time.Millisecond)})

	err := repo.CombineRecords(ctx, repository.CombineRecordsInput{
		Combined:   repository.TranscriptRecord{ID: "ab", Text: "one，two", CreatedAt: now.Add(3 * time.Millisecond)},
		RemovedIDs: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	list, _ := repo.ListRecords(ctx)
	if len(list) != 2 || list[0].ID != "ab" || list[1].ID != "c" {
		t.Fatalf("unexpected records after combine: %+v", list)
	}

	if err := repo.DeleteRecord(ctx, "c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	list, _ = repo.ListRecords(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d", len(list))
	}
}
