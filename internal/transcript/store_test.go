package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/scamwatch/internal/repository"
)

type fakeRepository struct {
	mu       sync.Mutex
	rows     map[string]repository.TranscriptRecord
	fail     error
	combined []repository.CombineRecordsInput
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: make(map[string]repository.TranscriptRecord)}
}

func (f *fakeRepository) ListRecords(_ context.Context) ([]repository.TranscriptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	var list []repository.TranscriptRecord
	for _, r := range f.rows {
		list = append(list, r)
	}
	return list, nil
}

func (f *fakeRepository) InsertRecord(_ context.Context, rec repository.TranscriptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.rows[rec.ID] = rec
	return nil
}

func (f *fakeRepository) UpdateText(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	r := f.rows[id]
	r.Text, r.RiskScore, r.Advice, r.IsAdviceLoading = text, nil, nil, false
	f.rows[id] = r
	return nil
}

func (f *fakeRepository) UpdateRisk(_ context.Context, in repository.UpdateRiskInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	r := f.rows[in.ID]
	r.RiskScore, r.Advice = in.RiskScore, in.Advice
	f.rows[in.ID] = r
	return nil
}

func (f *fakeRepository) UpdateLoading(_ context.Context, id string, loading bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	r := f.rows[id]
	r.IsAdviceLoading = loading
	f.rows[id] = r
	return nil
}

func (f *fakeRepository) DeleteRecord(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return f.fail
}

func (f *fakeRepository) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[string]repository.TranscriptRecord)
	return f.fail
}

func (f *fakeRepository) CombineRecords(_ context.Context, in repository.CombineRecordsInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.combined = append(f.combined, in)
	f.rows[in.Combined.ID] = in.Combined
	for _, id := range in.RemovedIDs {
		delete(f.rows, id)
	}
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestStore_InsertOrdersNewestFirst(t *testing.T) {
	s := NewStore(WithClock(fixedClock()), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()
	for _, text := range []string{"first", "second", "third"} {
		if _, err := s.Insert(ctx, text); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	snap := s.Snapshot()
	if len(snap) != 3 || snap[0].Text != "third" || snap[2].Text != "first" {
		t.Fatalf("unexpected order: %+v", snap)
	}
	if !snap[0].CreatedAt.After(snap[1].CreatedAt) {
		t.Fatal("expected strictly increasing creation times under a frozen clock")
	}
	if snap[0].RiskScore != nil || snap[0].Advice != nil {
		t.Fatal("new record must be unscored")
	}
}

func TestStore_InsertRejectsBlank(t *testing.T) {
	s := NewStore()
	if _, err := s.Insert(context.Background(), "  \n"); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestStore_UpdateTextResetsRisk(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec, _ := s.Insert(ctx, "original text")
	if err := s.SetRisk(ctx, rec.ID, rec.Revision, 82); err != nil {
		t.Fatalf("set risk: %v", err)
	}
	if err := s.SetAdvice(ctx, rec.ID, rec.Revision, "advice"); err != nil {
		t.Fatalf("set advice: %v", err)
	}

	updated, err := s.UpdateText(ctx, rec.ID, "edited text")
	if err != nil {
		t.Fatalf("update text: %v", err)
	}
	if updated.RiskScore != nil || updated.Advice != nil || updated.IsAdviceLoading {
		t.Fatalf("expected reset after edit, got %+v", updated)
	}
	if updated.Revision != rec.Revision+1 {
		t.Fatalf("expected revision bump, got %d", updated.Revision)
	}
}

func TestStore_StaleRevisionIsDropped(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec, _ := s.Insert(ctx, "original text")
	if _, err := s.UpdateText(ctx, rec.ID, "edited text"); err != nil {
		t.Fatalf("update text: %v", err)
	}
	if err := s.SetRisk(ctx, rec.ID, rec.Revision, 90); !errors.Is(err, ErrStaleRevision) {
		t.Fatalf("expected ErrStaleRevision, got %v", err)
	}
	got, _ := s.Get(rec.ID)
	if got.RiskScore != nil {
		t.Fatal("stale score must not be stored")
	}
}

func TestStore_AdviceClearsLoading(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec, _ := s.Insert(ctx, "some transcript")
	if err := s.SetAdviceLoading(ctx, rec.ID, rec.Revision, true); err != nil {
		t.Fatalf("set loading: %v", err)
	}
	got, _ := s.Get(rec.ID)
	if !got.IsAdviceLoading {
		t.Fatal("expected loading")
	}
	if err := s.SetAdvice(ctx, rec.ID, rec.Revision, "careful"); err != nil {
		t.Fatalf("set advice: %v", err)
	}
	got, _ = s.Get(rec.ID)
	if got.IsAdviceLoading || got.Advice == nil || *got.Advice != "careful" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestStore_WritesToDeletedRecordAreNoOps(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec, _ := s.Insert(ctx, "some transcript")
	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.SetRisk(ctx, rec.ID, rec.Revision, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(s.Snapshot()) != 0 {
		t.Fatal("deleted record must not reappear")
	}
}

func TestStore_CombineChronological(t *testing.T) {
	s := NewStore(WithClock(fixedClock()), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()
	a, _ := s.Insert(ctx, "你好")
	b, _ := s.Insert(ctx, "請轉帳")
	c, _ := s.Insert(ctx, "unrelated")

	var events []Event
	s.OnChange(func(ev Event) { events = append(events, ev) })

	combined, err := s.Combine(ctx, []string{b.ID, a.ID})
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if combined.Text != "你好，請轉帳" {
		t.Fatalf("unexpected combined text %q", combined.Text)
	}
	if combined.RiskScore != nil {
		t.Fatal("combined record must be unscored")
	}
	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].ID != combined.ID || snap[1].ID != c.ID {
		t.Fatalf("unexpected records after combine: %+v", snap)
	}
	if len(events) != 3 || events[0].Kind != EventInserted || events[1].Kind != EventDeleted || events[2].Kind != EventDeleted {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStore_CombineErrors(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if _, err := s.Combine(ctx, nil); !errors.Is(err, ErrNothingToCombine) {
		t.Fatalf("expected ErrNothingToCombine, got %v", err)
	}
	if _, err := s.Combine(ctx, []string{"missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, _ = s.Insert(ctx, "one")
	_, _ = s.Insert(ctx, "two")
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(s.Snapshot()) != 0 {
		t.Fatal("expected empty store")
	}
}

func TestStore_SubscribeSeesLatestSnapshot(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()
	<-ch
	if _, err := s.Insert(context.Background(), "hello there"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	select {
	case snap := <-ch:
		if len(snap) != 1 || snap[0].Text != "hello there" {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestStore_RepositoryWriteThrough(t *testing.T) {
	repo := newFakeRepository()
	s := NewStore(WithRepository(repo))
	ctx := context.Background()
	rec, err := s.Insert(ctx, "persist me")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.SetRisk(ctx, rec.ID, rec.Revision, 70); err != nil {
		t.Fatalf("set risk: %v", err)
	}
	row := repo.rows[rec.ID]
	if row.Text != "persist me" || row.RiskScore == nil || *row.RiskScore != 70 {
		t.Fatalf("unexpected persisted row: %+v", row)
	}

	other, _ := s.Insert(ctx, "second one")
	if _, err := s.Combine(ctx, []string{rec.ID, other.ID}); err != nil {
		t.Fatalf("combine: %v", err)
	}
	if len(repo.combined) != 1 || len(repo.rows) != 1 {
		t.Fatalf("expected one atomic combine, got %+v", repo.rows)
	}
}

func TestStore_RepositoryFailureLeavesMemoryUnchanged(t *testing.T) {
	repo := newFakeRepository()
	s := NewStore(WithRepository(repo))
	ctx := context.Background()
	rec, _ := s.Insert(ctx, "persist me")

	repo.fail = errors.New("disk full")
	if _, err := s.UpdateText(ctx, rec.ID, "changed"); err == nil {
		t.Fatal("expected repository error")
	}
	got, _ := s.Get(rec.ID)
	if got.Text != "persist me" {
		t.Fatalf("memory changed despite failure: %q", got.Text)
	}
	if _, err := s.Insert(ctx, "another"); err == nil {
		t.Fatal("expected insert error")
	}
	if len(s.Snapshot()) != 1 {
		t.Fatal("failed insert must not be visible")
	}
}

func TestStore_LoadClearsStaleLoading(t *testing.T) {
	repo := newFakeRepository()
	score := 90
	repo.rows["old"] = repository.TranscriptRecord{ID: "old", Text: "old text", RiskScore: &score, IsAdviceLoading: true, CreatedAt: time.Now()}
	s := NewStore(WithRepository(repo))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := s.Get("old")
	if !ok || got.IsAdviceLoading || got.RiskScore == nil || *got.RiskScore != 90 {
		t.Fatalf("unexpected loaded record: %+v", got)
	}
	if repo.rows["old"].IsAdviceLoading {
		t.Fatal("expected persisted loading flag cleared")
	}
	rec, _ := s.Insert(context.Background(), "new text")
	if !rec.CreatedAt.After(got.CreatedAt) {
		t.Fatal("new records must sort after loaded ones")
	}
}
