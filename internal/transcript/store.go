package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/scamwatch/internal/repository"
	"github.com/foxseedlab/scamwatch/internal/signal"
	"github.com/google/uuid"
)

const CombineSeparator = "，"

var (
	ErrNotFound         = errors.New("transcript not found")
	ErrEmptyText        = errors.New("transcript text is blank")
	ErrStaleRevision    = errors.New("transcript was edited since evaluation started")
	ErrNothingToCombine = errors.New("no transcripts selected to combine")
)

// Store keeps transcripts keyed by id. Every mutation is applied under a
// single lock, written through to the repository first when one is set,
// and then announced to observers after the lock is released.
type Store struct {
	mu          sync.Mutex
	records     map[string]*Record
	repo        repository.TranscriptRepository
	clock       func() time.Time
	newID       func() string
	lastCreated time.Time

	snapshot *signal.Value[[]Record]

	obsMu     sync.RWMutex
	observers []func(Event)
}

type Option func(*Store)

func WithRepository(repo repository.TranscriptRepository) Option {
	return func(s *Store) { s.repo = repo }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		records:  make(map[string]*Record),
		clock:    time.Now,
		newID:    uuid.NewString,
		snapshot: signal.New[[]Record](nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called synchronously after every committed
// mutation.
func (s *Store) OnChange(fn func(Event)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Load replaces the in-memory records with the repository contents.
// Advice that was in flight when the process last exited is never going
// to arrive, so its loading flag is cleared.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	rows, err := s.repo.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("load transcripts: %w", err)
	}

	s.mu.Lock()
	s.records = make(map[string]*Record, len(rows))
	for _, row := range rows {
		rec := fromRepository(row)
		if rec.IsAdviceLoading {
			if err := s.repo.UpdateLoading(ctx, rec.ID, false); err != nil {
				slog.Warn("failed to clear stale advice loading flag", "record_id", rec.ID, "error", err)
			}
			rec.IsAdviceLoading = false
		}
		if rec.CreatedAt.After(s.lastCreated) {
			s.lastCreated = rec.CreatedAt
		}
		s.records[rec.ID] = &rec
	}
	s.snapshot.Set(s.snapshotLocked())
	s.mu.Unlock()

	slog.Info("transcripts loaded", "count", len(rows))
	return nil
}

func (s *Store) Insert(ctx context.Context, text string) (Record, error) {
	if strings.TrimSpace(text) == "" {
		return Record{}, ErrEmptyText
	}
	s.mu.Lock()
	rec := Record{ID: s.newID(), Text: text, CreatedAt: s.nextCreatedAtLocked()}
	if s.repo != nil {
		if err := s.repo.InsertRecord(ctx, rec.toRepository()); err != nil {
			s.mu.Unlock()
			return Record{}, fmt.Errorf("insert transcript: %w", err)
		}
	}
	s.records[rec.ID] = &rec
	out := rec.clone()
	s.snapshot.Set(s.snapshotLocked())
	s.mu.Unlock()

	s.publish(Event{Kind: EventInserted, Record: out})
	return out, nil
}

// UpdateText replaces the text of id and resets its score and advice so the
// record is evaluated again.
func (s *Store) UpdateText(ctx context.Context, id, text string) (Record, error) {
	if strings.TrimSpace(text) == "" {
		return Record{}, ErrEmptyText
	}
	return s.mutate(ctx, id, EventTextUpdated, func(rec *Record) error {
		if s.repo != nil {
			if err := s.repo.UpdateText(ctx, id, text); err != nil {
				return err
			}
		}
		rec.Text = text
		rec.RiskScore = nil
		rec.Advice = nil
		rec.IsAdviceLoading = false
		rec.Revision++
		return nil
	})
}

// SetRisk stores a classification score for the given revision of id.
func (s *Store) SetRisk(ctx context.Context, id string, revision uint64, score int) error {
	_, err := s.mutate(ctx, id, EventRiskUpdated, func(rec *Record) error {
		if rec.Revision != revision {
			return ErrStaleRevision
		}
		if s.repo != nil {
			if err := s.repo.UpdateRisk(ctx, repository.UpdateRiskInput{ID: id, RiskScore: &score, Advice: rec.Advice}); err != nil {
				return err
			}
		}
		rec.RiskScore = &score
		return nil
	})
	return err
}

func (s *Store) SetAdviceLoading(ctx context.Context, id string, revision uint64, loading bool) error {
	_, err := s.mutate(ctx, id, EventLoadingUpdated, func(rec *Record) error {
		if rec.Revision != revision {
			return ErrStaleRevision
		}
		if s.repo != nil {
			if err := s.repo.UpdateLoading(ctx, id, loading); err != nil {
				return err
			}
		}
		rec.IsAdviceLoading = loading
		return nil
	})
	return err
}

// SetAdvice stores advice text and clears the loading flag.
func (s *Store) SetAdvice(ctx context.Context, id string, revision uint64, advice string) error {
	_, err := s.mutate(ctx, id, EventAdviceUpdated, func(rec *Record) error {
		if rec.Revision != revision {
			return ErrStaleRevision
		}
		if s.repo != nil {
			if err := s.repo.UpdateRisk(ctx, repository.UpdateRiskInput{ID: id, RiskScore: rec.RiskScore, Advice: &advice}); err != nil {
				return err
			}
			if rec.IsAdviceLoading {
				if err := s.repo.UpdateLoading(ctx, id, false); err != nil {
					return err
				}
			}
		}
		rec.Advice = &advice
		rec.IsAdviceLoading = false
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if s.repo != nil {
		if err := s.repo.DeleteRecord(ctx, id); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("delete transcript: %w", err)
		}
	}
	delete(s.records, id)
	out := rec.clone()
	s.snapshot.Set(s.snapshotLocked())
	s.mu.Unlock()

	s.publish(Event{Kind: EventDeleted, Record: out})
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.repo != nil {
		if err := s.repo.DeleteAll(ctx); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("clear transcripts: %w", err)
		}
	}
	s.records = make(map[string]*Record)
	s.snapshot.Set(nil)
	s.mu.Unlock()

	s.publish(Event{Kind: EventCleared})
	return nil
}

// Combine joins the texts of ids oldest first into one new record and
// removes the originals. The new record is announced as inserted before
// the originals are announced as deleted.
func (s *Store) Combine(ctx context.Context, ids []string) (Record, error) {
	s.mu.Lock()
	seen := make(map[string]struct{}, len(ids))
	var selected []*Record
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec, ok := s.records[id]
		if !ok {
			s.mu.Unlock()
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		selected = append(selected, rec)
	}
	if len(selected) == 0 {
		s.mu.Unlock()
		return Record{}, ErrNothingToCombine
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].CreatedAt.Before(selected[j].CreatedAt)
	})
	texts := make([]string, len(selected))
	removed := make([]string, len(selected))
	for i, rec := range selected {
		texts[i] = rec.Text
		removed[i] = rec.ID
	}

	combined := Record{ID: s.newID(), Text: strings.Join(texts, CombineSeparator), CreatedAt: s.nextCreatedAtLocked()}
	if s.repo != nil {
		err := s.repo.CombineRecords(ctx, repository.CombineRecordsInput{
			Combined:   combined.toRepository(),
			RemovedIDs: removed,
		})
		if err != nil {
			s.mu.Unlock()
			return Record{}, fmt.Errorf("combine transcripts: %w", err)
		}
	}
	s.records[combined.ID] = &combined
	events := []Event{{Kind: EventInserted, Record: combined.clone()}}
	for _, rec := range selected {
		delete(s.records, rec.ID)
		events = append(events, Event{Kind: EventDeleted, Record: rec.clone()})
	}
	s.snapshot.Set(s.snapshotLocked())
	s.mu.Unlock()

	s.publish(events...)
	return combined.clone(), nil
}

func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Snapshot returns all records, newest first.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe delivers the ordered snapshot after every change.
func (s *Store) Subscribe() (<-chan []Record, func()) {
	return s.snapshot.Subscribe()
}

func (s *Store) mutate(ctx context.Context, id string, kind EventKind, apply func(*Record) error) (Record, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return Record{}, ErrNotFound
	}
	next := rec.clone()
	if err := apply(&next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrStaleRevision) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%s transcript %s: %w", kind, id, err)
	}
	*rec = next
	out := next.clone()
	s.snapshot.Set(s.snapshotLocked())
	s.mu.Unlock()

	s.publish(Event{Kind: kind, Record: out})
	return out, nil
}

func (s *Store) snapshotLocked() []Record {
	list := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		list = append(list, rec.clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// nextCreatedAtLocked returns a strictly increasing timestamp with
// microsecond resolution so ordering survives a round trip through
// postgres.
func (s *Store) nextCreatedAtLocked() time.Time {
	t := s.clock().Truncate(time.Microsecond)
	if !t.After(s.lastCreated) {
		t = s.lastCreated.Add(time.Microsecond)
	}
	s.lastCreated = t
	return t
}

func (s *Store) publish(events ...Event) {
	s.obsMu.RLock()
	observers := append([]func(Event){}, s.observers...)
	s.obsMu.RUnlock()
	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}
