package maintenance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"notegraph/backend/internal/graph"
	"notegraph/backend/pkg/config"
	apperrors "notegraph/backend/pkg/errors"
)

type fakeStore struct {
	pairs    []graph.DuplicatePair
	gotLimit int

	gotSurvivor string
	gotRemove   string
	mergeMoved  int64
	mergeErr    error
	mergeDelay  time.Duration
	mergeActive int32
	overlapped  int32

	gotVariant     graph.NodeVariant
	orphansRemoved int64

	gotSessionID string
	gotKeep      int
	trimDeleted  int64
	gotAllKeep   int

	gotUserID        string
	gotKeyword       string
	gotSummary       string
	consolidateID    string
	consolidateCount int64

	stats *graph.GraphStats
}

func (f *fakeStore) FindDuplicateEntities(ctx context.Context, limit int) ([]graph.DuplicatePair, error) {
	f.gotLimit = limit
	return f.pairs, nil
}

func (f *fakeStore) MergeEntities(ctx context.Context, survivorID, removeID string) (int64, error) {
	if atomic.AddInt32(&f.mergeActive, 1) > 1 {
		atomic.StoreInt32(&f.overlapped, 1)
	}
	if f.mergeDelay > 0 {
		time.Sleep(f.mergeDelay)
	}
	f.gotSurvivor = survivorID
	f.gotRemove = removeID
	atomic.AddInt32(&f.mergeActive, -1)
	return f.mergeMoved, f.mergeErr
}

func (f *fakeStore) RemoveOrphans(ctx context.Context, variant graph.NodeVariant) (int64, error) {
	f.gotVariant = variant
	return f.orphansRemoved, nil
}

func (f *fakeStore) TrimSessionMessages(ctx context.Context, sessionID string, keep int) (int64, error) {
	f.gotSessionID = sessionID
	f.gotKeep = keep
	return f.trimDeleted, nil
}

func (f *fakeStore) TrimAllSessions(ctx context.Context, keep int) (int64, error) {
	f.gotAllKeep = keep
	return f.trimDeleted, nil
}

func (f *fakeStore) ConsolidateByTopic(ctx context.Context, userID, keyword, summaryText string) (string, int64, error) {
	f.gotUserID = userID
	f.gotKeyword = keyword
	f.gotSummary = summaryText
	return f.consolidateID, f.consolidateCount, nil
}

func (f *fakeStore) Stats(ctx context.Context) (*graph.GraphStats, error) {
	return f.stats, nil
}

func newTestOperator(store Store) *Operator {
	return NewOperator(store, &config.Config{SessionKeepRecent: 5})
}

func TestMergeEntities_SurvivorMustBeInPair(t *testing.T) {
	op := newTestOperator(&fakeStore{})

	_, err := op.MergeEntities(context.Background(), "e1", "e2", "e3")
	if !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument for outside survivor, got %v", err)
	}
}

func TestMergeEntities_RejectsIdenticalPair(t *testing.T) {
	op := newTestOperator(&fakeStore{})

	_, err := op.MergeEntities(context.Background(), "e1", "e1", "e1")
	if !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument for a degenerate pair, got %v", err)
	}
}

func TestMergeEntities_RemovesTheOtherOne(t *testing.T) {
	store := &fakeStore{mergeMoved: 3}
	op := newTestOperator(store)

	moved, err := op.MergeEntities(context.Background(), "e1", "e2", "e2")
	if err != nil {
		t.Fatalf("MergeEntities failed: %v", err)
	}
	if moved != 3 {
		t.Errorf("expected 3 moved edges, got %d", moved)
	}
	if store.gotSurvivor != "e2" || store.gotRemove != "e1" {
		t.Errorf("expected survivor e2 and loser e1, got %s / %s", store.gotSurvivor, store.gotRemove)
	}
}

func TestMergeEntities_OverlappingMergesSerialize(t *testing.T) {
	store := &fakeStore{mergeDelay: 20 * time.Millisecond}
	op := newTestOperator(store)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := op.MergeEntities(context.Background(), "e1", "e2", "e1"); err != nil {
				t.Errorf("MergeEntities failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&store.overlapped) != 0 {
		t.Error("merges on the same pair ran concurrently")
	}
}

func TestMergeEntities_ReleasesEntityLocks(t *testing.T) {
	store := &fakeStore{mergeDelay: 5 * time.Millisecond}
	op := newTestOperator(store)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := op.MergeEntities(context.Background(), "e1", "e2", "e1"); err != nil {
				t.Errorf("MergeEntities failed: %v", err)
			}
		}()
	}
	wg.Wait()

	op.mu.Lock()
	remaining := len(op.locks)
	op.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected the lock map drained after the merges, got %d entries", remaining)
	}
}

func TestMergeEntities_StoreErrorPassesThrough(t *testing.T) {
	wantErr := errors.New("merge exploded")
	op := newTestOperator(&fakeStore{mergeErr: wantErr})

	_, err := op.MergeEntities(context.Background(), "e1", "e2", "e1")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected the store error, got %v", err)
	}
}

func TestDetectDuplicates_DefaultLimit(t *testing.T) {
	store := &fakeStore{pairs: []graph.DuplicatePair{{AID: "e1", BID: "e2", Exact: true}}}
	op := newTestOperator(store)

	pairs, err := op.DetectDuplicates(context.Background(), 0)
	if err != nil {
		t.Fatalf("DetectDuplicates failed: %v", err)
	}
	if store.gotLimit != defaultDuplicateLimit {
		t.Errorf("expected default limit %d, got %d", defaultDuplicateLimit, store.gotLimit)
	}
	if len(pairs) != 1 {
		t.Errorf("expected 1 pair, got %d", len(pairs))
	}
}

func TestTrimSession_DefaultsToConfiguredKeep(t *testing.T) {
	store := &fakeStore{trimDeleted: 7}
	op := newTestOperator(store)

	deleted, err := op.TrimSession(context.Background(), "s1", 0)
	if err != nil {
		t.Fatalf("TrimSession failed: %v", err)
	}
	if deleted != 7 {
		t.Errorf("expected 7 deleted, got %d", deleted)
	}
	if store.gotKeep != 5 {
		t.Errorf("expected configured keep 5, got %d", store.gotKeep)
	}
}

func TestTrimSession_RequiresSessionID(t *testing.T) {
	op := newTestOperator(&fakeStore{})

	_, err := op.TrimSession(context.Background(), "", 10)
	if !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestTrimAllSessions_UsesConfiguredKeep(t *testing.T) {
	store := &fakeStore{}
	op := newTestOperator(store)

	if _, err := op.TrimAllSessions(context.Background()); err != nil {
		t.Fatalf("TrimAllSessions failed: %v", err)
	}
	if store.gotAllKeep != 5 {
		t.Errorf("expected configured keep 5, got %d", store.gotAllKeep)
	}
}

func TestConsolidateByTopic_Validation(t *testing.T) {
	op := newTestOperator(&fakeStore{})

	cases := []struct {
		name    string
		user    string
		keyword string
		summary string
	}{
		{"missing user", "", "travel", "summary"},
		{"missing keyword", "u1", "", "summary"},
		{"missing summary", "u1", "travel", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := op.ConsolidateByTopic(context.Background(), tc.user, tc.keyword, tc.summary)
			if !apperrors.IsInvalidArgument(err) {
				t.Errorf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestConsolidateByTopic_NothingToDo(t *testing.T) {
	store := &fakeStore{consolidateID: "", consolidateCount: 0}
	op := newTestOperator(store)

	id, n, err := op.ConsolidateByTopic(context.Background(), "u1", "travel", "trip summary")
	if err != nil {
		t.Fatalf("ConsolidateByTopic failed: %v", err)
	}
	if id != "" || n != 0 {
		t.Errorf("expected a no-op, got id %q count %d", id, n)
	}
}

func TestRemoveOrphans_PassesVariant(t *testing.T) {
	store := &fakeStore{orphansRemoved: 2}
	op := newTestOperator(store)

	removed, err := op.RemoveOrphans(context.Background(), graph.VariantTag)
	if err != nil {
		t.Fatalf("RemoveOrphans failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if store.gotVariant != graph.VariantTag {
		t.Errorf("expected tag variant, got %s", store.gotVariant)
	}
}

func TestSnapshot(t *testing.T) {
	store := &fakeStore{stats: &graph.GraphStats{
		NodeCounts:     map[string]int64{"Note": 10, "Entity": 4},
		RelationCounts: map[string]int64{"MENTIONS": 6},
		OrphanCount:    1,
		GeneratedAt:    time.Now().UTC(),
	}}
	op := newTestOperator(store)

	if _, ok := op.CachedSnapshot(); ok {
		t.Error("expected no cached snapshot before the first run")
	}

	stats, err := op.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if stats.NodeCounts["Note"] != 10 || stats.OrphanCount != 1 {
		t.Errorf("unexpected snapshot: %+v", stats)
	}

	cached, ok := op.CachedSnapshot()
	if !ok || cached.OrphanCount != 1 {
		t.Errorf("expected the snapshot cached, got %+v", cached)
	}
}
