package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tradewire/tradewire/internal/profile"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	rec   *profile.Record
	err   error
}

func (f *fakeSource) Get(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCache struct {
	rec    *profile.Record
	getErr error
	setErr error
	sets   int
}

func (f *fakeCache) Get(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.rec, nil
}

func (f *fakeCache) Set(ctx context.Context, rec *profile.Record, ttl time.Duration) error {
	f.sets++
	f.rec = rec
	return f.setErr
}

func testRecord() *profile.Record {
	return &profile.Record{
		ID:       uuid.New(),
		Email:    "jamie@example.com",
		FullName: "Jamie Watts",
		Role:     profile.Apprentice{Year: 2, Level: "level2", ECSCardStatus: "applied"},
	}
}

func TestGetProfileServesFromCacheBeforeStore(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	cache := &fakeCache{rec: rec}
	p := NewProvider(src, cache)

	got, err := p.GetProfile(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.Email != rec.Email {
		t.Fatalf("record mismatch: %+v", got)
	}
	if src.callCount() != 0 {
		t.Fatalf("cache hit must not reach the store, got %d calls", src.callCount())
	}
}

func TestGetProfileCacheMissFallsThroughAndWritesBack(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	cache := &fakeCache{}
	p := NewProvider(src, cache)

	if _, err := p.GetProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if src.callCount() != 1 {
		t.Fatalf("expected one store fetch, got %d", src.callCount())
	}
	if cache.sets != 1 {
		t.Fatalf("expected write-through to cache, got %d sets", cache.sets)
	}
}

func TestGetProfileServesInProcessCopyWithoutRefetch(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	p := NewProvider(src, nil)

	if _, err := p.GetProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := p.GetProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if src.callCount() != 1 {
		t.Fatalf("expected a single store fetch, got %d", src.callCount())
	}
}

func TestRefreshProfileSurvivesCacheWriteFailure(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	cache := &fakeCache{setErr: errors.New("redis down")}
	p := NewProvider(src, cache)

	got, err := p.RefreshProfile(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("refresh must not fail on cache write error: %v", err)
	}
	if got.Email != rec.Email {
		t.Fatalf("record mismatch: %+v", got)
	}
}

func TestRefreshProfilePropagatesStoreError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	p := NewProvider(src, nil)

	if _, err := p.RefreshProfile(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestRefreshProfileReseedsCleanBuffer(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	p := NewProvider(src, nil)

	buf := profile.NewEditBuffer(profile.SectionApprentice)
	if err := buf.Open(rec); err != nil {
		t.Fatalf("open buffer: %v", err)
	}
	unsub := p.Subscribe(rec.ID, buf)
	defer unsub()

	changed := testRecord()
	changed.ID = rec.ID
	changed.Role = profile.Apprentice{Year: 3, Level: "level3", ECSCardStatus: "received"}
	src.rec = changed

	if _, err := p.RefreshProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if level, _ := buf.Field(profile.FieldApprenticeLevel); level != "level3" {
		t.Fatalf("clean buffer not reseeded: level=%v", level)
	}
}

func TestRefreshProfileLeavesDirtyBufferAlone(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	p := NewProvider(src, nil)

	buf := profile.NewEditBuffer(profile.SectionApprentice)
	if err := buf.Open(rec); err != nil {
		t.Fatalf("open buffer: %v", err)
	}
	if err := buf.SetField(profile.FieldSupervisorName, "Pat"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	unsub := p.Subscribe(rec.ID, buf)
	defer unsub()

	changed := testRecord()
	changed.ID = rec.ID
	changed.Role = profile.Apprentice{Year: 3, SupervisorName: "Lee"}
	src.rec = changed

	if _, err := p.RefreshProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if name, _ := buf.Field(profile.FieldSupervisorName); name != "Pat" {
		t.Fatalf("dirty draft was clobbered by refresh: %v", name)
	}
}

func TestUnsubscribeStopsBroadcasts(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	p := NewProvider(src, nil)

	buf := profile.NewEditBuffer(profile.SectionApprentice)
	if err := buf.Open(rec); err != nil {
		t.Fatalf("open buffer: %v", err)
	}
	unsub := p.Subscribe(rec.ID, buf)
	unsub()

	changed := testRecord()
	changed.ID = rec.ID
	changed.Role = profile.Apprentice{Year: 4, Level: "level4"}
	src.rec = changed

	if _, err := p.RefreshProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if level, _ := buf.Field(profile.FieldApprenticeLevel); level == "level4" {
		t.Fatalf("unsubscribed buffer still received reseed")
	}
}

func TestInvalidateDropsInProcessCopy(t *testing.T) {
	rec := testRecord()
	src := &fakeSource{rec: rec}
	p := NewProvider(src, nil)

	if _, err := p.GetProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	p.Invalidate(rec.ID)
	if _, err := p.GetProfile(context.Background(), rec.ID); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if src.callCount() != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", src.callCount())
	}
}
