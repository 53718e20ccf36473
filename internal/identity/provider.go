package identity

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradewire/tradewire/internal/auth"
	"github.com/tradewire/tradewire/internal/profile"
)

// User identifies the authenticated account.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// RecordSource reads canonical records from the record store.
type RecordSource interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.Record, error)
}

// RecordCache is an optional shared cache in front of the record store. A
// (nil, nil) Get result means a miss.
type RecordCache interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.Record, error)
	Set(ctx context.Context, rec *profile.Record, ttl time.Duration) error
}

// Subscriber is notified when a user's canonical record changes. Open edit
// buffers subscribe to re-seed themselves.
type Subscriber interface {
	Reseed(rec *profile.Record)
}

// DefaultCacheTTL matches how long a cached canonical record may serve reads
// before falling through to the store.
const DefaultCacheTTL = 15 * time.Minute

// Provider is the identity provider: it owns the in-process copy of each
// user's canonical record, refreshes it from the store on demand, and
// broadcasts changes to subscribers. RefreshProfile is the reconcile step of
// every save and must be awaited before a save is declared complete.
type Provider struct {
	source RecordSource
	cache  RecordCache
	ttl    time.Duration

	mu      sync.RWMutex
	records map[uuid.UUID]*profile.Record
	subs    map[uuid.UUID][]Subscriber
}

func NewProvider(source RecordSource, cache RecordCache) *Provider {
	return &Provider{
		source:  source,
		cache:   cache,
		ttl:     DefaultCacheTTL,
		records: make(map[uuid.UUID]*profile.Record),
		subs:    make(map[uuid.UUID][]Subscriber),
	}
}

// CurrentUser resolves the authenticated user from the request context.
func (p *Provider) CurrentUser(ctx context.Context) (User, bool) {
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok || uid == uuid.Nil {
		return User{}, false
	}
	u := User{ID: uid}
	p.mu.RLock()
	if rec, ok := p.records[uid]; ok {
		u.Email = rec.Email
	}
	p.mu.RUnlock()
	return u, true
}

// Profile returns the last known canonical record without any fetch, or nil
// if none was loaded yet.
func (p *Provider) Profile(id uuid.UUID) *profile.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.records[id]
}

// GetProfile returns the canonical record, serving from the in-process copy,
// then the shared cache, then the record store.
func (p *Provider) GetProfile(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	p.mu.RLock()
	rec, ok := p.records[id]
	p.mu.RUnlock()
	if ok {
		return rec, nil
	}

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, id)
		if err != nil {
			log.Printf("record cache get %s: %v", id, err)
		} else if cached != nil {
			p.mu.Lock()
			p.records[id] = cached
			p.mu.Unlock()
			return cached, nil
		}
	}

	return p.RefreshProfile(ctx, id)
}

// RefreshProfile re-fetches the canonical record from the store, writes it
// through to the shared cache, replaces the in-process copy, and broadcasts
// the change to subscribers. Cache write failures are logged, not fatal: the
// store fetch is the authoritative part of the reconcile.
func (p *Provider) RefreshProfile(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	rec, err := p.source.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if cerr := p.cache.Set(ctx, rec, p.ttl); cerr != nil {
			log.Printf("record cache set %s: %v", id, cerr)
		}
	}

	p.mu.Lock()
	p.records[id] = rec
	subs := make([]Subscriber, len(p.subs[id]))
	copy(subs, p.subs[id])
	p.mu.Unlock()

	for _, s := range subs {
		s.Reseed(rec)
	}
	return rec, nil
}

// Subscribe registers a subscriber for one user's record changes and returns
// an unsubscribe func.
func (p *Provider) Subscribe(id uuid.UUID, s Subscriber) func() {
	p.mu.Lock()
	p.subs[id] = append(p.subs[id], s)
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		list := p.subs[id]
		for i, cur := range list {
			if cur == s {
				p.subs[id] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Invalidate drops the in-process copy so the next read falls through to the
// cache/store. Used after external writes outside the save coordinator.
func (p *Provider) Invalidate(id uuid.UUID) {
	p.mu.Lock()
	delete(p.records, id)
	p.mu.Unlock()
}
