package shortener

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkkeeper/internal/cache"
	"github.com/sundayezeilo/linkkeeper/internal/errx"
)

/***************
 * Clock
 ***************/

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/***************
 * In-memory Store
 ***************/

// memStore is a mutex-guarded Store. Each method is atomic, mirroring the
// per-operation transactions of the Postgres store.
type memStore struct {
	mu       sync.Mutex
	links    map[string]Link
	calls    map[string]int
	failWith map[string]error
}

func newMemStore(links ...Link) *memStore {
	m := &memStore{
		links:    make(map[string]Link),
		calls:    make(map[string]int),
		failWith: make(map[string]error),
	}
	for _, l := range links {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		m.links[l.ShortCode] = l
	}
	return m
}

// enter locks the store and records the call; the caller must unlock.
func (m *memStore) enter(method string) error {
	m.mu.Lock()
	m.calls[method]++
	return m.failWith[method]
}

func (m *memStore) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *memStore) fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith[method] = err
}

func (m *memStore) snapshot(code string) (Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[code]
	return l, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

func notFound(op string) error { return errx.E(op, errx.NotFound, ErrLinkNotFound) }

func (m *memStore) Get(_ context.Context, code string) (Link, error) {
	defer m.mu.Unlock()
	if err := m.enter("Get"); err != nil {
		return Link{}, err
	}
	l, ok := m.links[code]
	if !ok || !l.IsActive {
		return Link{}, notFound("memStore.Get")
	}
	return l, nil
}

func (m *memStore) Exists(_ context.Context, code string) (bool, error) {
	defer m.mu.Unlock()
	if err := m.enter("Exists"); err != nil {
		return false, err
	}
	_, ok := m.links[code]
	return ok, nil
}

func (m *memStore) Insert(_ context.Context, link Link) (Link, error) {
	defer m.mu.Unlock()
	if err := m.enter("Insert"); err != nil {
		return Link{}, err
	}
	if _, ok := m.links[link.ShortCode]; ok {
		return Link{}, errx.E("memStore.Insert", errx.Conflict, ErrAliasTaken)
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.IsActive = true
	m.links[link.ShortCode] = link
	return link, nil
}

func (m *memStore) Update(_ context.Context, code string, mutate func(Link) (Link, error)) (Link, error) {
	defer m.mu.Unlock()
	if err := m.enter("Update"); err != nil {
		return Link{}, err
	}
	current, ok := m.links[code]
	if !ok || !current.IsActive {
		return Link{}, notFound("memStore.Update")
	}
	next, err := mutate(current)
	if err != nil {
		return Link{}, err
	}
	m.links[code] = next
	return next, nil
}

func (m *memStore) Delete(_ context.Context, code string, authorize func(Link) error) (bool, error) {
	defer m.mu.Unlock()
	if err := m.enter("Delete"); err != nil {
		return false, err
	}
	current, ok := m.links[code]
	if !ok {
		return false, nil
	}
	if err := authorize(current); err != nil {
		return false, err
	}
	delete(m.links, code)
	return true, nil
}

func (m *memStore) IncrementClicks(_ context.Context, code string, at time.Time) (Link, bool, error) {
	defer m.mu.Unlock()
	if err := m.enter("IncrementClicks"); err != nil {
		return Link{}, false, err
	}
	l, ok := m.links[code]
	if !ok || !l.IsActive {
		return Link{}, false, nil
	}
	l.Clicks++
	l.LastUsedAt = ptr(at)
	m.links[code] = l
	return l, true, nil
}

func (m *memStore) FindByOriginalURL(_ context.Context, originalURL string) ([]Link, error) {
	defer m.mu.Unlock()
	if err := m.enter("FindByOriginalURL"); err != nil {
		return nil, err
	}
	var out []Link
	for _, l := range m.links {
		if l.IsActive && l.OriginalURL == originalURL {
			out = append(out, l)
		}
	}
	sortByCode(out)
	return out, nil
}

func (m *memStore) ListInactive(_ context.Context) ([]Link, error) {
	defer m.mu.Unlock()
	if err := m.enter("ListInactive"); err != nil {
		return nil, err
	}
	var out []Link
	for _, l := range m.links {
		if !l.IsActive {
			out = append(out, l)
		}
	}
	sortByCode(out)
	return out, nil
}

func (m *memStore) Deactivate(_ context.Context, rule Rule, now time.Time) ([]string, error) {
	defer m.mu.Unlock()
	if err := m.enter("Deactivate"); err != nil {
		return nil, err
	}
	var codes []string
	for code, l := range m.links {
		if l.IsActive && rule.Match(l, now) {
			l.IsActive = false
			l.UpdatedAt = now
			m.links[code] = l
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func sortByCode(links []Link) {
	sort.Slice(links, func(i, j int) bool { return links[i].ShortCode < links[j].ShortCode })
}

/***************
 * Cache
 ***************/

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	gets    int
	sets    int
	deletes int
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	for _, k := range keys {
		delete(c.data, k)
		delete(c.ttls, k)
	}
	return nil
}

func (c *fakeCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *fakeCache) entry(key string) (string, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, c.ttls[key], ok
}

/***************
 * Repository mock
 ***************/

type mockRepository struct {
	getLinkFunc      func(ctx context.Context, code string) (Link, error)
	codeTakenFunc    func(ctx context.Context, code string) (bool, error)
	createLinkFunc   func(ctx context.Context, link Link) (Link, error)
	updateLinkFunc   func(ctx context.Context, code string, upd LinkUpdate, by string) (Link, error)
	deleteLinkFunc   func(ctx context.Context, code string, by string) (bool, error)
	recordClickFunc  func(ctx context.Context, code string) error
	getLinkStatsFunc func(ctx context.Context, code string, by string) (Link, error)
	searchFunc       func(ctx context.Context, originalURL string) ([]Link, error)
	listExpiredFunc  func(ctx context.Context) ([]Link, error)
	deactivateFunc   func(ctx context.Context, rule Rule) ([]string, error)

	mu          sync.Mutex
	createCalls int
	clickCalls  int
	evicted     []string
}

func (m *mockRepository) GetLink(ctx context.Context, code string) (Link, error) {
	if m.getLinkFunc != nil {
		return m.getLinkFunc(ctx, code)
	}
	return Link{}, notFound("mockRepository.GetLink")
}

func (m *mockRepository) CodeTaken(ctx context.Context, code string) (bool, error) {
	if m.codeTakenFunc != nil {
		return m.codeTakenFunc(ctx, code)
	}
	return false, nil
}

func (m *mockRepository) CreateLink(ctx context.Context, link Link) (Link, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.createLinkFunc != nil {
		return m.createLinkFunc(ctx, link)
	}
	link.ID = uuid.New()
	link.IsActive = true
	return link, nil
}

func (m *mockRepository) UpdateLink(ctx context.Context, code string, upd LinkUpdate, by string) (Link, error) {
	if m.updateLinkFunc != nil {
		return m.updateLinkFunc(ctx, code, upd, by)
	}
	return Link{}, notFound("mockRepository.UpdateLink")
}

func (m *mockRepository) DeleteLink(ctx context.Context, code string, by string) (bool, error) {
	if m.deleteLinkFunc != nil {
		return m.deleteLinkFunc(ctx, code, by)
	}
	return false, nil
}

func (m *mockRepository) RecordClick(ctx context.Context, code string) error {
	m.mu.Lock()
	m.clickCalls++
	m.mu.Unlock()
	if m.recordClickFunc != nil {
		return m.recordClickFunc(ctx, code)
	}
	return nil
}

func (m *mockRepository) GetLinkStats(ctx context.Context, code string, by string) (Link, error) {
	if m.getLinkStatsFunc != nil {
		return m.getLinkStatsFunc(ctx, code, by)
	}
	return Link{}, notFound("mockRepository.GetLinkStats")
}

func (m *mockRepository) SearchByOriginalURL(ctx context.Context, originalURL string) ([]Link, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, originalURL)
	}
	return nil, nil
}

func (m *mockRepository) ListExpired(ctx context.Context) ([]Link, error) {
	if m.listExpiredFunc != nil {
		return m.listExpiredFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepository) CheckExpiredLinks(ctx context.Context) ([]string, error) {
	return m.Deactivate(ctx, ExpiredRule())
}

func (m *mockRepository) CheckUnusedLinks(ctx context.Context) ([]string, error) {
	return m.Deactivate(ctx, UnusedRule(DefaultUnusedThreshold))
}

func (m *mockRepository) Deactivate(ctx context.Context, rule Rule) ([]string, error) {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, rule)
	}
	return nil, nil
}

func (m *mockRepository) Evict(_ context.Context, codes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted = append(m.evicted, codes...)
}

func (m *mockRepository) evictedCodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.evicted...)
}

/***************
 * Code generator mock
 ***************/

type mockCodeGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
	err   error
}

func (g *mockCodeGenerator) Generate(length int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if len(g.codes) == 0 {
		return "", io.ErrUnexpectedEOF
	}
	code := g.codes[0]
	if len(g.codes) > 1 {
		g.codes = g.codes[1:]
	}
	return code, nil
}

/***************
 * Fixtures
 ***************/

func makeLink(code, owner string, createdAt time.Time) Link {
	l := Link{
		ID:          uuid.New(),
		ShortCode:   code,
		OriginalURL: "https://example.com/" + code,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		IsActive:    true,
	}
	if owner != "" {
		l.CreatedBy = ptr(owner)
	}
	return l
}
