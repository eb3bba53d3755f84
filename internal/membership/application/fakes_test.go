package application

import (
	"context"
	"sync"

	"github.com/axyra/membership/internal/membership/domain"
)

// fakeDocumentStore answers usage queries from fixed values.
type fakeDocumentStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	sums     map[string]float64
	errs     map[string]error
	filters  map[string]domain.Filter
	blockFor string
	started  chan struct{}
	// release, when set, lets the blocked query finish with its value
	// instead of waiting for cancellation.
	release chan struct{}
	blocked bool
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		counts:  make(map[string]int64),
		sums:    make(map[string]float64),
		errs:    make(map[string]error),
		filters: make(map[string]domain.Filter),
	}
}

func (f *fakeDocumentStore) ReadDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	return nil, domain.ErrDocumentNotFound
}

func (f *fakeDocumentStore) WriteDocument(ctx context.Context, collection, id string, patch domain.Document) error {
	return nil
}

func (f *fakeDocumentStore) CountWhere(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	f.mu.Lock()
	f.filters[collection] = filter
	block := f.blockFor == collection && !f.blocked
	if block {
		f.blocked = true
	}
	err := f.errs[collection]
	count := f.counts[collection]
	f.mu.Unlock()

	if block {
		close(f.started)
		select {
		case <-f.release:
			return count, err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return count, err
}

func (f *fakeDocumentStore) setCount(collection string, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[collection] = n
}

func (f *fakeDocumentStore) SumWhere(ctx context.Context, collection string, filter domain.Filter, field string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters[collection] = filter
	return f.sums[collection], f.errs[collection]
}

func (f *fakeDocumentStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	return nil, nil
}

func (f *fakeDocumentStore) filterFor(collection string) domain.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filters[collection]
}

// fakeSubscriptionRepo keeps subscriptions in memory.
type fakeSubscriptionRepo struct {
	mu         sync.Mutex
	subs       map[string]*domain.Subscription
	findErr    error
	saves      int
	usageSaves int
	// onSaveUsage runs before each usage write, outside the lock.
	onSaveUsage func()
}

func newFakeSubscriptionRepo(subs ...*domain.Subscription) *fakeSubscriptionRepo {
	r := &fakeSubscriptionRepo{subs: make(map[string]*domain.Subscription)}
	for _, s := range subs {
		r.subs[s.UserID] = s.Clone()
	}
	return r
}

func (r *fakeSubscriptionRepo) FindByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	sub, ok := r.subs[userID]
	if !ok {
		return nil, nil
	}
	return sub.Clone(), nil
}

func (r *fakeSubscriptionRepo) Save(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.subs[sub.UserID] = sub.Clone()
	return nil
}

func (r *fakeSubscriptionRepo) SaveUsage(ctx context.Context, sub *domain.Subscription) error {
	if r.onSaveUsage != nil {
		r.onSaveUsage()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usageSaves++
	stored, ok := r.subs[sub.UserID]
	if !ok {
		stored = sub.Clone()
	}
	stored.Usage = sub.Clone().Usage
	stored.UsageUpdatedAt = sub.UsageUpdatedAt
	r.subs[sub.UserID] = stored
	return nil
}

func (r *fakeSubscriptionRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeSubscriptionRepo) setFindErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

// fakeKV is an in-memory key-value store. It remembers which keys were
// written without expiry.
type fakeKV struct {
	mu         sync.Mutex
	data       map[string]string
	persistent map[string]bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string), persistent: make(map[string]bool)}
}

func (k *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return v, ok, nil
}

func (k *fakeKV) Set(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	k.persistent[key] = false
	return nil
}

func (k *fakeKV) SetPersistent(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	k.persistent[key] = true
	return nil
}

func (k *fakeKV) isPersistent(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.persistent[key]
}

func (k *fakeKV) Remove(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	delete(k.persistent, key)
	return nil
}

type staticAuth string

func (a staticAuth) CurrentUserID(ctx context.Context) string { return string(a) }

type notification struct {
	event   string
	payload any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(ctx context.Context, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{event: event, payload: payload})
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.event)
	}
	return out
}
