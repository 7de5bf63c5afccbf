package quota

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/monuchauhan/InstaBot/internal/store"
)

// Unlimited disables the daily cap when passed as a limit.
const Unlimited int64 = -1

// Decision is the result of a test-and-increment.
type Decision struct {
	Allowed bool
	// Count is the counter after the call. Zero when denied by the store.
	Count int64
	// Day is the UTC calendar day the slot was taken from. Release needs it.
	Day time.Time
}

// Tracker counts dispatched actions per account per UTC day.
type Tracker interface {
	// TestAndIncrement takes one slot if today's count is below limit. A negative
	// limit is unlimited; zero always denies.
	TestAndIncrement(ctx context.Context, accountID int64, limit int64) (Decision, error)
	// Release gives back a slot taken on day. The counter never drops below zero.
	Release(ctx context.Context, accountID int64, day time.Time) error
	Count(ctx context.Context, accountID int64, day time.Time) (int64, error)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type storeTracker struct {
	quotas store.QuotaStore
	now    func() time.Time
}

// NewStoreTracker returns a Tracker that keeps counters in Postgres. Each call is
// a single conditional upsert so concurrent workers never over-count.
func NewStoreTracker(quotas store.QuotaStore) Tracker {
	return &storeTracker{quotas: quotas, now: time.Now}
}

func (t *storeTracker) TestAndIncrement(ctx context.Context, accountID int64, limit int64) (Decision, error) {
	day := Day(t.now())

	if limit < 0 {
		count, err := t.quotas.Increment(ctx, accountID, day)
		if err != nil {
			return Decision{}, fmt.Errorf("incrementing quota: %w", err)
		}
		return Decision{Allowed: true, Count: int64(count), Day: day}, nil
	}

	if limit > math.MaxInt32 {
		limit = math.MaxInt32
	}
	count, allowed, err := t.quotas.IncrementBelow(ctx, accountID, day, int32(limit))
	if err != nil {
		return Decision{}, fmt.Errorf("incrementing quota: %w", err)
	}
	return Decision{Allowed: allowed, Count: int64(count), Day: day}, nil
}

func (t *storeTracker) Release(ctx context.Context, accountID int64, day time.Time) error {
	if err := t.quotas.Release(ctx, accountID, Day(day)); err != nil {
		return fmt.Errorf("releasing quota: %w", err)
	}
	return nil
}

func (t *storeTracker) Count(ctx context.Context, accountID int64, day time.Time) (int64, error) {
	count, err := t.quotas.Count(ctx, accountID, Day(day))
	if err != nil {
		return 0, fmt.Errorf("reading quota: %w", err)
	}
	return int64(count), nil
}

type counterKey struct {
	accountID int64
	day       time.Time
}

// MemoryTracker keeps counters in process. Locking is per account so unrelated
// accounts never contend.
type MemoryTracker struct {
	mu       sync.Mutex
	accounts map[int64]*sync.Mutex
	counts   sync.Map // counterKey -> *int64, guarded by the account lock
	now      func() time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{accounts: make(map[int64]*sync.Mutex), now: time.Now}
}

// WithClock replaces the time source. Used by tests to move across day boundaries.
func (t *MemoryTracker) WithClock(now func() time.Time) *MemoryTracker {
	t.now = now
	return t
}

func (t *MemoryTracker) lock(accountID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.accounts[accountID]
	if !ok {
		l = &sync.Mutex{}
		t.accounts[accountID] = l
	}
	return l
}

func (t *MemoryTracker) counter(key counterKey) *int64 {
	v, _ := t.counts.LoadOrStore(key, new(int64))
	return v.(*int64)
}

func (t *MemoryTracker) TestAndIncrement(_ context.Context, accountID int64, limit int64) (Decision, error) {
	day := Day(t.now())
	l := t.lock(accountID)
	l.Lock()
	defer l.Unlock()

	c := t.counter(counterKey{accountID: accountID, day: day})
	if limit >= 0 && *c >= limit {
		return Decision{Allowed: false, Count: *c, Day: day}, nil
	}
	*c++
	return Decision{Allowed: true, Count: *c, Day: day}, nil
}

func (t *MemoryTracker) Release(_ context.Context, accountID int64, day time.Time) error {
	l := t.lock(accountID)
	l.Lock()
	defer l.Unlock()

	c := t.counter(counterKey{accountID: accountID, day: Day(day)})
	if *c > 0 {
		*c--
	}
	return nil
}

func (t *MemoryTracker) Count(_ context.Context, accountID int64, day time.Time) (int64, error) {
	l := t.lock(accountID)
	l.Lock()
	defer l.Unlock()
	return *t.counter(counterKey{accountID: accountID, day: Day(day)}), nil
}

// Set forces a counter value. Test helper.
func (t *MemoryTracker) Set(accountID int64, day time.Time, count int64) {
	l := t.lock(accountID)
	l.Lock()
	defer l.Unlock()
	*t.counter(counterKey{accountID: accountID, day: Day(day)}) = count
}
