// Package dedupe suppresses repeated submissions inside a time window.
package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/diarisk/internal/domain/model"
)

// Defaults used by NewInMemoryDeduper.
const (
	DefaultMaxSize = 50000
	DefaultWindow  = 10 * time.Second
)

// Deduper records submission keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether key is live and records it with
	// value if not. When key was already seen it returns the value recorded
	// first and true.
	SeenAndRecord(ctx context.Context, key, value string) (string, bool)

	// Unrecord forgets key so a failed submission can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key   string
	value string
	at    time.Time
}

// inMemoryDeduper keeps keys in insertion order. The oldest entry is evicted
// when maxSize is reached, and entries older than window are purged lazily.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int           // 0 or negative = unbounded
	window  time.Duration // 0 or negative = never expires
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
		window:  DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key, value string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)

	if el, ok := d.seen[key]; ok {
		return el.Value.(*entry).value, true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.remove(d.order.Front())
	}
	d.seen[key] = d.order.PushBack(&entry{key: key, value: value, at: now})
	d.size.Add(1)
	return value, false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.remove(el)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// expire drops entries recorded more than window ago. Must hold d.mu.
func (d *inMemoryDeduper) expire(now time.Time) {
	if d.window <= 0 {
		return
	}
	cutoff := now.Add(-d.window)
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if el.Value.(*entry).at.After(cutoff) {
			return
		}
		d.remove(el)
	}
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	e := d.order.Remove(el).(*entry)
	delete(d.seen, e.key)
	d.size.Add(-1)
}

// Fingerprint derives a submission key from the user and the metrics they
// sent. Identical payloads from the same user map to the same key.
func Fingerprint(userID string, m model.HealthMetrics) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	// HealthMetrics marshals with a fixed field order.
	b, _ := json.Marshal(m)
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
