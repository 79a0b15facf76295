package tickerstate

import (
	"hash/fnv"
	"sync"
	"time"

	"tickstock-core/pkg/events"
)

// Store holds one State per symbol, partitioned into shardCount maps by
// hash(symbol) (§5, §9) purely to spread map bucket contention — it does
// NOT imply shard-level locking. The worker pool has no ticker-to-worker
// affinity (any worker may dispatch any ticker's aggregate), and
// internal/detect.Pipeline's TrendDetector/SurgeDetector each keep their
// own per-ticker maps that are never shard-partitioned at all. A lock
// scoped to one shard would let two tickers hashing into different
// shards run their detection passes concurrently and race on those
// detectors' shared maps. So Lock(ticker) guards a single mutex across
// the whole Store regardless of which shard ticker falls in: every
// detection pass (internal/detect.Pipeline.ProcessAggregate) and every
// read (Lookup, HighLowCount) is fully serialized. Hold it for the
// entire read-modify-write sequence, not just one call.
type Store struct {
	shards []map[string]*State
	mu     sync.Mutex
}

// NewStore creates a Store with the given number of map shards (typically
// the worker pool size). Shard count only affects map partitioning, not
// locking granularity — see Store's doc comment.
func NewStore(shardCount int) *Store {
	if shardCount < 1 {
		shardCount = 1
	}
	shards := make([]map[string]*State, shardCount)
	for i := range shards {
		shards[i] = make(map[string]*State)
	}
	return &Store{shards: shards}
}

// Shard returns the shard index a ticker is owned by.
func (st *Store) Shard(ticker string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticker))
	return int(h.Sum32()) % len(st.shards)
}

// Lock acquires the Store-wide mutex and returns the unlock func. Every
// caller serializes through this one lock — see Store's doc comment for
// why a per-shard lock isn't sufficient here.
func (st *Store) Lock(ticker string) func() {
	st.mu.Lock()
	return st.mu.Unlock
}

// Get returns the State for a ticker, creating it on first observation.
// Callers must hold the lock from Lock(ticker) for the duration of any
// read or mutation performed through the returned pointer.
func (st *Store) Get(ticker string, openPrice float64, at time.Time) *State {
	shard := st.shards[st.Shard(ticker)]
	s, ok := shard[ticker]
	if !ok {
		s = New(ticker, openPrice, at)
		shard[ticker] = s
	}
	return s
}

// Lookup returns the existing State for a ticker without creating one,
// holding the Store-wide lock for the duration of the lookup itself. The
// returned pointer is only safe to read further under a separate
// Lock(ticker) call — callers that just need a snapshot value should
// prefer HighLowCount.
func (st *Store) Lookup(ticker string) (*State, bool) {
	unlock := st.Lock(ticker)
	defer unlock()
	shard := st.shards[st.Shard(ticker)]
	s, ok := shard[ticker]
	return s, ok
}

// HighLowCount returns ticker's current HighLow dispatch count, holding
// the Store-wide lock for the read so it can't race a concurrent detector
// pass.
func (st *Store) HighLowCount(ticker string) (int, bool) {
	unlock := st.Lock(ticker)
	defer unlock()
	shard := st.shards[st.Shard(ticker)]
	s, ok := shard[ticker]
	if !ok {
		return 0, false
	}
	return s.EventCounts[events.KindHighLow], true
}

// ShardCount returns the number of shards.
func (st *Store) ShardCount() int {
	return len(st.shards)
}
