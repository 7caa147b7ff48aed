package cache

import (
	"errors"
	"time"

	"github.com/bytedance/sonic"
)

// SnapshotMaxAge is how old a persisted snapshot may be before restore
// discards it.
const SnapshotMaxAge = 30 * time.Minute

// ErrSnapshotExpired is returned when a snapshot is older than the
// restore cutoff. Callers treat it as a cold start, not a failure.
var ErrSnapshotExpired = errors.New("cache snapshot expired")

type snapshotEntry struct {
	Payload    []byte `json:"payload"`
	FetchedAt  int64  `json:"fetchedAt"`
	StaleAfter int64  `json:"staleAfterMs"`
}

type snapshotBlob struct {
	WrittenAt int64                    `json:"writtenAt"`
	Entries   map[string]snapshotEntry `json:"entries"`
}

// Snapshot serializes every resident value together with its staleness
// bookkeeping and a top-level write timestamp.
func (c *Cache) Snapshot() ([]byte, error) {
	c.mu.Lock()
	blob := snapshotBlob{
		WrittenAt: c.clock().UnixNano(),
		Entries:   make(map[string]snapshotEntry, len(c.entries)),
	}
	for key, e := range c.entries {
		if !e.hasValue {
			continue
		}
		blob.Entries[string(key)] = snapshotEntry{
			Payload:    e.payload,
			FetchedAt:  e.fetchedAt.UnixNano(),
			StaleAfter: int64(e.staleAfter / time.Millisecond),
		}
	}
	c.mu.Unlock()
	return sonic.Marshal(blob)
}

// Restore loads a snapshot produced by Snapshot. A blob written more
// than maxAge ago is discarded wholesale and ErrSnapshotExpired is
// returned. Restored values keep their original fetch instants, so a
// value that was already stale comes back stale.
func (c *Cache) Restore(data []byte, maxAge time.Duration) error {
	var blob snapshotBlob
	if err := sonic.Unmarshal(data, &blob); err != nil {
		return err
	}
	writtenAt := time.Unix(0, blob.WrittenAt)
	if c.clock().Sub(writtenAt) > maxAge {
		return ErrSnapshotExpired
	}

	c.mu.Lock()
	for key, se := range blob.Entries {
		e := c.entryLocked(Key(key))
		if e.hasValue {
			continue
		}
		e.payload = se.Payload
		e.hasValue = true
		e.fetchedAt = time.Unix(0, se.FetchedAt)
		e.staleAfter = time.Duration(se.StaleAfter) * time.Millisecond
	}
	c.mu.Unlock()
	return nil
}
