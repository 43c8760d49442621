package audit

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"
)

// SnapshotEntry is one cached pre-image awaiting its matching post-hook.
type SnapshotEntry struct {
	Snapshot  map[string]interface{}
	SessionID string
}

// SnapshotCache holds pre-mutation entity snapshots, keyed by entity id or by
// entityId:sessionId when a session is active. Entries are TTL-evicted by a
// background sweep owned by the cache, so a request that aborts between its
// pre- and post-hooks cannot leak its snapshot forever. The cache is safe for
// concurrent use.
type SnapshotCache struct {
	cache    *ttlcache.Cache[string, SnapshotEntry]
	capacity uint64
	log      logrus.FieldLogger
}

// NewSnapshotCache builds a cache bounded by ttl and capacity and starts its
// eviction goroutine. Callers own the instance and must Stop it at shutdown.
func NewSnapshotCache(ttl time.Duration, capacity uint64, log logrus.FieldLogger) *SnapshotCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, SnapshotEntry](ttl),
		ttlcache.WithCapacity[string, SnapshotEntry](capacity),
	)
	go cache.Start()

	return &SnapshotCache{
		cache:    cache,
		capacity: capacity,
		log:      log,
	}
}

func snapshotKey(entityID, sessionID string) string {
	if sessionID == "" {
		return entityID
	}
	return entityID + ":" + sessionID
}

// Store caches a pre-image under the session-scoped key. When the cache is at
// capacity it first sweeps expired entries synchronously, keeping worst-case
// memory flat under load spikes instead of waiting for the next timer tick.
// The snapshot is deep-copied so the cached state never aliases the caller's.
func (c *SnapshotCache) Store(entityID string, snapshot map[string]interface{}, sessionID string) {
	if entityID == "" || snapshot == nil {
		return
	}

	if c.capacity > 0 && uint64(c.cache.Len()) >= c.capacity {
		c.cache.DeleteExpired()
		if c.log != nil {
			c.log.Debugf("snapshot cache at capacity, swept stale entries (%d live)", c.cache.Len())
		}
	}

	entry := SnapshotEntry{
		Snapshot:  deepcopy.Copy(snapshot).(map[string]interface{}),
		SessionID: sessionID,
	}
	c.cache.Set(snapshotKey(entityID, sessionID), entry, ttlcache.DefaultTTL)
}

// Get returns the cached pre-image for the entity, preferring the
// session-scoped key and falling back to the session-less key for call sites
// that could not resolve a session. A hit refreshes the entry's TTL.
func (c *SnapshotCache) Get(entityID, sessionID string) (map[string]interface{}, bool) {
	if item := c.cache.Get(snapshotKey(entityID, sessionID)); item != nil {
		return deepcopy.Copy(item.Value().Snapshot).(map[string]interface{}), true
	}
	if sessionID != "" {
		if item := c.cache.Get(snapshotKey(entityID, "")); item != nil {
			return deepcopy.Copy(item.Value().Snapshot).(map[string]interface{}), true
		}
	}
	return nil, false
}

// Clear removes both the session-scoped and session-less entries for the
// entity, so no stale pre-image survives the operation that owned it.
func (c *SnapshotCache) Clear(entityID, sessionID string) {
	if sessionID != "" {
		c.cache.Delete(snapshotKey(entityID, sessionID))
	}
	c.cache.Delete(snapshotKey(entityID, ""))
}

// Sweep synchronously removes every expired entry.
func (c *SnapshotCache) Sweep() {
	c.cache.DeleteExpired()
}

func (c *SnapshotCache) Len() int {
	return c.cache.Len()
}

// Stop terminates the background eviction goroutine.
func (c *SnapshotCache) Stop() {
	c.cache.Stop()
}
