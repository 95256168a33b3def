package submission

import (
	"hash/fnv"
	"sync"
)

// shardCount bounds the lock table so it stays a fixed-size resource
// regardless of how many distinct submission IDs have ever been seen.
const shardCount = 256

// KeyedLocks serializes writes to the same submission ID while letting
// writes to different submissions proceed in parallel, giving per-submission
// ordering guarantees without a global lock. Sharded by a hash of the ID
// rather than one lock per ID, so memory use does not grow with submission
// count.
type KeyedLocks struct {
	shards [shardCount]sync.Mutex
}

// NewKeyedLocks creates a ready-to-use KeyedLocks.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{}
}

func (k *KeyedLocks) shardFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &k.shards[h.Sum32()%shardCount]
}

// Lock acquires the shard guarding key and returns the unlock function.
func (k *KeyedLocks) Lock(key string) func() {
	shard := k.shardFor(key)
	shard.Lock()
	return shard.Unlock
}
