package cache

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLocks serializes writers of the same (user, barcode) within the process.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

// lock acquires the stripe for userID and key and returns its unlock func.
func (k *keyLocks) lock(userID, key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key))
	mu := &k.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
