package engine

import (
	"hash/fnv"
	"sync"
)

// keyedMutex serializes read-modify-write cycles per (student, topic) and
// (student, item) key so duplicate submissions cannot race to lost
// updates. Striped to a fixed shard count; two keys on the same stripe
// merely serialize, which is harmless.
type keyedMutex struct {
	stripes [64]sync.Mutex
}

func (k *keyedMutex) index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(k.stripes)))
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	m := &k.stripes[k.index(key)]
	m.Lock()
	return m
}

// lockPair acquires the stripes for both keys in ascending stripe order
// and returns the matching unlock. Keys landing on the same stripe take a
// single lock.
func (k *keyedMutex) lockPair(k1, k2 string) func() {
	i, j := k.index(k1), k.index(k2)
	if i == j {
		m := &k.stripes[i]
		m.Lock()
		return m.Unlock
	}
	if i > j {
		i, j = j, i
	}
	a, b := &k.stripes[i], &k.stripes[j]
	a.Lock()
	b.Lock()
	return func() {
		b.Unlock()
		a.Unlock()
	}
}
