package locks

import (
	"sort"
	"sync"
)

// KeyedMutex serializes work per key. Graph mutations hold the locks for both
// endpoint users. Locks for multiple keys are always taken in sorted order so
// two operations touching the same pair of users cannot deadlock.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock acquires the locks for every key and returns the matching unlock
// function. Duplicate keys are collapsed.
func (k *KeyedMutex) Lock(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, key)
	}
	sort.Strings(uniq)

	entries := make([]*entry, 0, len(uniq))
	k.mu.Lock()
	for _, key := range uniq {
		e, ok := k.locks[key]
		if !ok {
			e = &entry{}
			k.locks[key] = e
		}
		e.refs++
		entries = append(entries, e)
	}
	k.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		k.mu.Lock()
		for i, key := range uniq {
			e := entries[i]
			e.refs--
			if e.refs == 0 {
				delete(k.locks, key)
			}
		}
		k.mu.Unlock()
	}
}
