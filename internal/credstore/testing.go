package credstore

// SaveCount reports how many times Save ran on a store built by
// NewMemoryStore. It returns -1 for other stores.
func SaveCount(s Store) int {
	mem, ok := s.(*memoryStore)
	if !ok {
		return -1
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	return mem.saves
}
