package cache

// flushSector traverses the block's dependency list depth-first, flushing
// the deepest dependency first, flushing each sector at most once per
// traversal (tracked by visited), then writing the block itself and
// clearing its dirty flag and dependency edges.
func (c *Cache) flushSector(sector uint64, visited map[uint64]bool) error {
	if visited[sector] {
		return nil
	}
	visited[sector] = true

	b, ok := c.blocks.Get(sector)
	if !ok {
		return nil
	}

	b.mu.Lock()
	deps := append([]uint64(nil), b.deps...)
	b.mu.Unlock()

	for _, dep := range deps {
		if err := c.flushSector(dep, visited); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.deps = nil
	if !b.dirty {
		return nil
	}
	if err := c.driver.Write(sector, b.data); err != nil {
		return err
	}
	b.dirty = false
	return nil
}
