package dbcache

// GroupStats is the breakdown for one group.
type GroupStats struct {
	Hits   int64
	Misses int64
	Size   int // approximate serialized size of the mirrored values
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Hits   int64
	Misses int64
	Groups map[string]GroupStats
}

// Stats reports hit/miss totals and a per-group breakdown. Values that fail to
// serialize contribute 0 to Size.
func (c *Cache) Stats() Stats {
	s := Stats{Groups: make(map[string]GroupStats)}
	for g, n := range c.hits {
		gs := s.Groups[g]
		gs.Hits = n
		s.Groups[g] = gs
		s.Hits += n
	}
	for g, n := range c.misses {
		gs := s.Groups[g]
		gs.Misses = n
		s.Groups[g] = gs
		s.Misses += n
	}
	for g, entries := range c.mirror {
		gs := s.Groups[g]
		for _, m := range entries {
			gs.Size += c.sizeOf(m.val)
		}
		s.Groups[g] = gs
	}
	return s
}

func (c *Cache) sizeOf(v any) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	b, err := c.codec.Encode(v)
	if err != nil {
		return 0
	}
	return len(b)
}
