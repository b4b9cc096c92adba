package util

// Outcome is the verdict on a finished load
type Outcome int

const (
	// GenFresh means the load is the newest and may be published
	GenFresh Outcome = iota
	// GenOvertaken means a later load has already been published
	GenOvertaken
	// GenInvalidated means the cache was dropped after the load started
	GenInvalidated
)

// Generations orders overlapping loads of one session-scoped cache: the
// last load started wins and nothing started before an invalidation is
// published. It has no lock of its own; callers hold the cache's lock
// around every method.
type Generations struct {
	started   uint64
	published uint64
	floor     uint64
}

// Begin numbers a new load
func (g *Generations) Begin() uint64 {
	g.started++
	return g.started
}

// Commit judges load gen and, when it is fresh, records it as published
func (g *Generations) Commit(gen uint64) Outcome {
	switch {
	case gen <= g.floor:
		return GenInvalidated
	case gen <= g.published:
		return GenOvertaken
	}
	g.published = gen
	return GenFresh
}

// Invalidate discards every load begun so far
func (g *Generations) Invalidate() {
	g.floor = g.started
}
