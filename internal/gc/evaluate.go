package gc

import "github.com/mattjoyce/wsgc/internal/objects"

// Thresholds are the garbage limits. Reaching either one marks a workspace
// dirty.
type Thresholds struct {
	MaxCount int64
	MaxPacks int64
}

// Verdict is the evaluated state of one object store.
type Verdict struct {
	Count int64
	Packs int64
	Dirty bool
}

// Evaluate reads the loose object and pack counts (zero when missing) and
// decides whether the workspace needs garbage collection:
// dirty iff count >= MaxCount or packs >= MaxPacks.
func Evaluate(counts objects.Counts, th Thresholds) Verdict {
	count := counts.Count()
	packs := counts.Packs()
	return Verdict{
		Count: count,
		Packs: packs,
		Dirty: count >= th.MaxCount || packs >= th.MaxPacks,
	}
}
