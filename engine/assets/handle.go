package assets

// Handle identifies a registry entry. IDs are monotonic and never recycled;
// the generation tag guards against a stale handle matching a different
// entry if recycling is ever introduced.
type Handle struct {
	ID         uint64
	Generation uint32
}

// InvalidHandle is returned by failed loads. Its zero ID never matches an
// entry.
var InvalidHandle = Handle{}

func (h Handle) IsValid() bool {
	return h.ID != 0
}
