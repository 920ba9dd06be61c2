package mesh

// Filter returns the patches whose origin lies within maxDistance of the
// reference point. The boundary is inclusive and the input order is kept.
func Filter(patches []Patch, reference Position, maxDistance float32) []Patch {
	kept := make([]Patch, 0, len(patches))
	for i := range patches {
		if reference.Distance(patches[i].Origin()) <= maxDistance {
			kept = append(kept, patches[i])
		}
	}
	return kept
}
