package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshscan/pkg/math"
)

func patchAt(x, y, z float32) Patch {
	return Patch{Transform: math.Translate(x, y, z)}
}

func origins(patches []Patch) []Position {
	out := make([]Position, len(patches))
	for i := range patches {
		out[i] = patches[i].Origin()
	}
	return out
}

func TestFilter(t *testing.T) {
	patches := []Patch{
		patchAt(0, 0, 1),  // 1
		patchAt(0, 0, 5),  // 5
		patchAt(3, 0, 0),  // 3, on the boundary
		patchAt(2, 2, 1),  // 3, on the boundary
		patchAt(-4, 0, 0), // 4
		patchAt(0, -2, 0), // 2
	}

	kept := Filter(patches, Position{}, 3)

	assert.Equal(t, []Position{{Z: 1}, {X: 3}, {X: 2, Y: 2, Z: 1}, {Y: -2}}, origins(kept))
}

func TestFilter_ReferencePoint(t *testing.T) {
	patches := []Patch{patchAt(10, 0, 0), patchAt(0, 0, 0)}

	kept := Filter(patches, Position{X: 10, Y: 1}, 1)
	require.Len(t, kept, 1)
	assert.Equal(t, Position{X: 10}, kept[0].Origin())
}

func TestFilter_Empty(t *testing.T) {
	assert.Empty(t, Filter(nil, Position{}, 3))
	assert.Empty(t, Filter([]Patch{patchAt(1, 0, 0)}, Position{}, 0.5), "nothing in range")
}

func TestFilter_ZeroDistance(t *testing.T) {
	kept := Filter([]Patch{patchAt(1, 1, 1)}, Position{X: 1, Y: 1, Z: 1}, 0)
	assert.Len(t, kept, 1, "a patch at the reference point is kept with maxDistance 0")
}
