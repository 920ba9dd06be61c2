package mesh

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshscan/pkg/math"
)

// createTestPatch packs vertices and triangles the way a tracking session
// hands them over. stride may exceed 12 to leave room for extra attributes.
func createTestPatch(stride int, vertices []Position, triangles [][3]uint32) Patch {
	vbuf := new(bytes.Buffer)
	for _, v := range vertices {
		binary.Write(vbuf, binary.LittleEndian, [3]float32{v.X, v.Y, v.Z})
		// Padding stands in for normals or classification data.
		vbuf.Write(bytes.Repeat([]byte{0xAB}, stride-positionSize))
	}

	ibuf := new(bytes.Buffer)
	for _, tri := range triangles {
		binary.Write(ibuf, binary.LittleEndian, tri)
	}

	return Patch{
		VertexBuffer:           vbuf.Bytes(),
		VertexStride:           stride,
		VertexCount:            len(vertices),
		IndexBuffer:            ibuf.Bytes(),
		IndexStride:            4,
		IndexCountPerPrimitive: 3,
		PrimitiveCount:         len(triangles),
		Transform:              math.Identity(),
	}
}

func scenarioPatches() []Patch {
	a := createTestPatch(12,
		[]Position{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		[][3]uint32{{0, 1, 2}})
	b := createTestPatch(12,
		[]Position{{X: 2, Y: 2, Z: 2}, {X: 3, Y: 2, Z: 2}, {X: 2, Y: 3, Z: 2}},
		[][3]uint32{{0, 1, 2}})
	return []Patch{a, b}
}

func TestExtract_TwoPatchScenario(t *testing.T) {
	m, err := Extract(scenarioPatches(), ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, []Position{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 2, Y: 2, Z: 2}, {X: 3, Y: 2, Z: 2}, {X: 2, Y: 3, Z: 2},
	}, m.Vertices)
	assert.Equal(t, []Triangle{{0, 1, 2}, {3, 4, 5}}, m.Triangles)
}

func TestExtract_IndexRebasing(t *testing.T) {
	counts := []int{4, 5, 3}
	var patches []Patch
	for _, n := range counts {
		verts := make([]Position, n)
		for i := range verts {
			verts[i] = Position{X: float32(i)}
		}
		// Fan over every vertex of the patch.
		var tris [][3]uint32
		for i := 1; i < n-1; i++ {
			tris = append(tris, [3]uint32{0, uint32(i), uint32(i + 1)})
		}
		patches = append(patches, createTestPatch(16, verts, tris))
	}

	m, err := Extract(patches, ExtractOptions{})
	require.NoError(t, err)
	require.Len(t, m.Vertices, 12)
	require.Len(t, m.Triangles, 2+3+1)

	// Second patch triangles follow the 2 triangles of the first patch.
	for _, tri := range m.Triangles[2:5] {
		for _, idx := range tri {
			assert.GreaterOrEqual(t, idx, uint32(4))
			assert.Less(t, idx, uint32(9))
		}
	}
	for _, tri := range m.Triangles {
		for _, idx := range tri {
			assert.Less(t, idx, uint32(len(m.Vertices)))
		}
	}
}

func TestExtract_StrideIgnoresExtraAttributes(t *testing.T) {
	want := []Position{{X: 1.5, Y: -2.25, Z: 3}, {X: 0.125, Y: 8, Z: -0.5}}
	p := createTestPatch(24, want, nil)

	m, err := Extract([]Patch{p}, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, want, m.Vertices)
	assert.Empty(t, m.Triangles)
}

func TestExtract_Uint16Indices(t *testing.T) {
	p := createTestPatch(12, []Position{{}, {X: 1}, {Y: 1}}, nil)
	ibuf := new(bytes.Buffer)
	binary.Write(ibuf, binary.LittleEndian, [3]uint16{2, 1, 0})
	p.IndexBuffer = ibuf.Bytes()
	p.IndexStride = 2
	p.PrimitiveCount = 1

	m, err := Extract([]Patch{p}, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Triangle{{2, 1, 0}}, m.Triangles)
}

func TestExtract_WorldSpace(t *testing.T) {
	p := createTestPatch(12, []Position{{X: 1, Y: 2, Z: 3}}, nil)
	p.Transform = math.Translate(10, 0, -1)

	local, err := Extract([]Patch{p}, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1, Y: 2, Z: 3}, local.Vertices[0])

	world, err := Extract([]Patch{p}, ExtractOptions{WorldSpace: true})
	require.NoError(t, err)
	assert.Equal(t, Position{X: 11, Y: 2, Z: 2}, world.Vertices[0])
}

func TestExtract_Empty(t *testing.T) {
	m, err := Extract(nil, ExtractOptions{})
	require.NoError(t, err)
	assert.Empty(t, m.Vertices)
	assert.Empty(t, m.Triangles)

	_, ok := m.Bounds()
	assert.False(t, ok)
}

func TestExtract_MalformedVertexCount(t *testing.T) {
	verts := make([]Position, 10)
	p := createTestPatch(12, verts, nil)
	p.VertexCount = 100

	m, err := Extract([]Patch{p}, ExtractOptions{})
	require.ErrorIs(t, err, ErrMalformedBuffer)
	assert.Nil(t, m)
}

func TestExtract_MalformedAfterValidPatch(t *testing.T) {
	patches := scenarioPatches()
	patches[1].PrimitiveCount = 4

	m, err := Extract(patches, ExtractOptions{})
	require.ErrorIs(t, err, ErrMalformedBuffer)
	assert.Contains(t, err.Error(), "patch 1")
	assert.Nil(t, m)
}

func TestExtract_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Patch)
		want   error
	}{
		{"short stride", func(p *Patch) { p.VertexStride = 8 }, ErrMalformedBuffer},
		{"negative count", func(p *Patch) { p.VertexCount = -1 }, ErrMalformedBuffer},
		{"quads", func(p *Patch) { p.IndexCountPerPrimitive = 4 }, ErrUnsupportedPrimitive},
		{"byte indices", func(p *Patch) { p.IndexStride = 1 }, ErrMalformedBuffer},
		{"truncated index buffer", func(p *Patch) { p.IndexBuffer = p.IndexBuffer[:10] }, ErrMalformedBuffer},
		{"index past patch", func(p *Patch) {
			binary.LittleEndian.PutUint32(p.IndexBuffer[8:], 3)
		}, ErrMalformedBuffer},
		{"overflowing count", func(p *Patch) { p.PrimitiveCount = int(^uint(0) >> 2) }, ErrMalformedBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scenarioPatches()[0]
			tt.modify(&p)

			_, err := Extract([]Patch{p}, ExtractOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadPosition_OutOfBounds(t *testing.T) {
	buf := make([]byte, 20)

	_, err := readPosition(buf, 8)
	assert.NoError(t, err)

	_, err = readPosition(buf, 9)
	assert.ErrorIs(t, err, ErrMalformedBuffer)

	_, err = readPosition(buf, -1)
	assert.ErrorIs(t, err, ErrMalformedBuffer)
}

func TestCombinedMesh_Bounds(t *testing.T) {
	m, err := Extract(scenarioPatches(), ExtractOptions{})
	require.NoError(t, err)

	b, ok := m.Bounds()
	require.True(t, ok)
	assert.Equal(t, Position{X: 0, Y: 0, Z: 0}, b.Min)
	assert.Equal(t, Position{X: 3, Y: 3, Z: 2}, b.Max)
}
