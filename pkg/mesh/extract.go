package mesh

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
)

// Triangle holds three indices into CombinedMesh.Vertices.
type Triangle [3]uint32

// CombinedMesh is the merged geometry of every accepted patch, ready for
// serialization. Every triangle index is < len(Vertices).
type CombinedMesh struct {
	Vertices  []Position
	Triangles []Triangle
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min Position
	Max Position
}

// Bounds returns the bounding box of all vertices. ok is false for an empty mesh.
func (m *CombinedMesh) Bounds() (b Bounds, ok bool) {
	if len(m.Vertices) == 0 {
		return Bounds{}, false
	}
	inf := math32.Inf(1)
	b = Bounds{
		Min: Position{X: inf, Y: inf, Z: inf},
		Max: Position{X: -inf, Y: -inf, Z: -inf},
	}
	for _, v := range m.Vertices {
		b.Min = b.Min.Min(v)
		b.Max = b.Max.Max(v)
	}
	return b, true
}

// ExtractOptions contains options for Extract.
type ExtractOptions struct {
	// WorldSpace transforms each position by its patch transform. Positions
	// are emitted in patch-local coordinates otherwise.
	WorldSpace bool
}

// Extract decodes every patch and merges them into one mesh. Patch order
// determines vertex order, and indices of each patch are rebased by the
// number of vertices emitted before it. Nothing is returned if any patch is
// malformed.
func Extract(patches []Patch, opts ExtractOptions) (*CombinedMesh, error) {
	var vertexTotal, triangleTotal int
	for i := range patches {
		if err := patches[i].Validate(); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		vertexTotal += patches[i].VertexCount
		triangleTotal += patches[i].PrimitiveCount
	}
	if uint64(vertexTotal) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: %d vertices do not fit 32-bit indices", ErrMalformedBuffer, vertexTotal)
	}

	m := &CombinedMesh{
		Vertices:  make([]Position, 0, vertexTotal),
		Triangles: make([]Triangle, 0, triangleTotal),
	}

	var offset uint32
	for i := range patches {
		p := &patches[i]
		if err := m.appendVertices(p, opts); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		if err := m.appendTriangles(p, offset); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		offset += uint32(p.VertexCount)
	}

	return m, nil
}

func (m *CombinedMesh) appendVertices(p *Patch, opts ExtractOptions) error {
	for i := 0; i < p.VertexCount; i++ {
		pos, err := readPosition(p.VertexBuffer, i*p.VertexStride)
		if err != nil {
			return fmt.Errorf("vertex %d: %w", i, err)
		}
		if opts.WorldSpace {
			pos = p.Transform.TransformPoint(pos)
		}
		m.Vertices = append(m.Vertices, pos)
	}
	return nil
}

func (m *CombinedMesh) appendTriangles(p *Patch, offset uint32) error {
	for prim := 0; prim < p.PrimitiveCount; prim++ {
		var tri Triangle
		for k := 0; k < TriangleIndexCount; k++ {
			at := (prim*p.IndexCountPerPrimitive + k) * p.IndexStride
			idx, err := readIndex(p.IndexBuffer, at, p.IndexStride)
			if err != nil {
				return fmt.Errorf("primitive %d: %w", prim, err)
			}
			if idx >= uint32(p.VertexCount) {
				return fmt.Errorf("%w: primitive %d references vertex %d of %d",
					ErrMalformedBuffer, prim, idx, p.VertexCount)
			}
			tri[k] = idx + offset
		}
		m.Triangles = append(m.Triangles, tri)
	}
	return nil
}

// readPosition reads three little-endian float32 values at byte offset at.
func readPosition(buf []byte, at int) (Position, error) {
	if at < 0 || at > len(buf)-positionSize {
		return Position{}, fmt.Errorf("%w: position at byte %d exceeds vertex buffer (%d bytes)",
			ErrMalformedBuffer, at, len(buf))
	}
	return Position{
		X: math32.Float32frombits(binary.LittleEndian.Uint32(buf[at:])),
		Y: math32.Float32frombits(binary.LittleEndian.Uint32(buf[at+4:])),
		Z: math32.Float32frombits(binary.LittleEndian.Uint32(buf[at+8:])),
	}, nil
}

// readIndex reads one little-endian index element of the given width.
func readIndex(buf []byte, at, width int) (uint32, error) {
	if at < 0 || at > len(buf)-width {
		return 0, fmt.Errorf("%w: index at byte %d exceeds index buffer (%d bytes)",
			ErrMalformedBuffer, at, len(buf))
	}
	switch width {
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf[at:])), nil
	case 4:
		return binary.LittleEndian.Uint32(buf[at:]), nil
	default:
		return 0, fmt.Errorf("%w: index width %d", ErrMalformedBuffer, width)
	}
}
