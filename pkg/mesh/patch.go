// Package mesh decodes reconstructed surface patches into a single
// index-rebased triangle mesh.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshscan/pkg/math"
)

// Extraction errors.
var (
	ErrMalformedBuffer      = errors.New("malformed patch buffer")
	ErrUnsupportedPrimitive = errors.New("unsupported primitive: only triangles are exported")
)

// positionSize is the byte size of the x, y, z float32 triple that starts
// every vertex record.
const positionSize = 12

// TriangleIndexCount is the only supported indices-per-primitive value.
const TriangleIndexCount = 3

// Position is a vertex position. It is local to a patch until merged.
type Position = math.Vec3

// Patch is one locally reconstructed piece of a surface, as handed over by
// the tracking session. Buffers are little-endian and must not be mutated
// while a patch is being extracted.
type Patch struct {
	VertexBuffer []byte // Packed vertex records
	VertexStride int    // Bytes per vertex record (>= 12)
	VertexCount  int    // Number of vertex records

	IndexBuffer            []byte // Packed index elements
	IndexStride            int    // Bytes per index element (2 or 4)
	IndexCountPerPrimitive int    // Indices per primitive (3 for triangles)
	PrimitiveCount         int    // Number of primitives

	Transform math.Mat4 // Patch to world transform
}

// Origin returns the world position of the patch transform.
func (p *Patch) Origin() Position {
	return p.Transform.Translation()
}

// Validate checks the declared strides and counts against the buffer sizes.
func (p *Patch) Validate() error {
	if p.VertexStride < positionSize {
		return fmt.Errorf("%w: vertex stride %d is smaller than a position (%d bytes)",
			ErrMalformedBuffer, p.VertexStride, positionSize)
	}
	if p.VertexCount < 0 || p.PrimitiveCount < 0 {
		return fmt.Errorf("%w: negative count (vertices %d, primitives %d)",
			ErrMalformedBuffer, p.VertexCount, p.PrimitiveCount)
	}
	if p.IndexCountPerPrimitive != TriangleIndexCount {
		return fmt.Errorf("%w: %d indices per primitive", ErrUnsupportedPrimitive, p.IndexCountPerPrimitive)
	}
	if p.IndexStride != 2 && p.IndexStride != 4 {
		return fmt.Errorf("%w: index stride %d (want 2 or 4)", ErrMalformedBuffer, p.IndexStride)
	}

	if need, ok := span(p.VertexStride, p.VertexCount); !ok || need > len(p.VertexBuffer) {
		return fmt.Errorf("%w: vertex buffer has %d bytes, %d vertices at stride %d need more",
			ErrMalformedBuffer, len(p.VertexBuffer), p.VertexCount, p.VertexStride)
	}
	indexCount, ok := span(p.IndexCountPerPrimitive, p.PrimitiveCount)
	if !ok {
		return fmt.Errorf("%w: primitive count %d overflows", ErrMalformedBuffer, p.PrimitiveCount)
	}
	if need, ok := span(p.IndexStride, indexCount); !ok || need > len(p.IndexBuffer) {
		return fmt.Errorf("%w: index buffer has %d bytes, %d indices at stride %d need more",
			ErrMalformedBuffer, len(p.IndexBuffer), indexCount, p.IndexStride)
	}
	return nil
}

// span returns size*count, reporting false if the product overflows int.
func span(size, count int) (int, bool) {
	if count == 0 {
		return 0, true
	}
	if size > int(^uint(0)>>1)/count {
		return 0, false
	}
	return size * count, true
}
