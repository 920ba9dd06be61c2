package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshscan/pkg/mesh"
)

// OBJ parse errors.
var (
	ErrInvalidOBJ = errors.New("invalid OBJ data")
)

// WriteOBJ writes m as a Wavefront OBJ document: one "v x y z" line per
// vertex followed by one "f a b c" line per triangle with 1-based indices.
// Normals, texture coordinates, materials and groups are never written.
func WriteOBJ(w io.Writer, m *mesh.CombinedMesh) error {
	bw := bufio.NewWriter(w)
	line := make([]byte, 0, 64)

	for _, v := range m.Vertices {
		line = append(line[:0], 'v', ' ')
		line = appendFloat(line, v.X)
		line = append(line, ' ')
		line = appendFloat(line, v.Y)
		line = append(line, ' ')
		line = appendFloat(line, v.Z)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}

	for _, tri := range m.Triangles {
		line = append(line[:0], 'f', ' ')
		line = strconv.AppendUint(line, uint64(tri[0])+1, 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(tri[1])+1, 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(tri[2])+1, 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteOBJFile writes m to path. The parent directory must already exist.
func WriteOBJFile(path string, m *mesh.CombinedMesh) error {
	return writeFile(path, func(f *os.File) error {
		return WriteOBJ(f, m)
	})
}

// ParseOBJ reads the geometry of an OBJ document: "v" positions and "f"
// faces. Faces with more than three corners are fan triangulated, and
// "v/vt/vn" corners and negative (relative) indices are accepted. Every
// other statement is ignored.
func ParseOBJ(r io.Reader) (*mesh.CombinedMesh, error) {
	m := &mesh.CombinedMesh{}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrInvalidOBJ, lineNo)
			}
			var xyz [3]float32
			for i := range xyz {
				f, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
				}
				xyz[i] = float32(f)
			}
			m.Vertices = append(m.Vertices, mesh.Position{X: xyz[0], Y: xyz[1], Z: xyz[2]})

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs at least 3 corners", ErrInvalidOBJ, lineNo)
			}
			corners := make([]uint32, 0, len(fields)-1)
			for _, field := range fields[1:] {
				idx, err := parseOBJIndex(field, len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
				}
				corners = append(corners, idx)
			}
			for i := 1; i < len(corners)-1; i++ {
				m.Triangles = append(m.Triangles, mesh.Triangle{corners[0], corners[i], corners[i+1]})
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo+1, err)
	}
	return m, nil
}

// parseOBJIndex converts a face corner ("7", "7/2", "7//3", "-1") into a
// 0-based vertex index.
func parseOBJIndex(corner string, vertexCount int) (uint32, error) {
	if slash := strings.IndexByte(corner, '/'); slash >= 0 {
		corner = corner[:slash]
	}
	n, err := strconv.Atoi(corner)
	if err != nil {
		return 0, err
	}

	// compensate for indices starting at 1, negative ones count from the end
	idx := n - 1
	if n < 0 {
		idx = vertexCount + n
	}
	if n == 0 || idx < 0 || idx >= vertexCount {
		return 0, fmt.Errorf("vertex index %d out of range (have %d vertices)", n, vertexCount)
	}
	return uint32(idx), nil
}

// ParseOBJFile parses an OBJ file from disk.
func ParseOBJFile(path string) (*mesh.CombinedMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return ParseOBJ(f)
}
