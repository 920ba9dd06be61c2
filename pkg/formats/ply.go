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

// PLY parse errors.
var (
	ErrInvalidPLYMagic   = errors.New("invalid PLY magic: expected 'ply'")
	ErrUnsupportedPLY    = errors.New("unsupported PLY format")
	ErrTruncatedPLYData  = errors.New("truncated PLY data")
	ErrInvalidPLYElement = errors.New("invalid PLY element")
)

// plyHeader is the exact header written before the vertex lines. The only
// variable part is the vertex count.
const plyHeader = "ply\n" +
	"format ascii 1.0\n" +
	"element vertex %d\n" +
	"property float x\n" +
	"property float y\n" +
	"property float z\n" +
	"end_header\n"

// maxPLYPrealloc caps the vertex capacity reserved from a header count.
const maxPLYPrealloc = 1 << 16

// PLYOptions controls PLY encoding.
type PLYOptions struct {
	// RejectEmpty makes WritePLY fail with ErrEmptyMesh for a mesh without
	// vertices instead of writing "element vertex 0".
	RejectEmpty bool
}

// WritePLY writes the vertex positions of m as an ASCII PLY 1.0 document.
// Triangles are not written; PLY output is a point cloud.
func WritePLY(w io.Writer, m *mesh.CombinedMesh, opts PLYOptions) error {
	if opts.RejectEmpty && len(m.Vertices) == 0 {
		return ErrEmptyMesh
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, plyHeader, len(m.Vertices)); err != nil {
		return err
	}

	line := make([]byte, 0, 48)
	for _, v := range m.Vertices {
		line = appendFloat(line[:0], v.X)
		line = append(line, ' ')
		line = appendFloat(line, v.Y)
		line = append(line, ' ')
		line = appendFloat(line, v.Z)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WritePLYFile writes m to path. The parent directory must already exist.
// An empty mesh rejected by opts leaves no file behind.
func WritePLYFile(path string, m *mesh.CombinedMesh, opts PLYOptions) error {
	if opts.RejectEmpty && len(m.Vertices) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyMesh, path)
	}
	return writeFile(path, func(f *os.File) error {
		return WritePLY(f, m, opts)
	})
}

// PLYElement describes one "element" block of a PLY header.
type PLYElement struct {
	Name       string
	Count      int
	Properties []string // Property names in declaration order
}

// PLYHeader represents a parsed ASCII PLY header.
type PLYHeader struct {
	Format   string // "ascii", "binary_little_endian" or "binary_big_endian"
	Version  string
	Elements []PLYElement
}

// Element returns the element with the given name, or nil.
func (h *PLYHeader) Element(name string) *PLYElement {
	for i := range h.Elements {
		if h.Elements[i].Name == name {
			return &h.Elements[i]
		}
	}
	return nil
}

// ReadPLYHeader reads a PLY header up to and including "end_header".
func ReadPLYHeader(r *bufio.Reader) (*PLYHeader, error) {
	magic, err := readPLYLine(r)
	if err != nil {
		return nil, err
	}
	if magic != "ply" {
		return nil, ErrInvalidPLYMagic
	}

	h := &PLYHeader{}
	for {
		line, err := readPLYLine(r)
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "end_header":
			if h.Format == "" {
				return nil, fmt.Errorf("%w: missing format line", ErrUnsupportedPLY)
			}
			return h, nil
		case "format":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: %q", ErrUnsupportedPLY, line)
			}
			h.Format, h.Version = fields[1], fields[2]
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPLYElement, line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: bad count in %q", ErrInvalidPLYElement, line)
			}
			h.Elements = append(h.Elements, PLYElement{Name: fields[1], Count: count})
		case "property":
			if len(h.Elements) == 0 || len(fields) < 3 {
				return nil, fmt.Errorf("%w: property outside element: %q", ErrInvalidPLYElement, line)
			}
			el := &h.Elements[len(h.Elements)-1]
			el.Properties = append(el.Properties, fields[len(fields)-1])
		case "comment", "obj_info":
		default:
			return nil, fmt.Errorf("%w: unknown header line %q", ErrUnsupportedPLY, line)
		}
	}
}

// readPLYLine returns the next header line. A last line without a trailing
// newline is still a line.
func readPLYLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", err
		}
		if line == "" {
			return "", fmt.Errorf("%w: header ended without end_header", ErrTruncatedPLYData)
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ParsePLY reads the vertex positions of an ASCII PLY document. The vertex
// element must come first and declare x, y and z; any following elements
// (such as faces written by other tools) are ignored.
func ParsePLY(r io.Reader) (*PLYHeader, *mesh.CombinedMesh, error) {
	br := bufio.NewReader(r)
	h, err := ReadPLYHeader(br)
	if err != nil {
		return nil, nil, err
	}
	if h.Format != "ascii" {
		return nil, nil, fmt.Errorf("%w: format %s", ErrUnsupportedPLY, h.Format)
	}
	if len(h.Elements) == 0 || h.Elements[0].Name != "vertex" {
		return h, &mesh.CombinedMesh{}, nil
	}

	vertex := h.Elements[0]
	cols := map[string]int{"x": -1, "y": -1, "z": -1}
	for i, name := range vertex.Properties {
		if _, ok := cols[name]; ok {
			cols[name] = i
		}
	}
	for name, col := range cols {
		if col < 0 {
			return nil, nil, fmt.Errorf("%w: vertex has no %q property", ErrInvalidPLYElement, name)
		}
	}

	// The count is untrusted; the slice grows as lines actually arrive.
	m := &mesh.CombinedMesh{Vertices: make([]mesh.Position, 0, min(vertex.Count, maxPLYPrealloc))}
	for i := 0; i < vertex.Count; i++ {
		line, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, nil, fmt.Errorf("%w: vertex %d of %d", ErrTruncatedPLYData, i, vertex.Count)
		}
		fields := strings.Fields(line)
		if len(fields) != len(vertex.Properties) {
			return nil, nil, fmt.Errorf("%w: vertex %d has %d values, want %d",
				ErrInvalidPLYElement, i, len(fields), len(vertex.Properties))
		}

		var xyz [3]float32
		for j, name := range []string{"x", "y", "z"} {
			f, err := strconv.ParseFloat(fields[cols[name]], 32)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: vertex %d: %v", ErrInvalidPLYElement, i, err)
			}
			xyz[j] = float32(f)
		}
		m.Vertices = append(m.Vertices, mesh.Position{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}

	return h, m, nil
}

// ParsePLYFile parses a PLY file from disk.
func ParsePLYFile(path string) (*PLYHeader, *mesh.CombinedMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return ParsePLY(f)
}
