// Package formats reads and writes the mesh interchange formats produced by
// a scan: ASCII Wavefront OBJ and ASCII PLY.
package formats

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Encoding errors.
var (
	ErrEmptyMesh = errors.New("mesh has no vertices")
)

// IOError reports a filesystem failure while writing or reading a mesh file.
type IOError struct {
	Op   string // "create", "write", "close", "open", "read"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// writeFile creates path and hands it to encode. Errors from encode and
// from closing the file are reported as *IOError.
func writeFile(path string, encode func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	if err := encode(f); err != nil {
		f.Close()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// appendFloat formats f with the fewest digits that parse back to the same
// float32, without exponent notation ("0", "1.5", "0.1").
func appendFloat(dst []byte, f float32) []byte {
	return strconv.AppendFloat(dst, float64(f), 'f', -1, 32)
}
