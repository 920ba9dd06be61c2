// Package export places scan results on disk.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/Faultbox/meshscan/pkg/formats"
	"github.com/Faultbox/meshscan/pkg/mesh"
)

// ErrInvalidModelName is returned for names that would escape the output
// directory or produce hidden files.
var ErrInvalidModelName = errors.New("invalid model name")

// Paths holds the files written for one model.
type Paths struct {
	OBJ string
	PLY string
}

// Output writes models into a directory.
type Output struct {
	dir  string
	opts formats.PLYOptions
}

// NewOutput creates an output rooted at dir.
func NewOutput(dir string, opts formats.PLYOptions) *Output {
	return &Output{dir: dir, opts: opts}
}

// Dir returns the output directory.
func (o *Output) Dir() string {
	return o.dir
}

// PathsFor returns the OBJ and PLY paths for a model name.
func (o *Output) PathsFor(modelName string) (Paths, error) {
	if modelName == "" || modelName == "." || modelName == ".." ||
		strings.ContainsAny(modelName, `/\`) || strings.HasPrefix(modelName, ".") {
		return Paths{}, fmt.Errorf("%w: %q", ErrInvalidModelName, modelName)
	}
	base := filepath.Join(o.dir, modelName)
	return Paths{OBJ: base + ".obj", PLY: base + ".ply"}, nil
}

// Prepare creates the output directory if needed.
func (o *Output) Prepare() error {
	if o.dir == "" {
		return nil
	}
	if err := os.MkdirAll(o.dir, 0755); err != nil {
		return &formats.IOError{Op: "mkdir", Path: o.dir, Err: err}
	}
	return nil
}

// Write writes m as OBJ and then PLY. Both paths are returned only when both
// files were written. If the PLY fails after the OBJ was written, the OBJ
// is removed so no half-exported model is left behind.
func (o *Output) Write(modelName string, m *mesh.CombinedMesh) (Paths, error) {
	paths, err := o.PathsFor(modelName)
	if err != nil {
		return Paths{}, err
	}
	if err := o.Prepare(); err != nil {
		return Paths{}, err
	}

	if err := formats.WriteOBJFile(paths.OBJ, m); err != nil {
		return Paths{}, fmt.Errorf("writing OBJ: %w", err)
	}
	if err := formats.WritePLYFile(paths.PLY, m, o.opts); err != nil {
		err = fmt.Errorf("writing PLY: %w", err)
		if rmErr := os.Remove(paths.OBJ); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, fmt.Errorf("removing orphan OBJ: %w", rmErr))
		}
		return Paths{}, err
	}

	return paths, nil
}
