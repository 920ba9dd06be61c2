package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshscan/pkg/formats"
	"github.com/Faultbox/meshscan/pkg/mesh"
)

func triangleMesh() *mesh.CombinedMesh {
	return &mesh.CombinedMesh{
		Vertices:  []mesh.Position{{X: 0}, {X: 1}, {Y: 1}},
		Triangles: []mesh.Triangle{{0, 1, 2}},
	}
}

func TestOutput_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "OBJ")
	out := NewOutput(dir, formats.PLYOptions{})

	paths, err := out.Write("scannedHumanBody", triangleMesh())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scannedHumanBody.obj"), paths.OBJ)
	assert.Equal(t, filepath.Join(dir, "scannedHumanBody.ply"), paths.PLY)

	obj, err := formats.ParseOBJFile(paths.OBJ)
	require.NoError(t, err)
	assert.Equal(t, triangleMesh(), obj)

	_, ply, err := formats.ParsePLYFile(paths.PLY)
	require.NoError(t, err)
	assert.Equal(t, triangleMesh().Vertices, ply.Vertices)
}

func TestOutput_WriteOverwrites(t *testing.T) {
	out := NewOutput(t.TempDir(), formats.PLYOptions{})

	_, err := out.Write("model", triangleMesh())
	require.NoError(t, err)
	paths, err := out.Write("model", &mesh.CombinedMesh{})
	require.NoError(t, err)

	data, err := os.ReadFile(paths.OBJ)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestOutput_PLYFailureRemovesOBJ(t *testing.T) {
	dir := t.TempDir()
	out := NewOutput(dir, formats.PLYOptions{RejectEmpty: true})

	paths, err := out.Write("empty", &mesh.CombinedMesh{})
	require.ErrorIs(t, err, formats.ErrEmptyMesh)
	assert.Equal(t, Paths{}, paths)

	_, statErr := os.Stat(filepath.Join(dir, "empty.obj"))
	assert.True(t, os.IsNotExist(statErr), "orphan OBJ should be removed")
}

func TestOutput_PLYCreateFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory where the PLY file should go makes its creation fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "blocked.ply"), 0755))
	out := NewOutput(dir, formats.PLYOptions{})

	_, err := out.Write("blocked", triangleMesh())
	var ioErr *formats.IOError
	require.True(t, errors.As(err, &ioErr), "want *IOError, got %v", err)
	assert.Equal(t, filepath.Join(dir, "blocked.ply"), ioErr.Path)

	_, statErr := os.Stat(filepath.Join(dir, "blocked.obj"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOutput_PrepareFailure(t *testing.T) {
	parent := t.TempDir()
	file := filepath.Join(parent, "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	out := NewOutput(filepath.Join(file, "OBJ"), formats.PLYOptions{})
	_, err := out.Write("model", triangleMesh())

	var ioErr *formats.IOError
	require.True(t, errors.As(err, &ioErr), "want *IOError, got %v", err)
	assert.Equal(t, "mkdir", ioErr.Op)
}

func TestOutput_PathsFor(t *testing.T) {
	out := NewOutput("scans", formats.PLYOptions{})

	paths, err := out.PathsFor("room 1")
	require.NoError(t, err)
	assert.Equal(t, Paths{OBJ: filepath.Join("scans", "room 1.obj"), PLY: filepath.Join("scans", "room 1.ply")}, paths)

	for _, name := range []string{"", ".", "..", "../escape", "a/b", `a\b`, ".hidden"} {
		_, err := out.PathsFor(name)
		assert.ErrorIs(t, err, ErrInvalidModelName, "name %q", name)
	}
}
