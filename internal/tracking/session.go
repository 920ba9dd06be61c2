// Package tracking defines the reconstruction session a scan drives, and a
// file-backed session that replays a recorded snapshot.
package tracking

import (
	"errors"

	"github.com/Faultbox/meshscan/pkg/math"
	"github.com/Faultbox/meshscan/pkg/mesh"
)

// Session errors.
var (
	ErrNoFrame       = errors.New("no current frame")
	ErrNotRunning    = errors.New("session is not running")
	ErrNoMeshSupport = errors.New("mesh reconstruction is not supported")
)

// Session is a live tracking and surface reconstruction session.
// Implementations need not be safe for concurrent use; a scanner owns the
// session for the duration of a scan.
type Session interface {
	// IsReconstructionSupported reports whether the platform can produce
	// mesh patches at all.
	IsReconstructionSupported() bool

	// StartSession starts (or restarts) tracking.
	StartSession(reconstruction bool) error

	// PauseSession stops tracking. The last frame stays readable.
	PauseSession() error

	// CurrentSnapshot returns the patches and camera position of the most
	// recent frame, or ErrNoFrame.
	CurrentSnapshot() (*Snapshot, error)
}

// Snapshot is the reconstructed state of one frame.
type Snapshot struct {
	Patches []mesh.Patch
	Camera  math.Mat4 // Camera to world transform
}

// CameraPosition returns the world position of the camera.
func (s *Snapshot) CameraPosition() mesh.Position {
	return s.Camera.Translation()
}
