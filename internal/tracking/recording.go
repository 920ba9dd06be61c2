package tracking

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/meshscan/pkg/math"
	"github.com/Faultbox/meshscan/pkg/mesh"
)

// Buffer is raw patch data. It is stored base64 encoded in recordings.
type Buffer []byte

// MarshalYAML implements yaml.Marshaler.
func (b Buffer) MarshalYAML() (interface{}, error) {
	return base64.StdEncoding.EncodeToString(b), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Buffer) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("line %d: decoding buffer: %w", value.Line, err)
	}
	*b = data
	return nil
}

// PatchRecord is the on-disk form of a mesh.Patch.
type PatchRecord struct {
	VertexStride           int         `yaml:"vertex_stride"`
	VertexCount            int         `yaml:"vertex_count"`
	Vertices               Buffer      `yaml:"vertices"`
	IndexStride            int         `yaml:"index_stride"`
	IndexCountPerPrimitive int         `yaml:"index_count_per_primitive"`
	PrimitiveCount         int         `yaml:"primitive_count"`
	Indices                Buffer      `yaml:"indices"`
	Transform              [16]float32 `yaml:"transform,flow"`
}

// SnapshotRecord is the on-disk form of a recorded session.
type SnapshotRecord struct {
	ReconstructionSupported bool          `yaml:"reconstruction_supported"`
	Camera                  *[16]float32  `yaml:"camera,flow,omitempty"` // nil: no frame was captured
	Patches                 []PatchRecord `yaml:"patches"`
}

// RecordSnapshot converts a snapshot into its on-disk form.
func RecordSnapshot(s *Snapshot) *SnapshotRecord {
	rec := &SnapshotRecord{ReconstructionSupported: true}
	if s == nil {
		return rec
	}
	camera := [16]float32(s.Camera)
	rec.Camera = &camera
	for _, p := range s.Patches {
		rec.Patches = append(rec.Patches, PatchRecord{
			VertexStride:           p.VertexStride,
			VertexCount:            p.VertexCount,
			Vertices:               Buffer(p.VertexBuffer),
			IndexStride:            p.IndexStride,
			IndexCountPerPrimitive: p.IndexCountPerPrimitive,
			PrimitiveCount:         p.PrimitiveCount,
			Indices:                Buffer(p.IndexBuffer),
			Transform:              [16]float32(p.Transform),
		})
	}
	return rec
}

// Snapshot converts the record back into a snapshot. It returns nil if the
// recording holds no frame.
func (r *SnapshotRecord) Snapshot() *Snapshot {
	if r.Camera == nil {
		return nil
	}
	s := &Snapshot{Camera: math.Mat4(*r.Camera)}
	for _, p := range r.Patches {
		s.Patches = append(s.Patches, mesh.Patch{
			VertexBuffer:           p.Vertices,
			VertexStride:           p.VertexStride,
			VertexCount:            p.VertexCount,
			IndexBuffer:            p.Indices,
			IndexStride:            p.IndexStride,
			IndexCountPerPrimitive: p.IndexCountPerPrimitive,
			PrimitiveCount:         p.PrimitiveCount,
			Transform:              math.Mat4(p.Transform),
		})
	}
	return s
}

// LoadRecording reads a recorded session from a YAML file.
func LoadRecording(path string) (*SnapshotRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	rec := &SnapshotRecord{}
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("parsing recording %s: %w", path, err)
	}
	return rec, nil
}

// SaveTo writes the record to path, creating the parent directory if needed.
func (r *SnapshotRecord) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Recording is a Session that replays a recorded snapshot. The frame only
// becomes available once the session has been started with reconstruction.
type Recording struct {
	mu      sync.Mutex
	record  *SnapshotRecord
	running bool
	meshing bool
	starts  int
}

// NewRecording creates a session replaying rec.
func NewRecording(rec *SnapshotRecord) *Recording {
	return &Recording{record: rec}
}

// OpenRecording loads a recording file and wraps it in a session.
func OpenRecording(path string) (*Recording, error) {
	rec, err := LoadRecording(path)
	if err != nil {
		return nil, err
	}
	return NewRecording(rec), nil
}

// IsReconstructionSupported implements Session.
func (r *Recording) IsReconstructionSupported() bool {
	return r.record.ReconstructionSupported
}

// StartSession implements Session.
func (r *Recording) StartSession(reconstruction bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reconstruction && !r.record.ReconstructionSupported {
		return ErrNoMeshSupport
	}
	r.running = true
	r.meshing = reconstruction
	r.starts++
	return nil
}

// PauseSession implements Session.
func (r *Recording) PauseSession() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return ErrNotRunning
	}
	r.running = false
	return nil
}

// CurrentSnapshot implements Session.
func (r *Recording) CurrentSnapshot() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.starts == 0 {
		return nil, ErrNoFrame
	}
	s := r.record.Snapshot()
	if s == nil {
		return nil, ErrNoFrame
	}
	if !r.meshing {
		s.Patches = nil
	}
	return s, nil
}

// Starts returns how many times the session has been started.
func (r *Recording) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Running reports whether the session is currently running.
func (r *Recording) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
