// Package scanner drives a reconstruction session through a timed capture
// and exports the captured surface as OBJ and PLY files.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/meshscan/internal/export"
	"github.com/Faultbox/meshscan/internal/logger"
	"github.com/Faultbox/meshscan/internal/tracking"
	"github.com/Faultbox/meshscan/pkg/mesh"
)

// Scan errors.
var (
	ErrUnsupportedPlatform = errors.New("mesh reconstruction is not supported on this platform")
	ErrNoActiveFrame       = errors.New("no active frame after the capture window")
	ErrScanInProgress      = errors.New("a scan is already in progress")
	ErrInvalidRequest      = errors.New("invalid scan request")
)

// Request describes one scan.
type Request struct {
	MaxDistance     float32       // Keep patches within this distance of the camera
	WarmupDelay     time.Duration // Before the session is re-armed
	CaptureDuration time.Duration // Between re-arm and capture
	ModelName       string        // Overrides the scanner's model name if set
}

// Result is the outcome of a scan. Paths is set only when State is Done.
type Result struct {
	ScanID string
	State  State
	Paths  *export.Paths
	Err    error

	// Capture statistics, filled as far as the scan got.
	PatchesCaptured int
	PatchesKept     int
	Vertices        int
	Triangles       int
}

// Options configures a Scanner.
type Options struct {
	ModelName string
	Extract   mesh.ExtractOptions

	// OnStateChange is called from the scan goroutine on every transition.
	OnStateChange func(scanID string, state State)
}

// Scanner runs scans against one tracking session. Only one scan may be in
// flight at a time.
type Scanner struct {
	session tracking.Session
	output  *export.Output
	opts    Options

	mu     sync.Mutex
	state  State
	active bool
	cancel context.CancelFunc
}

// New creates a scanner that owns session while a scan runs.
func New(session tracking.Session, output *export.Output, opts Options) *Scanner {
	return &Scanner{
		session: session,
		output:  output,
		opts:    opts,
	}
}

// State returns the state of the current or last scan.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scan starts a scan and returns a channel that receives exactly one Result.
// It fails with ErrScanInProgress while another scan is running. Cancelling
// ctx, or calling Cancel, stops pending timed transitions.
func (s *Scanner) Scan(ctx context.Context, req Request) (<-chan Result, error) {
	if req.MaxDistance < 0 || req.WarmupDelay < 0 || req.CaptureDuration < 0 {
		return nil, fmt.Errorf("%w: negative distance or duration", ErrInvalidRequest)
	}
	modelName := req.ModelName
	if modelName == "" {
		modelName = s.opts.ModelName
	}
	if _, err := s.output.PathsFor(modelName); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	s.active = true
	s.cancel = cancel
	s.state = Idle
	s.mu.Unlock()

	results := make(chan Result, 1)
	scanID := uuid.NewString()
	go func() {
		defer cancel()
		res := s.run(ctx, scanID, modelName, req)

		s.mu.Lock()
		s.active = false
		s.cancel = nil
		s.mu.Unlock()

		results <- res
		close(results)
	}()
	return results, nil
}

// Run starts a scan and waits for its result.
func (s *Scanner) Run(ctx context.Context, req Request) (Result, error) {
	results, err := s.Scan(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return <-results, nil
}

// Cancel aborts the running scan, if any.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// scan carries the state of one run.
type scan struct {
	*Scanner
	id     string
	log    *zap.Logger
	result Result
}

func (s *Scanner) run(ctx context.Context, scanID, modelName string, req Request) Result {
	sc := &scan{
		Scanner: s,
		id:      scanID,
		log:     logger.ForScan(scanID),
		result:  Result{ScanID: scanID},
	}
	sc.log.Info("scan requested",
		zap.Float32("max_distance", req.MaxDistance),
		zap.Duration("warmup", req.WarmupDelay),
		zap.Duration("capture", req.CaptureDuration),
		zap.String("model", modelName),
	)

	if !s.session.IsReconstructionSupported() {
		return sc.fail(ErrUnsupportedPlatform)
	}

	sc.transition(ArmingFirstPass)
	if err := s.session.StartSession(true); err != nil {
		return sc.fail(fmt.Errorf("starting session: %w", err))
	}
	if err := sleep(ctx, req.WarmupDelay); err != nil {
		return sc.abort(err)
	}

	// Restarting once tracking is warm avoids the pose drift of a cold start.
	sc.transition(ArmedSecondPass)
	if err := s.session.StartSession(true); err != nil {
		return sc.abort(fmt.Errorf("re-arming session: %w", err))
	}
	if err := sleep(ctx, req.CaptureDuration); err != nil {
		return sc.abort(err)
	}

	sc.transition(Capturing)
	if err := s.session.PauseSession(); err != nil {
		return sc.fail(fmt.Errorf("pausing session: %w", err))
	}
	snap, err := s.session.CurrentSnapshot()
	if err != nil {
		return sc.fail(fmt.Errorf("%w: %w", ErrNoActiveFrame, err))
	}
	if snap == nil {
		return sc.fail(ErrNoActiveFrame)
	}
	if err := ctx.Err(); err != nil {
		return sc.fail(fmt.Errorf("scan canceled: %w", err))
	}

	sc.transition(Exporting)
	paths, err := sc.export(snap, modelName, req.MaxDistance)
	if err != nil {
		return sc.fail(err)
	}

	sc.result.Paths = &paths
	sc.transition(Done)
	sc.log.Info("scan finished",
		zap.String("obj", paths.OBJ),
		zap.String("ply", paths.PLY),
		zap.Int("vertices", sc.result.Vertices),
		zap.Int("triangles", sc.result.Triangles),
	)
	sc.result.State = Done
	return sc.result
}

func (sc *scan) export(snap *tracking.Snapshot, modelName string, maxDistance float32) (export.Paths, error) {
	camera := snap.CameraPosition()
	kept := mesh.Filter(snap.Patches, camera, maxDistance)
	sc.result.PatchesCaptured = len(snap.Patches)
	sc.result.PatchesKept = len(kept)
	sc.log.Debug("patches filtered",
		zap.Int("captured", len(snap.Patches)),
		zap.Int("kept", len(kept)),
		zap.Float32s("camera", []float32{camera.X, camera.Y, camera.Z}),
	)

	combined, err := mesh.Extract(kept, sc.opts.Extract)
	if err != nil {
		return export.Paths{}, fmt.Errorf("extracting geometry: %w", err)
	}
	sc.result.Vertices = len(combined.Vertices)
	sc.result.Triangles = len(combined.Triangles)

	return sc.output.Write(modelName, combined)
}

func (sc *scan) transition(next State) {
	sc.mu.Lock()
	prev := sc.state
	sc.state = next
	sc.mu.Unlock()

	sc.log.Debug("scan state", zap.Stringer("from", prev), zap.Stringer("to", next))
	if sc.opts.OnStateChange != nil {
		sc.opts.OnStateChange(sc.id, next)
	}
}

// abort pauses the running session before failing.
func (sc *scan) abort(cause error) Result {
	if err := sc.session.PauseSession(); err != nil {
		sc.log.Warn("pausing session after abort", zap.Error(err))
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("scan canceled while %s: %w", sc.State(), cause)
	}
	return sc.fail(cause)
}

func (sc *scan) fail(err error) Result {
	sc.transition(Failed)
	sc.log.Error("scan failed", zap.Error(err))
	sc.result.State = Failed
	sc.result.Paths = nil
	sc.result.Err = err
	return sc.result
}

// sleep waits for d unless ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
