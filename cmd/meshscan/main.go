// meshscan runs timed mesh scans against recorded tracking sessions and
// exports the captured surface as OBJ and PLY files.
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/meshscan/internal/config"
	"github.com/Faultbox/meshscan/internal/export"
	"github.com/Faultbox/meshscan/internal/logger"
	"github.com/Faultbox/meshscan/internal/scanner"
	"github.com/Faultbox/meshscan/internal/tracking"
	"github.com/Faultbox/meshscan/internal/watch"
	"github.com/Faultbox/meshscan/pkg/formats"
	"github.com/Faultbox/meshscan/pkg/math"
	"github.com/Faultbox/meshscan/pkg/mesh"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "help", "-h", "--help":
		printUsage()
		return
	case "info":
		cmdInfo(args)
		return
	case "verify":
		cmdVerify(args)
		return
	case "sample":
		cmdSample(args)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch command {
	case "scan":
		err = cmdScan(ctx, cfg, args)
	case "watch":
		err = cmdWatch(ctx, cfg, args)
	case "config":
		err = cmdConfig(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshscan - mesh scan and export utility

Usage:
  meshscan [flags] <command> [arguments]

Commands:
  scan <recording.yaml>       Run a timed scan and export OBJ and PLY files
  watch <dir>                 Scan every recording dropped into a directory
  info <recording.yaml>       Show patches and bounds of a recording
  verify <file.obj|file.ply>  Parse an exported file and print its counts
  sample <recording.yaml>     Write a small two-patch recording
  config [path]               Save the effective config (default: user config dir)

Flags:
  -config <path>       Config file (default ./meshscan.yaml)
  -debug               Enable debug logging
  -max-distance <m>    Keep patches within this distance of the camera
  -warmup <duration>   Delay before the session is re-armed
  -capture <duration>  Capture window after re-arming
  -out <dir>           Output directory
  -name <model>        Model file name without extension
  -world               Write world-space positions

Examples:
  meshscan -warmup 0s -capture 0s scan room.yaml
  meshscan -out ./scans watch ./inbox
  meshscan verify OBJ/scannedHumanBody.ply`)
}

func newScanner(cfg *config.Config, session tracking.Session) *scanner.Scanner {
	out := export.NewOutput(cfg.Export.Dir, formats.PLYOptions{RejectEmpty: cfg.Export.RejectEmptyPLY})
	return scanner.New(session, out, scanner.Options{
		ModelName: cfg.Export.ModelName,
		Extract:   mesh.ExtractOptions{WorldSpace: cfg.Export.WorldSpace},
	})
}

func scanRequest(cfg *config.Config, modelName string) scanner.Request {
	return scanner.Request{
		MaxDistance:     cfg.Scan.MaxDistance,
		WarmupDelay:     cfg.Scan.WarmupDelay,
		CaptureDuration: cfg.Scan.CaptureDuration,
		ModelName:       modelName,
	}
}

func cmdScan(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: meshscan scan <recording.yaml>")
	}

	rec, err := tracking.OpenRecording(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s (warm-up %s, capture %s)...\n",
		args[0], cfg.Scan.WarmupDelay, cfg.Scan.CaptureDuration)
	res, err := newScanner(cfg, rec).Run(ctx, scanRequest(cfg, ""))
	if err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("scan %s: %w", res.ScanID, res.Err)
	}
	printResult(res)
	return nil
}

func cmdWatch(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: meshscan watch <dir>")
	}

	inbox, err := watch.NewInbox(args[0], "*.yaml")
	if err != nil {
		return err
	}
	defer inbox.Close()

	handle := func(ctx context.Context, path string) error {
		rec, err := tracking.OpenRecording(path)
		if err != nil {
			return err
		}
		modelName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err := newScanner(cfg, rec).Run(ctx, scanRequest(cfg, modelName))
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
		printResult(res)
		return nil
	}

	backlog, err := inbox.Backlog()
	if err != nil {
		return err
	}
	for _, path := range backlog {
		if err := handle(ctx, path); err != nil {
			logger.Warn("recording failed", zap.String("file", path), zap.Error(err))
		}
	}

	logger.Info("watching for recordings", zap.String("dir", args[0]))
	return inbox.Run(ctx, handle)
}

func cmdConfig(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		if err := cfg.SaveTo(args[0]); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", args[0])
		return nil
	}

	path, err := cfg.Save()
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func printResult(res scanner.Result) {
	fmt.Printf("Scan %s: %s\n", res.ScanID, res.State)
	fmt.Printf("  Patches:   %d kept of %d\n", res.PatchesKept, res.PatchesCaptured)
	fmt.Printf("  Vertices:  %d\n", res.Vertices)
	fmt.Printf("  Triangles: %d\n", res.Triangles)
	if res.Paths != nil {
		fmt.Printf("  OBJ:       %s\n", res.Paths.OBJ)
		fmt.Printf("  PLY:       %s\n", res.Paths.PLY)
	}
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	maxDistance := fs.Float64("max-distance", 3, "Distance used to mark kept patches")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshscan info [-max-distance m] <recording.yaml>")
		os.Exit(1)
	}

	rec, err := tracking.LoadRecording(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Recording:      %s\n", fs.Arg(0))
	fmt.Printf("Reconstruction: %v\n", rec.ReconstructionSupported)

	snap := rec.Snapshot()
	if snap == nil {
		fmt.Println("Frame:          none")
		return
	}
	camera := snap.CameraPosition()
	fmt.Printf("Camera:         (%.3f, %.3f, %.3f)\n", camera.X, camera.Y, camera.Z)
	fmt.Printf("Patches:        %d\n", len(snap.Patches))
	fmt.Println()

	limit := float32(*maxDistance)
	for i := range snap.Patches {
		p := &snap.Patches[i]
		mark := " "
		if p.Origin().Distance(camera) <= limit {
			mark = "*"
		}
		status := "ok"
		if err := p.Validate(); err != nil {
			status = err.Error()
		}
		fmt.Printf("  %s #%-4d %6d verts %6d tris  dist %.3f  %s\n",
			mark, i, p.VertexCount, p.PrimitiveCount, p.Origin().Distance(camera), status)
	}

	kept := mesh.Filter(snap.Patches, camera, limit)
	combined, err := mesh.Extract(kept, mesh.ExtractOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Printf("Within %.2f m: %d patches, %d vertices, %d triangles\n",
		limit, len(kept), len(combined.Vertices), len(combined.Triangles))
	if b, ok := combined.Bounds(); ok {
		fmt.Printf("Bounds: (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n",
			b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	}
}

func cmdVerify(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshscan verify <file.obj|file.ply>")
		os.Exit(1)
	}
	path := args[0]

	var (
		m   *mesh.CombinedMesh
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		m, err = formats.ParseOBJFile(path)
	case ".ply":
		var h *formats.PLYHeader
		h, m, err = formats.ParsePLYFile(path)
		if err == nil {
			fmt.Printf("Format:    %s %s\n", h.Format, h.Version)
			for _, e := range h.Elements {
				fmt.Printf("Element:   %s %d (%s)\n", e.Name, e.Count, strings.Join(e.Properties, " "))
			}
		}
	default:
		err = fmt.Errorf("unknown file type %q", filepath.Ext(path))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Vertices:  %d\n", len(m.Vertices))
	fmt.Printf("Triangles: %d\n", len(m.Triangles))
	if b, ok := m.Bounds(); ok {
		fmt.Printf("Bounds:    (%g, %g, %g) - (%g, %g, %g)\n",
			b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	}
}

func cmdSample(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshscan sample <recording.yaml>")
		os.Exit(1)
	}

	snap := &tracking.Snapshot{
		Camera: math.Identity(),
		Patches: []mesh.Patch{
			samplePatch(math.Identity(), [3]mesh.Position{{}, {X: 1}, {Y: 1}}),
			samplePatch(math.Identity(), [3]mesh.Position{{X: 2, Y: 2, Z: 2}, {X: 3, Y: 2, Z: 2}, {X: 2, Y: 3, Z: 2}}),
			samplePatch(math.Translate(10, 0, 0), [3]mesh.Position{{}, {X: 1}, {Y: 1}}),
		},
	}
	if err := tracking.RecordSnapshot(snap).SaveTo(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d patches)\n", args[0], len(snap.Patches))
}

// samplePatch packs one triangle the way a tracking session delivers it.
func samplePatch(transform math.Mat4, tri [3]mesh.Position) mesh.Patch {
	var vbuf, ibuf bytes.Buffer
	for _, v := range tri {
		binary.Write(&vbuf, binary.LittleEndian, v.Array())
	}
	binary.Write(&ibuf, binary.LittleEndian, [3]uint32{0, 1, 2})

	return mesh.Patch{
		VertexBuffer:           vbuf.Bytes(),
		VertexStride:           12,
		VertexCount:            3,
		IndexBuffer:            ibuf.Bytes(),
		IndexStride:            4,
		IndexCountPerPrimitive: mesh.TriangleIndexCount,
		PrimitiveCount:         1,
		Transform:              transform,
	}
}
