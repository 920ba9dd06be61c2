package config

import "flag"

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagMaxDistance = flag.Float64("max-distance", -1, "Keep patches within this many meters of the camera")
	flagWarmup      = flag.Duration("warmup", -1, "Delay before the session is re-armed")
	flagCapture     = flag.Duration("capture", -1, "Capture window after re-arming")
	flagOut         = flag.String("out", "", "Output directory")
	flagName        = flag.String("name", "", "Model file name without extension")
	flagWorld       = flag.Bool("world", false, "Write world-space positions")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag command-line arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMaxDistance >= 0 {
		cfg.Scan.MaxDistance = float32(*flagMaxDistance)
	}
	if *flagWarmup >= 0 {
		cfg.Scan.WarmupDelay = *flagWarmup
	}
	if *flagCapture >= 0 {
		cfg.Scan.CaptureDuration = *flagCapture
	}
	if *flagOut != "" {
		cfg.Export.Dir = *flagOut
	}
	if *flagName != "" {
		cfg.Export.ModelName = *flagName
	}
	if *flagWorld {
		cfg.Export.WorldSpace = true
	}
}
