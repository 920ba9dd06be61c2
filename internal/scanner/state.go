package scanner

import "fmt"

// State is a phase of a scan.
type State int

const (
	Idle            State = iota // No scan has run yet
	ArmingFirstPass              // Session started, waiting for tracking to settle
	ArmedSecondPass              // Session re-armed, capture window running
	Capturing                    // Session paused, reading the last frame
	Exporting                    // Filtering, extracting and writing files
	Done                         // Both files written
	Failed                       // Scan aborted, no files reported
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ArmingFirstPass:
		return "ArmingFirstPass"
	case ArmedSecondPass:
		return "ArmedSecondPass"
	case Capturing:
		return "Capturing"
	case Exporting:
		return "Exporting"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Terminal returns true for Done and Failed.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
