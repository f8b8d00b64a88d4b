package alerting

import (
	"fmt"
	"time"
)

// Kind enumerates the notifications the monitor can raise.
type Kind string

const (
	KindUnreachable       Kind = "unreachable"
	KindNewBestDifficulty Kind = "new_best_difficulty"
	KindFallbackActivated Kind = "fallback_activated"
	KindLowHashrate       Kind = "low_hashrate"
	KindHashrateRecovered Kind = "hashrate_recovered"
)

// Kinds lists every Kind in a stable order.
var Kinds = []Kind{
	KindUnreachable,
	KindNewBestDifficulty,
	KindFallbackActivated,
	KindLowHashrate,
	KindHashrateRecovered,
}

// ParseKind resolves a kind name as used on the command line.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown alert kind %q", s)
}

// Event is one edge-triggered notification together with the values the
// renderers need.
type Event struct {
	Kind Kind
	At   time.Time

	// BestDiff is the difficulty as reported by the device, BestValue its
	// parsed value. Set for KindNewBestDifficulty.
	BestDiff  string
	BestValue float64

	// PreviousBest is the value the new record replaced.
	PreviousBest float64

	// HashRate in MH/s and the threshold that was crossed. Set for the
	// hashrate kinds.
	HashRate  float64
	Threshold float64

	// Pool is the stratum URL in use. Set for KindFallbackActivated.
	Pool string
}
