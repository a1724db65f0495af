package analytics

import "time"

// Config holds the thresholds used by Synthesize.
type Config struct {
	// DefaultExpected is used when a question declares no expected duration.
	DefaultExpected time.Duration

	// AnomalyThreshold is the time spent below which a record is an ANOMALY.
	AnomalyThreshold time.Duration

	// OvertimeFactor is the multiple of the expected duration past which
	// elapsed time adds to cognitive load.
	OvertimeFactor float64

	// MaxDistraction caps the distraction score.
	MaxDistraction int

	// BlurPenalty is the distraction added per blur event.
	BlurPenalty int

	// DefaultMastery is the prior for atoms absent from the session's history.
	DefaultMastery float64

	// MasteryRate is how far one passing or failing run moves the estimate
	// toward 1 or 0 before remediation damping.
	MasteryRate float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		DefaultExpected:  60 * time.Second,
		AnomalyThreshold: 100 * time.Millisecond,
		OvertimeFactor:   1.5,
		MaxDistraction:   100,
		BlurPenalty:      20,
		DefaultMastery:   0.5,
		MasteryRate:      0.3,
	}
}
