// Package recorder finds chat messages in a mirrored page and emits each
// finished message exactly once.
package recorder

import "time"

// Config holds the numeric heuristics of the recorder.
type Config struct {
	// Anchor resolution.
	MaxAncestorLevels int // levels walked up from the click target
	DensityMinLen     int // block text band counted towards density
	DensityMaxLen     int
	StableDensity     int // stability rule: density >= StableDensity
	StableMaxLevel    int // ... at level <= StableMaxLevel
	StableSpecificity int // ... with class length > StableSpecificity
	MinDensity        int // below this resolution fails
	RecoveryDensity   int // whole-document resolution needs at least this

	// Discovery.
	CandidateMinLen int
	CandidateMaxLen int
	RescanInterval  time.Duration

	// Completion.
	FirstCheckDelay time.Duration
	CheckInterval   time.Duration
	MaxChecks       int
	LongTextLen     int

	// Selection.
	HintTimeout time.Duration
	HintText    string
}

// DefaultConfig returns the standard heuristics.
func DefaultConfig() Config {
	return Config{
		MaxAncestorLevels: 15,
		DensityMinLen:     30,
		DensityMaxLen:     3000,
		StableDensity:     3,
		StableMaxLevel:    8,
		StableSpecificity: 10,
		MinDensity:        2,
		RecoveryDensity:   3,

		CandidateMinLen: 50,
		CandidateMaxLen: 10000,
		RescanInterval:  3 * time.Second,

		FirstCheckDelay: 1500 * time.Millisecond,
		CheckInterval:   time.Second,
		MaxChecks:       15,
		LongTextLen:     500,

		HintTimeout: 10 * time.Second,
		HintText:    "Click on any chat message to start recording",
	}
}
