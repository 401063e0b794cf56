// Package mining implements the proof-of-work subsystem: the difficulty
// target representation, the stoppable nonce-search engine, and the batched
// parallel hash evaluator.
package mining

import (
	"strings"
	"time"
)

// Difficulty maps an ordinal level to a leading-zero hex-prefix target.
// A hash is valid under the difficulty iff it starts with the target prefix.
// The zero value (level 0) has an empty target and accepts every hash.
type Difficulty struct {
	Level uint32
}

// NewDifficulty returns a Difficulty for the given ordinal level.
func NewDifficulty(level uint32) Difficulty {
	return Difficulty{Level: level}
}

// TargetPrefix returns the required hash prefix, e.g. "0000" for level 4.
func (d Difficulty) TargetPrefix() string {
	return strings.Repeat("0", int(d.Level))
}

// IsValidHash reports whether hash meets the difficulty target. The match is
// case-sensitive against lowercase hex.
func (d Difficulty) IsValidHash(hash string) bool {
	return strings.HasPrefix(hash, d.TargetPrefix())
}

// Adjust returns a retargeted difficulty: one level harder when the observed
// mining time beat the target, one level easier (never below 1) when it
// overshot, unchanged otherwise.
func (d Difficulty) Adjust(observed, target time.Duration) Difficulty {
	level := d.Level
	if observed < target {
		level++
	} else if observed > target && level > 1 {
		level--
	}
	return Difficulty{Level: level}
}
