package chunker

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid chunker config")

// Config tunes chunk sizing. Sizes are measured in characters (runes).
//
// TargetSize:        soft upper bound for a chunk (e.g., 1000).
// OverlapSize:       characters carried from the end of one chunk into the next (e.g., 200).
// MinChunkSize:      chunks below this are merged forward or dropped, depending on mode.
// PreserveStructure: section-aware chunking when true, fixed window otherwise.
type Config struct {
	TargetSize        int
	OverlapSize       int
	MinChunkSize      int
	PreserveStructure bool
}

func DefaultConfig() Config {
	return Config{
		TargetSize:        1000,
		OverlapSize:       200,
		MinChunkSize:      100,
		PreserveStructure: true,
	}
}

func (c Config) Validate() error {
	if c.TargetSize <= 0 {
		return fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidConfig, c.TargetSize)
	}
	if c.OverlapSize < 0 || c.OverlapSize >= c.TargetSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, c.TargetSize, c.OverlapSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.TargetSize {
		return fmt.Errorf("%w: min chunk size must be in [0, %d], got %d", ErrInvalidConfig, c.TargetSize, c.MinChunkSize)
	}
	return nil
}

// mergeLimit is the largest chunk the merge step and the size penalty tolerate.
func (c Config) mergeLimit() int {
	return c.TargetSize * 6 / 5
}
