package executor

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/anima-graph/engine/core"
)

// FailurePolicy decides what happens to a draw whose pipeline fails to compile.
type FailurePolicy uint8

const (
	// FailureAbort stops the stream and returns the error.
	FailureAbort FailurePolicy = iota
	// FailureSkip logs the error and drops the draw.
	FailureSkip
)

func (p FailurePolicy) String() string {
	switch p {
	case FailureAbort:
		return "abort"
	case FailureSkip:
		return "skip"
	}
	return "unknown"
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "abort", "":
		return FailureAbort, nil
	case "skip":
		return FailureSkip, nil
	}
	return FailureAbort, fmt.Errorf("unknown failure policy '%s': %w", s, core.ErrConfiguration)
}
