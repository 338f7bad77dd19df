// Package risk holds guard-rails consulted before a signal may stage on-chain parameters.
package risk

import "github.com/TerexitariusStomp/HummdingerAI/internal/signal"

// Limits gates bundle staging.
type Limits struct {
	MinStageConfidence float64
}

// AllowStage reports whether sig may stage a bundle. Hold never stages.
func (l Limits) AllowStage(sig signal.Signal) bool {
	if sig.Action == signal.Hold {
		return false
	}
	return sig.Confidence >= l.MinStageConfidence
}
