package evm

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/execution"
	"github.com/TerexitariusStomp/HummdingerAI/internal/metrics"
)

// BundleStager records the parameters a bundle would use for an intent. It never submits;
// submission is a separate caller action through Builder.Send.
type BundleStager struct {
	builder      *Builder
	priorityGwei float64
	log          zerolog.Logger
}

// NewBundleStager wires the stager to builder; builder may be unconnected.
func NewBundleStager(builder *Builder, priorityGwei float64, log zerolog.Logger) *BundleStager {
	return &BundleStager{builder: builder, priorityGwei: priorityGwei, log: log}
}

// Stage logs the prepared gas price and, when connected, the next target block.
func (s *BundleStager) Stage(ctx context.Context, in execution.Intent) {
	ev := s.log.Info().
		Str("symbol", in.Symbol).
		Str("action", string(in.Signal.Action)).
		Float64("confidence", in.Signal.Confidence).
		Str("gas_price_wei", GweiToWei(s.priorityGwei).String())

	if s.builder != nil && s.builder.Connected() {
		if head, err := s.builder.chain.BlockNumber(ctx); err == nil {
			ev = ev.Uint64("target_block", head+1)
		} else {
			s.log.Debug().Err(err).Msg("head block unavailable while staging")
		}
	}
	ev.Msg("bundle parameters staged; submission requires an explicit send")
	metrics.BundlesTotal.WithLabelValues("staged").Inc()
}
