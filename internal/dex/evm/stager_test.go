package evm

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/execution"
	"github.com/TerexitariusStomp/HummdingerAI/internal/signal"
)

func TestBundleStagerNeverSubmits(t *testing.T) {
	relay := &recordingRelay{}
	builder := NewBuilder("", zerolog.Nop(), WithChain(&fakeChain{head: 41}), WithRelay(relay))
	var buf bytes.Buffer
	stager := NewBundleStager(builder, 5, zerolog.New(&buf))

	stager.Stage(context.Background(), execution.Intent{Symbol: "ETH/USDT", Signal: signal.New(signal.Buy, 0.58, ""), StageBundle: true})

	if relay.txs != nil || relay.block != 0 {
		t.Fatalf("staging must not reach the relay")
	}
	out := buf.String()
	for _, want := range []string{`"target_block":42`, `"gas_price_wei":"5000000000"`, "ETH/USDT"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log, got %s", want, out)
		}
	}
}

func TestBundleStagerUnconnected(t *testing.T) {
	var buf bytes.Buffer
	stager := NewBundleStager(NewBuilder("", zerolog.Nop()), 5, zerolog.New(&buf))
	stager.Stage(context.Background(), execution.Intent{Symbol: "ETH/USDT", Signal: signal.New(signal.Sell, 0.9, "")})
	if strings.Contains(buf.String(), "target_block") {
		t.Fatalf("unconnected stager should not report a target block: %s", buf.String())
	}
}

func TestBundleStagerInfinitePriorityDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	stager := NewBundleStager(nil, math.Inf(1), zerolog.New(&buf))
	stager.Stage(context.Background(), execution.Intent{Symbol: "ETH/USDT", Signal: signal.New(signal.Buy, 0.9, "")})
	if !strings.Contains(buf.String(), `"gas_price_wei":"0"`) {
		t.Fatalf("expected zero gas price, got %s", buf.String())
	}
}
