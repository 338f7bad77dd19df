package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/big"
	"os"
	"time"

	"github.com/TerexitariusStomp/HummdingerAI/internal/config"
	"github.com/TerexitariusStomp/HummdingerAI/internal/dex/evm"
	"github.com/TerexitariusStomp/HummdingerAI/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (environment only when empty)")
	txPath := flag.String("txs", "bundle.json", "JSON array of pending transactions")
	block := flag.Uint64("block", 0, "target block; 0 targets the block after the current head")
	dryRun := flag.Bool("dry-run", false, "build and print the bundle without submitting")
	flag.Parse()

	log := util.NewLogger("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = util.NewLoggerTo(os.Stdout, cfg.App.LogLevel, cfg.App.LogFormat)

	file, err := os.Open(*txPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open pending transactions")
	}
	dec := json.NewDecoder(file)
	dec.UseNumber()
	var pending []evm.Transaction
	err = dec.Decode(&pending)
	file.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("decode pending transactions")
	}

	key, err := evm.ParsePrivateKey(cfg.Chain.PrivateKey)
	if err != nil {
		log.Fatal().Err(err).Msg("signing key")
	}
	if err := evm.MatchAddress(key, cfg.Chain.PublicAddress); err != nil {
		log.Fatal().Err(err).Msg("signing key does not match public address")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	relay := evm.NewFlashbotsRelay(cfg.Relay.Endpoint, key, big.NewInt(cfg.Chain.ChainID))
	builder := evm.NewBuilder(cfg.Chain.RPCURL, log,
		evm.WithRelay(relay),
		evm.WithSender(evm.AddressOf(key)),
	)
	if err := builder.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect rpc")
	}
	defer builder.Close()

	bundle, err := builder.Build(ctx, pending, cfg.Relay.PriorityGwei)
	if err != nil {
		log.Fatal().Err(err).Msg("build bundle")
	}
	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(bundle)
		return
	}

	sub := builder.Send(ctx, bundle, *block)
	if sub.Skipped || sub.Err != nil {
		os.Exit(1)
	}
	log.Info().Uint64("target_block", sub.TargetBlock).Int("size", sub.Size).Str("signer", evm.AddressOf(key).Hex()).Msg("done")
}
