package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"orderbookcore/internal/driver"
	"orderbookcore/internal/engine"
	"orderbookcore/internal/replay"
)

func main() {
	path := flag.String("file", "", "Path to the CSV market data file (compulsory)")
	speed := flag.Float64("speed", 1.0, "Playback speed multiplier (1.0 = wall-clock locked)")
	snapshotDepth := flag.Int("depth", 10, "Number of price levels to carry in each published snapshot")
	buildIndex := flag.Bool("index", false, "Build a sparse timestamp index before replay (requires a seekable file)")
	flag.Parse()

	if *path == "" {
		fmt.Println("Error: -file is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("failed to open market data file")
	}
	defer f.Close()

	source, err := replay.NewCSVSource(f, replay.WithPlaybackSpeed(*speed))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct csv source")
	}
	if *buildIndex {
		if err := source.BuildTimeIndex(64); err != nil {
			log.Warn().Err(err).Msg("could not build timestamp index, falling back to linear seek")
		}
	}

	book := engine.New(engine.WithSnapshotDepth(*snapshotDepth))
	reporter := engine.NewLogReporter(zerolog.New(os.Stdout).With().Timestamp().Logger())
	d := driver.New(source, book, reporter)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := d.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("replay terminated with error")
	}

	stats := d.Stats()
	log.Info().
		Uint64("events_dispatched", stats.EventsDispatched).
		Uint64("trades_emitted", stats.TradesEmitted).
		Uint64("row_errors", stats.RowErrors).
		Uint64("orders_rejected", stats.OrdersRejected).
		Msg("replay finished")
}
