package engine

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"orderbookcore/internal/bookkit"
)

// Reporter receives the side effects of a driver pumping events into a
// Book: the trades produced by each Place call, and any error encountered
// along the way that the driver judged non-fatal (a recoverable row, a
// rejected order). It decouples the engine from any particular sink
// (stdout, a metrics collector, a downstream queue).
type Reporter interface {
	ReportTrades(trades []bookkit.Trade)
	ReportError(err error)
}

// LogReporter is the default Reporter, writing through a zerolog logger.
// It is deliberately thin: one structured event per trade, one per error.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter wraps logger.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// NewDefaultLogReporter wraps the package-level zerolog default logger.
func NewDefaultLogReporter() *LogReporter {
	return &LogReporter{logger: log.Logger}
}

func (r *LogReporter) ReportTrades(trades []bookkit.Trade) {
	for _, tr := range trades {
		r.logger.Info().
			Str("trade_id", tr.TradeID.String()).
			Uint64("taker_id", uint64(tr.TakerID)).
			Uint64("maker_id", uint64(tr.MakerID)).
			Int64("price", int64(tr.Price)).
			Uint64("qty", uint64(tr.Qty)).
			Int64("ts", int64(tr.Timestamp)).
			Msg("trade")
	}
}

func (r *LogReporter) ReportError(err error) {
	if err == nil {
		return
	}
	r.logger.Warn().Err(err).Msg("engine event error")
}

// NoopReporter discards everything; useful for tests and for drivers that
// post-process the returned trades directly instead of observing them.
type NoopReporter struct{}

func (NoopReporter) ReportTrades([]bookkit.Trade) {}
func (NoopReporter) ReportError(error)            {}
