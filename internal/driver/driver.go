// Package driver pumps a marketdata.Source into an engine.Book under
// goroutine supervision, publishing a lock-free depth snapshot after every
// mutating event.
package driver

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"orderbookcore/internal/bookkit"
	"orderbookcore/internal/engine"
	"orderbookcore/internal/marketdata"
	"orderbookcore/internal/ringbuf"
)

// defaultFeedBufferCapacity bounds how many observational (Trade/Quote)
// feed events the driver retains for a future broadcaster to drain.
const defaultFeedBufferCapacity = 256

// Stats is a running count of what the driver has done, read via Driver.Stats
// for an out-of-scope metrics sink to eventually export.
type Stats struct {
	EventsDispatched uint64
	TradesEmitted    uint64
	RowErrors        uint64
	OrdersRejected   uint64
}

// Driver binds one marketdata.Source to one engine.Book and publishes a
// lock-free depth snapshot after every mutating event.
type Driver struct {
	source   marketdata.Source
	book     *engine.Book
	reporter engine.Reporter

	// feed retains the most recent observational (Trade/Quote) events from
	// the source, for a future broadcaster to drain; it is not consulted
	// by matching itself.
	feed *ringbuf.Buffer[marketdata.Event]

	snapshot atomic.Pointer[bookkit.DepthSnapshot]
	stats    atomicStats
}

type atomicStats struct {
	eventsDispatched atomic.Uint64
	tradesEmitted    atomic.Uint64
	rowErrors        atomic.Uint64
	ordersRejected   atomic.Uint64
}

// New constructs a Driver. reporter may be nil, in which case trades and
// errors are observed only through LatestSnapshot/Stats.
func New(source marketdata.Source, book *engine.Book, reporter engine.Reporter) *Driver {
	if reporter == nil {
		reporter = engine.NoopReporter{}
	}
	return &Driver{
		source:   source,
		book:     book,
		reporter: reporter,
		feed:     ringbuf.New[marketdata.Event](defaultFeedBufferCapacity),
	}
}

// LatestSnapshot returns the most recently published depth snapshot, or
// nil if none has been published yet. Safe to call concurrently with Run.
func (d *Driver) LatestSnapshot() *bookkit.DepthSnapshot {
	return d.snapshot.Load()
}

// RecentFeed returns the most recent observational (Trade/Quote) events,
// at most the buffer's capacity, oldest first. Safe to call concurrently
// with Run.
func (d *Driver) RecentFeed() []marketdata.Event {
	return d.feed.OldestFirst()
}

// Stats returns a point-in-time copy of the running counters. Safe to call
// concurrently with Run.
func (d *Driver) Stats() Stats {
	return Stats{
		EventsDispatched: d.stats.eventsDispatched.Load(),
		TradesEmitted:    d.stats.tradesEmitted.Load(),
		RowErrors:        d.stats.rowErrors.Load(),
		OrdersRejected:   d.stats.ordersRejected.Load(),
	}
}

// Run drives the source until it is exhausted or ctx is cancelled. It
// returns nil on clean exhaustion (io.EOF from the source), or the first
// fatal error otherwise. Row-level errors from the source are reported
// through reporter and do not stop the loop.
func (d *Driver) Run(ctx context.Context) error {
	t, tombCtx := tomb.WithContext(ctx)
	t.Go(func() error {
		return d.pump(t, tombCtx)
	})
	err := t.Wait()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (d *Driver) pump(t *tomb.Tomb, ctx context.Context) error {
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		ev, err := d.source.NextEvent(ctx)
		if err != nil {
			var rowErr *marketdata.RowError
			if errors.As(err, &rowErr) {
				d.stats.rowErrors.Add(1)
				d.reporter.ReportError(rowErr)
				log.Warn().Err(rowErr).Msg("skipping unparseable market data row")
				continue
			}
			if errors.Is(err, io.EOF) {
				log.Info().Msg("market data source exhausted")
				return io.EOF
			}
			return err
		}

		d.stats.eventsDispatched.Add(1)
		d.dispatch(ev)
	}
}

func (d *Driver) dispatch(ev marketdata.Event) {
	switch ev.Kind {
	case marketdata.OrderEvent:
		order := bookkit.Order{
			ID:        ev.Order.OrderID,
			Side:      ev.Order.Side,
			Kind:      ev.Order.Kind,
			Price:     ev.Order.Price,
			Qty:       ev.Order.Qty,
			Timestamp: ev.Timestamp,
		}
		trades, err := d.book.Place(order)
		if err != nil {
			d.stats.ordersRejected.Add(1)
			d.reporter.ReportError(err)
			log.Warn().Err(err).Uint64("order_id", uint64(order.ID)).Msg("order rejected")
			break
		}
		if len(trades) > 0 {
			d.stats.tradesEmitted.Add(uint64(len(trades)))
			d.reporter.ReportTrades(trades)
			log.Info().Int("count", len(trades)).Uint64("order_id", uint64(order.ID)).Msg("trades produced")
		}

	case marketdata.CancelEvent:
		if _, err := d.book.Cancel(ev.Cancel.OrderID); err != nil {
			d.reporter.ReportError(err)
			log.Debug().Err(err).Uint64("order_id", uint64(ev.Cancel.OrderID)).Msg("cancel had no effect")
		}

	case marketdata.TradeEvent, marketdata.QuoteEvent:
		// Observational feed data: no book mutation, just retained for a
		// future broadcaster to drain.
		d.feed.Push(ev)

	default:
		log.Warn().Str("kind", ev.Kind.String()).Msg("unhandled market data event kind")
	}

	snap := d.book.Snapshot(ev.Timestamp)
	d.snapshot.Store(&snap)
}
