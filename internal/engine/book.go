// Package engine implements the matching core: a single-instrument limit
// order book with price-time matching over a pluggable queue discipline,
// cancellation that finds an order's level through a side-table index (the
// removal from that level's queue is then up to the discipline; FIFO scans
// it linearly), and bounded-cost snapshotting.
package engine

import (
	"fmt"

	"github.com/tidwall/btree"

	"orderbookcore/internal/bookkit"
	"orderbookcore/internal/queue"
)

// PriceLevel is the aggregate of all resting orders at one price on one
// side. It owns its queue discipline; it never points back to the book or
// to a parent map.
type PriceLevel struct {
	Price      bookkit.Price
	Discipline queue.Discipline
}

type priceLevels = btree.BTreeG[*PriceLevel]

type indexEntry struct {
	side  bookkit.Side
	price bookkit.Price
}

// Book is a single instrument's order book: two price-indexed maps (bids
// descending, asks ascending) of queue disciplines, plus a side-table
// indexing every live order by id. A Book never multiplexes more than one
// instrument: callers wanting per-symbol books hold one Book per symbol
// externally.
type Book struct {
	bids *priceLevels
	asks *priceLevels
	idx  map[bookkit.OrderID]indexEntry

	queueFactory  queue.Factory
	snapshotDepth int
}

// Option configures a Book at construction time.
type Option func(*Book)

// WithQueueFactory overrides the queue discipline used for newly created
// price levels. Defaults to queue.NewFIFO.
func WithQueueFactory(f queue.Factory) Option {
	return func(b *Book) { b.queueFactory = f }
}

// WithSnapshotDepth sets the number of levels per side Snapshot
// materializes. Defaults to 10.
func WithSnapshotDepth(k int) Option {
	return func(b *Book) { b.snapshotDepth = k }
}

const defaultSnapshotDepth = 10

// New constructs an empty Book.
func New(opts ...Option) *Book {
	b := &Book{
		idx:           make(map[bookkit.OrderID]indexEntry),
		queueFactory:  queue.NewFIFO,
		snapshotDepth: defaultSnapshotDepth,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.bids = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.Price > c.Price })
	b.asks = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.Price < c.Price })
	return b
}

func (b *Book) levels(side bookkit.Side) *priceLevels {
	if side == bookkit.Buy {
		return b.bids
	}
	return b.asks
}

// contraLevels returns the price levels on the opposite side of order.Side,
// i.e. the book that a taker on that side would cross into.
func (b *Book) contraLevels(side bookkit.Side) *priceLevels {
	return b.levels(side.Opposite())
}

// crosses reports whether a taker on takerSide at takerPrice (ignored for
// Market orders) would cross the given contra-side best level.
func crosses(takerSide bookkit.Side, isMarket bool, takerPrice bookkit.Price, level *PriceLevel) bool {
	if isMarket {
		return true
	}
	if takerSide == bookkit.Buy {
		// Buy crosses any ask level priced at or below the taker's limit.
		return level.Price <= takerPrice
	}
	// Sell crosses any bid level priced at or above the taker's limit.
	return level.Price >= takerPrice
}

// Place validates and applies order to the book, returning the trades
// produced during the matching sweep. Validation failures leave the book
// unchanged.
func (b *Book) Place(order bookkit.Order) ([]bookkit.Trade, error) {
	if _, exists := b.idx[order.ID]; exists {
		return nil, fmt.Errorf("%w: id=%d", ErrDuplicateOrder, order.ID)
	}
	if order.Qty == 0 {
		return nil, fmt.Errorf("%w: id=%d", ErrInvalidQty, order.ID)
	}
	if order.Kind == bookkit.Limit && order.Price <= 0 {
		return nil, fmt.Errorf("%w: id=%d price=%d", ErrInvalidPrice, order.ID, order.Price)
	}

	var trades []bookkit.Trade
	remaining := order.Qty
	isMarket := order.Kind == bookkit.Market
	contra := b.contraLevels(order.Side)

	for remaining > 0 {
		level, ok := contra.Min()
		if !ok || !crosses(order.Side, isMarket, order.Price, level) {
			break
		}

		filled, levelTrades, fullyFilledMakers := level.Discipline.MatchAgainst(order.ID, remaining, order.Timestamp)
		trades = append(trades, levelTrades...)
		remaining -= filled

		// Aggregate qty bookkeeping (via the discipline's own TotalQty) is
		// already updated by MatchAgainst; update the index before the
		// level is possibly removed below so idx never points at a maker
		// that no longer rests anywhere.
		for _, makerID := range fullyFilledMakers {
			delete(b.idx, makerID)
		}

		if level.Discipline.IsEmpty() {
			contra.Delete(level)
		}
	}

	if remaining > 0 && order.Kind == bookkit.Limit {
		order.Qty = remaining
		own := b.levels(order.Side)
		probe := &PriceLevel{Price: order.Price}
		level, ok := own.Get(probe)
		if !ok {
			level = &PriceLevel{Price: order.Price, Discipline: b.queueFactory()}
			own.Set(level)
		}
		level.Discipline.Enqueue(order)
		b.idx[order.ID] = indexEntry{side: order.Side, price: order.Price}
	}
	// Market orders with residual quantity are silently dropped: they
	// never rest and never enter the index.

	return trades, nil
}

// Cancel removes a resting order by id, returning the quantity it held at
// the moment of removal. It fails with ErrUnknownOrder if the id is not
// live; from the book's perspective a rejected cancel is idempotent — a
// second cancel of the same id always fails the same way.
func (b *Book) Cancel(id bookkit.OrderID) (bookkit.Qty, error) {
	entry, ok := b.idx[id]
	if !ok {
		return 0, fmt.Errorf("%w: id=%d", ErrUnknownOrder, id)
	}

	levels := b.levels(entry.side)
	probe := &PriceLevel{Price: entry.price}
	level, ok := levels.Get(probe)
	if !ok {
		// Index and level map disagree; should never happen under
		// single-writer access.
		delete(b.idx, id)
		return 0, fmt.Errorf("%w: id=%d", ErrUnknownOrder, id)
	}

	removed := level.Discipline.Cancel(id)
	delete(b.idx, id)

	if level.Discipline.IsEmpty() {
		levels.Delete(level)
	}

	return removed, nil
}

// BestBid returns the highest-keyed bid price with a non-empty level, or
// false if the bid side is empty.
func (b *Book) BestBid() (bookkit.Price, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the lowest-keyed ask price with a non-empty level, or
// false if the ask side is empty.
func (b *Book) BestAsk() (bookkit.Price, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// DepthAt returns the aggregate resting quantity at the exact (side, price)
// level, or 0 if no such level exists.
func (b *Book) DepthAt(side bookkit.Side, price bookkit.Price) bookkit.Qty {
	level, ok := b.levels(side).Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return level.Discipline.TotalQty()
}

// Snapshot materializes the top-K levels per side, in priority order,
// together with the current best bid/ask and the call timestamp. It does
// not mutate the book and runs in O(K) given the btree's already-sorted
// iteration order.
func (b *Book) Snapshot(ts bookkit.Timestamp) bookkit.DepthSnapshot {
	snap := bookkit.DepthSnapshot{Timestamp: ts}

	if price, ok := b.BestBid(); ok {
		p := price
		snap.BestBid = &p
	}
	if price, ok := b.BestAsk(); ok {
		p := price
		snap.BestAsk = &p
	}

	snap.Bids = topLevels(b.bids, b.snapshotDepth)
	snap.Asks = topLevels(b.asks, b.snapshotDepth)

	return snap
}

func topLevels(tr *priceLevels, k int) []bookkit.LevelView {
	out := make([]bookkit.LevelView, 0, k)
	tr.Scan(func(level *PriceLevel) bool {
		if len(out) >= k {
			return false
		}
		out = append(out, bookkit.LevelView{Price: level.Price, Qty: level.Discipline.TotalQty()})
		return true
	})
	return out
}
