// Package queue defines the per-price-level queue-discipline contract and
// the reference FIFO implementation.
package queue

import "orderbookcore/internal/bookkit"

// Discipline is a polymorphic per-price-level container of resting orders.
// Implementations decide the priority in which resting orders are matched;
// the book never inspects ordering directly, it only calls through this
// interface.
type Discipline interface {
	// Enqueue appends a resting order. Priority among same-price orders is
	// discipline-defined; FIFO uses strict arrival order.
	Enqueue(order bookkit.Order)

	// MatchAgainst consumes up to takerQty of resting liquidity at price,
	// attributing fills to takerID. It returns the total filled quantity, a
	// time-ordered list of trades, and the ids of any resting makers that
	// were fully consumed (and therefore already evicted from this
	// discipline's internal queue) — the caller uses that list to drop them
	// from its own id index. The caller is responsible for removing any
	// price level that becomes empty as a result.
	MatchAgainst(takerID bookkit.OrderID, takerQty bookkit.Qty, ts bookkit.Timestamp) (filled bookkit.Qty, trades []bookkit.Trade, fullyFilledMakers []bookkit.OrderID)

	// Cancel removes a specific resting order and returns the quantity it
	// held at the moment of removal, or 0 if it was not present.
	Cancel(id bookkit.OrderID) bookkit.Qty

	// TotalQty returns the aggregate resting quantity, O(1).
	TotalQty() bookkit.Qty

	// IsEmpty reports whether the discipline holds no resting orders, O(1).
	IsEmpty() bool
}

// Factory constructs a fresh, empty Discipline for a newly created price
// level. The engine is parameterized over this so alternative disciplines
// (pro-rata, etc.) can be swapped in without touching the book.
type Factory func() Discipline
