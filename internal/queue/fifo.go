package queue

import (
	"github.com/gammazero/deque"

	"orderbookcore/internal/bookkit"
)

// FIFO is the reference queue discipline: among orders resting at the same
// price, fill order equals enqueue order. A partial fill at the head
// reduces its quantity and keeps it at the head; cancellation preserves the
// relative order of the remaining orders.
//
// The resting orders are backed by a gammazero/deque ring buffer rather
// than a plain slice so that head draining (the common case, on every
// match) and arbitrary-position cancellation are both cheap without
// re-slicing arithmetic.
type FIFO struct {
	orders   deque.Deque[bookkit.Order]
	totalQty bookkit.Qty
}

// NewFIFO constructs an empty FIFO discipline. Matches the Factory shape.
func NewFIFO() Discipline {
	return &FIFO{}
}

func (f *FIFO) Enqueue(order bookkit.Order) {
	f.orders.PushBack(order)
	f.totalQty += order.Qty
}

func (f *FIFO) MatchAgainst(takerID bookkit.OrderID, takerQty bookkit.Qty, ts bookkit.Timestamp) (bookkit.Qty, []bookkit.Trade, []bookkit.OrderID) {
	var filled bookkit.Qty
	var trades []bookkit.Trade
	var fullyFilled []bookkit.OrderID

	for takerQty > 0 && f.orders.Len() > 0 {
		head := f.orders.Front()

		matchQty := head.Qty
		if takerQty < matchQty {
			matchQty = takerQty
		}

		trades = append(trades, bookkit.NewTrade(takerID, head.ID, head.Price, matchQty, ts))

		head.Qty -= matchQty
		takerQty -= matchQty
		filled += matchQty
		f.totalQty -= matchQty

		if head.Qty == 0 {
			f.orders.PopFront()
			fullyFilled = append(fullyFilled, head.ID)
		} else {
			// Residual retains head priority: write the reduced quantity
			// back without re-enqueuing.
			f.orders.Set(0, head)
		}
	}

	return filled, trades, fullyFilled
}

func (f *FIFO) Cancel(id bookkit.OrderID) bookkit.Qty {
	idx := f.orders.Index(func(o bookkit.Order) bool { return o.ID == id })
	if idx < 0 {
		return 0
	}
	removed := f.orders.At(idx)
	f.orders.Remove(idx)
	f.totalQty -= removed.Qty
	return removed.Qty
}

func (f *FIFO) TotalQty() bookkit.Qty {
	return f.totalQty
}

func (f *FIFO) IsEmpty() bool {
	return f.orders.Len() == 0
}
