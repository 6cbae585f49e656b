package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbookcore/internal/bookkit"
	"orderbookcore/internal/queue"
)

func order(id bookkit.OrderID, qty bookkit.Qty) bookkit.Order {
	return bookkit.Order{ID: id, Qty: qty, Price: 100, Side: bookkit.Buy, Kind: bookkit.Limit}
}

func TestFIFO_EnqueueOrderIsFillOrder(t *testing.T) {
	f := queue.NewFIFO()
	f.Enqueue(order(1, 10))
	f.Enqueue(order(2, 10))
	f.Enqueue(order(3, 10))

	filled, trades, fullyFilled := f.MatchAgainst(99, 25, 0)
	assert.Equal(t, bookkit.Qty(25), filled)
	require.Len(t, trades, 3)
	assert.Equal(t, bookkit.OrderID(1), trades[0].MakerID)
	assert.Equal(t, bookkit.Qty(10), trades[0].Qty)
	assert.Equal(t, bookkit.OrderID(2), trades[1].MakerID)
	assert.Equal(t, bookkit.Qty(10), trades[1].Qty)
	assert.Equal(t, bookkit.OrderID(3), trades[2].MakerID)
	assert.Equal(t, bookkit.Qty(5), trades[2].Qty)

	assert.Equal(t, []bookkit.OrderID{1, 2}, fullyFilled)
	assert.Equal(t, bookkit.Qty(5), f.TotalQty())
	assert.False(t, f.IsEmpty())
}

func TestFIFO_PartialHeadRetainsPriority(t *testing.T) {
	f := queue.NewFIFO()
	f.Enqueue(order(1, 10))
	f.Enqueue(order(2, 10))

	_, _, fullyFilled := f.MatchAgainst(99, 4, 0)
	assert.Empty(t, fullyFilled)

	// Order 1 should still be head with 6 remaining, so the next match
	// drains its residual before touching order 2.
	_, trades, _ := f.MatchAgainst(99, 6, 0)
	require.Len(t, trades, 1)
	assert.Equal(t, bookkit.OrderID(1), trades[0].MakerID)
	assert.Equal(t, bookkit.Qty(6), trades[0].Qty)
}

func TestFIFO_CancelPreservesRemainingOrder(t *testing.T) {
	f := queue.NewFIFO()
	f.Enqueue(order(1, 10))
	f.Enqueue(order(2, 10))
	f.Enqueue(order(3, 10))

	removed := f.Cancel(2)
	assert.Equal(t, bookkit.Qty(10), removed)
	assert.Equal(t, bookkit.Qty(20), f.TotalQty())

	_, trades, _ := f.MatchAgainst(99, 15, 0)
	require.Len(t, trades, 2)
	assert.Equal(t, bookkit.OrderID(1), trades[0].MakerID)
	assert.Equal(t, bookkit.OrderID(3), trades[1].MakerID)
}

func TestFIFO_CancelMissingReturnsZero(t *testing.T) {
	f := queue.NewFIFO()
	f.Enqueue(order(1, 10))

	assert.Equal(t, bookkit.Qty(0), f.Cancel(404))
	assert.Equal(t, bookkit.Qty(10), f.TotalQty())
}

func TestFIFO_IsEmpty(t *testing.T) {
	f := queue.NewFIFO()
	assert.True(t, f.IsEmpty())
	f.Enqueue(order(1, 10))
	assert.False(t, f.IsEmpty())
	f.Cancel(1)
	assert.True(t, f.IsEmpty())
}
