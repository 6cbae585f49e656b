// Package bookkit holds the primitive types shared by the matching engine,
// the queue disciplines, and the market-data replay pipeline: order
// identifiers, sides, integer tick prices, quantities, and timestamps.
package bookkit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderID uniquely identifies a live order over the life of a book.
type OrderID uint64

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the contra side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderKind distinguishes resting limit orders from immediate-or-drop
// market orders.
type OrderKind int

const (
	Limit OrderKind = iota
	Market
)

func (k OrderKind) String() string {
	if k == Market {
		return "market"
	}
	return "limit"
}

// Price is a signed integer tick count. One tick is the minimum price
// increment; there is no fractional-tick handling.
type Price int64

// Qty is an unsigned quantity. A live resting order always has Qty > 0.
type Qty uint64

// Timestamp is nanoseconds since the Unix epoch. Callers within a single
// input stream are expected to supply non-decreasing values.
type Timestamp int64

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now().UnixNano())
}

func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

// Order is handed to the engine by value; the engine owns any residual
// that ends up resting in a book.
type Order struct {
	ID        OrderID
	Side      Side
	Kind      OrderKind
	Price     Price // meaningful only for Kind == Limit
	Qty       Qty   // remaining quantity
	Timestamp Timestamp
}

func (o Order) String() string {
	if o.Kind == Market {
		return fmt.Sprintf("Order{id=%d side=%s market qty=%d}", o.ID, o.Side, o.Qty)
	}
	return fmt.Sprintf("Order{id=%d side=%s limit price=%d qty=%d}", o.ID, o.Side, o.Price, o.Qty)
}

// Trade records a single fill between a taker and a resting maker. The
// trade price is always the maker's resting price.
type Trade struct {
	TradeID  uuid.UUID
	TakerID  OrderID
	MakerID  OrderID
	Price    Price
	Qty      Qty
	Timestamp Timestamp
}

func NewTrade(takerID, makerID OrderID, price Price, qty Qty, ts Timestamp) Trade {
	return Trade{
		TradeID:   uuid.New(),
		TakerID:   takerID,
		MakerID:   makerID,
		Price:     price,
		Qty:       qty,
		Timestamp: ts,
	}
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade{id=%s taker=%d maker=%d price=%d qty=%d}",
		t.TradeID, t.TakerID, t.MakerID, t.Price, t.Qty)
}

// LevelView is a read-only aggregate view of one price level, used in
// DepthSnapshot.
type LevelView struct {
	Price Price
	Qty   Qty
}

// DepthSnapshot is an immutable depth view of the book at a point strictly
// between two mutating engine operations.
type DepthSnapshot struct {
	Timestamp Timestamp
	BestBid   *Price
	BestAsk   *Price
	Bids      []LevelView // price-descending, truncated to K
	Asks      []LevelView // price-ascending, truncated to K
}
