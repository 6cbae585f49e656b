// Package marketdata defines the tagged market-event model and the
// abstract, replay-oriented data-source contract that feeds the matching
// engine driver.
package marketdata

import "orderbookcore/internal/bookkit"

// EventKind tags which of Event's field groups is populated.
type EventKind int

const (
	TradeEvent EventKind = iota
	QuoteEvent
	OrderEvent
	CancelEvent
)

func (k EventKind) String() string {
	switch k {
	case TradeEvent:
		return "trade"
	case QuoteEvent:
		return "quote"
	case OrderEvent:
		return "order"
	case CancelEvent:
		return "cancel"
	default:
		return "unknown"
	}
}

// TradeFields carries an observed third-party trade print (not a fill
// produced by this engine).
type TradeFields struct {
	Price   bookkit.Price
	Qty     bookkit.Qty
	Side    bookkit.Side
	TradeID string
}

// QuoteFields carries a top-of-book quote observed from the feed.
type QuoteFields struct {
	BidPrice bookkit.Price
	AskPrice bookkit.Price
	BidQty   bookkit.Qty
	AskQty   bookkit.Qty
}

// OrderFields carries a new-order instruction to be dispatched to
// engine.Book.Place.
type OrderFields struct {
	OrderID bookkit.OrderID
	Side    bookkit.Side
	Qty     bookkit.Qty
	Price   bookkit.Price
	Kind    bookkit.OrderKind
}

// CancelFields carries a cancel instruction to be dispatched to
// engine.Book.Cancel.
type CancelFields struct {
	OrderID bookkit.OrderID
	Reason  string
}

// Event is a tagged variant over the four market-event kinds. Exactly one
// of the field groups is meaningful, selected by Kind.
type Event struct {
	Kind      EventKind
	Timestamp bookkit.Timestamp
	Trade     TradeFields
	Quote     QuoteFields
	Order     OrderFields
	Cancel    CancelFields
}
