package engine

import "errors"

// Engine error taxonomy. All are caller errors; none indicate internal
// corruption. On any of these, book state is unchanged (place is
// all-or-nothing with respect to the book).
var (
	ErrDuplicateOrder = errors.New("engine: duplicate order id")
	ErrUnknownOrder   = errors.New("engine: unknown order id")
	ErrInvalidQty     = errors.New("engine: invalid quantity")
	ErrInvalidPrice   = errors.New("engine: invalid price")
)
