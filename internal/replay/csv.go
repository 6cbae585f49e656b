// Package replay implements a streaming, line-oriented CSV market-data
// source: it parses one row at a time, never loading the whole file,
// dispatches on an event_type column, and treats malformed or
// unrecognized rows as recoverable.
package replay

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"orderbookcore/internal/bookkit"
	"orderbookcore/internal/marketdata"
)

// ErrMissingHeader is returned by NewCSVSource when a required header
// column is absent.
var ErrMissingHeader = errors.New("replay: csv header missing required column")

// ErrNotSeekable is returned by BuildTimeIndex when the source was not
// opened from an io.ReadSeeker.
var ErrNotSeekable = errors.New("replay: underlying reader does not support seeking")

// ErrBackwardSeekUnsupported is returned by SeekToTime on a non-seekable
// source when the target is at or before the most recently consumed event. With
// no way to rewind the underlying reader, such a source can only honor
// seeks that move the cursor forward.
var ErrBackwardSeekUnsupported = errors.New("replay: cannot seek backward on a non-seekable source")

// Stats is a running count of rows processed, exposed for an operator
// surface's health/metrics endpoint (out of scope to serve here).
type Stats struct {
	LinesRead    int
	ParseErrors  int
	SchemaErrors int
}

type timeIndexEntry struct {
	ts     bookkit.Timestamp
	offset int64
}

// CSVSource is the reference marketdata.Source implementation, reading
// UTF-8, LF-terminated, comma-separated rows.
type CSVSource struct {
	src       io.Reader
	seeker    io.ReadSeeker
	dataStart int64 // byte offset immediately after the header line

	reader     *csv.Reader
	readerBase int64 // absolute file offset corresponding to reader.InputOffset() == 0
	header     map[string]int

	line     int
	finished bool
	pending  *marketdata.Event

	lastSeenTs     bookkit.Timestamp // timestamp of the most recently read row
	haveLastSeenTs bool

	pacer *marketdata.Pacer
	stats Stats

	timeIndex []timeIndexEntry
}

// Option configures a CSVSource at construction time.
type Option func(*CSVSource)

// WithPlaybackSpeed sets the initial playback multiplier (default 1.0).
func WithPlaybackSpeed(multiplier float64) Option {
	return func(s *CSVSource) {
		_ = s.pacer.SetSpeed(multiplier)
	}
}

const (
	colEventType = "event_type"
	colTimestamp = "timestamp"
	colPrice     = "price"
	colQty       = "qty"
	colSide      = "side"
	colTradeID   = "trade_id"
	colBidPrice  = "bid_price"
	colAskPrice  = "ask_price"
	colBidQty    = "bid_qty"
	colAskQty    = "ask_qty"
	colOrderID   = "order_id"
	colKind      = "kind"
	colReason    = "reason"
)

// NewCSVSource wraps r, reading and validating the header line immediately.
// If r also implements io.ReadSeeker, BuildTimeIndex becomes usable.
func NewCSVSource(r io.Reader, opts ...Option) (*CSVSource, error) {
	br := bufio.NewReader(r)
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	headerRow, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("replay: reading header: %w", err)
	}

	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colEventType, colTimestamp} {
		if _, ok := header[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, required)
		}
	}

	s := &CSVSource{
		src:       r,
		reader:    cr,
		header:    header,
		line:      1,
		pacer:      marketdata.NewPacer(),
		dataStart:  cr.InputOffset(),
		readerBase: 0,
	}
	if seeker, ok := r.(io.ReadSeeker); ok {
		s.seeker = seeker
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stats returns a snapshot of rows processed so far.
func (s *CSVSource) Stats() Stats {
	return s.stats
}

// SetPlaybackSpeed implements marketdata.Source.
func (s *CSVSource) SetPlaybackSpeed(multiplier float64) error {
	return s.pacer.SetSpeed(multiplier)
}

// IsFinished implements marketdata.Source.
func (s *CSVSource) IsFinished() bool {
	return s.finished && s.pending == nil
}

// NextEvent implements marketdata.Source. A malformed row surfaces as a
// *marketdata.RowError with a zero Event rather than being silently
// skipped, leaving the log-and-continue decision to the caller.
func (s *CSVSource) NextEvent(ctx context.Context) (marketdata.Event, error) {
	if s.pending != nil {
		ev := *s.pending
		s.pending = nil
		if err := s.pacer.Wait(ctx, ev.Timestamp); err != nil {
			return marketdata.Event{}, err
		}
		return ev, nil
	}

	ev, err := s.readRaw()
	if err != nil {
		return marketdata.Event{}, err
	}
	if err := s.pacer.Wait(ctx, ev.Timestamp); err != nil {
		return marketdata.Event{}, err
	}
	return ev, nil
}

// readRaw reads and parses exactly one row, with no playback-speed waiting,
// advancing s.line/s.stats and setting s.finished on io.EOF.
func (s *CSVSource) readRaw() (marketdata.Event, error) {
	record, err := s.reader.Read()
	s.line++
	if err != nil {
		if err == io.EOF {
			s.finished = true
		}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			s.stats.ParseErrors++
			return marketdata.Event{}, marketdata.NewParseError(s.line, err)
		}
		return marketdata.Event{}, err
	}
	s.stats.LinesRead++

	ev, rowErr := s.parseRecord(record)
	if rowErr != nil {
		if rowErr.Class == marketdata.SchemaErrorClass {
			s.stats.SchemaErrors++
		} else {
			s.stats.ParseErrors++
		}
		return marketdata.Event{}, rowErr
	}
	s.lastSeenTs = ev.Timestamp
	s.haveLastSeenTs = true
	return ev, nil
}

func (s *CSVSource) field(record []string, col string) (string, bool) {
	idx, ok := s.header[col]
	if !ok || idx >= len(record) {
		return "", false
	}
	return record[idx], true
}

func (s *CSVSource) requireField(record []string, col string) (string, error) {
	v, ok := s.field(record, col)
	if !ok {
		return "", fmt.Errorf("missing column %q", col)
	}
	return v, nil
}

func (s *CSVSource) parseRecord(record []string) (marketdata.Event, *marketdata.RowError) {
	typeStr, ok := s.field(record, colEventType)
	if !ok {
		return marketdata.Event{}, marketdata.NewParseError(s.line, fmt.Errorf("missing column %q", colEventType))
	}

	tsStr, err := s.requireField(record, colTimestamp)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	tsRaw, err := strconv.ParseUint(tsStr, 10, 64)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, fmt.Errorf("bad timestamp %q: %w", tsStr, err))
	}
	ts := bookkit.Timestamp(tsRaw)

	switch typeStr {
	case "trade":
		return s.parseTrade(record, ts)
	case "quote":
		return s.parseQuote(record, ts)
	case "order":
		return s.parseOrder(record, ts)
	case "cancel":
		return s.parseCancel(record, ts)
	default:
		return marketdata.Event{}, marketdata.NewSchemaError(s.line, fmt.Errorf("unknown event_type %q", typeStr))
	}
}

func (s *CSVSource) parseSide(record []string) (bookkit.Side, error) {
	raw, err := s.requireField(record, colSide)
	if err != nil {
		return 0, err
	}
	switch raw {
	case "buy":
		return bookkit.Buy, nil
	case "sell":
		return bookkit.Sell, nil
	default:
		return 0, fmt.Errorf("bad side %q", raw)
	}
}

func (s *CSVSource) parseUint(record []string, col string) (uint64, error) {
	raw, err := s.requireField(record, col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", col, raw, err)
	}
	return v, nil
}

func (s *CSVSource) parseInt(record []string, col string) (int64, error) {
	raw, err := s.requireField(record, col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", col, raw, err)
	}
	return v, nil
}

func (s *CSVSource) parseTrade(record []string, ts bookkit.Timestamp) (marketdata.Event, *marketdata.RowError) {
	price, err := s.parseInt(record, colPrice)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	qty, err := s.parseUint(record, colQty)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	side, err := s.parseSide(record)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	tradeID, err := s.requireField(record, colTradeID)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	return marketdata.Event{
		Kind:      marketdata.TradeEvent,
		Timestamp: ts,
		Trade: marketdata.TradeFields{
			Price:   bookkit.Price(price),
			Qty:     bookkit.Qty(qty),
			Side:    side,
			TradeID: tradeID,
		},
	}, nil
}

func (s *CSVSource) parseQuote(record []string, ts bookkit.Timestamp) (marketdata.Event, *marketdata.RowError) {
	bidPrice, err := s.parseInt(record, colBidPrice)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	askPrice, err := s.parseInt(record, colAskPrice)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	bidQty, err := s.parseUint(record, colBidQty)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	askQty, err := s.parseUint(record, colAskQty)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	return marketdata.Event{
		Kind:      marketdata.QuoteEvent,
		Timestamp: ts,
		Quote: marketdata.QuoteFields{
			BidPrice: bookkit.Price(bidPrice),
			AskPrice: bookkit.Price(askPrice),
			BidQty:   bookkit.Qty(bidQty),
			AskQty:   bookkit.Qty(askQty),
		},
	}, nil
}

func (s *CSVSource) parseOrder(record []string, ts bookkit.Timestamp) (marketdata.Event, *marketdata.RowError) {
	orderID, err := s.parseUint(record, colOrderID)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	side, err := s.parseSide(record)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	qty, err := s.parseUint(record, colQty)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	price, err := s.parseInt(record, colPrice)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	kindStr, err := s.requireField(record, colKind)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	var kind bookkit.OrderKind
	switch kindStr {
	case "limit":
		kind = bookkit.Limit
	case "market":
		kind = bookkit.Market
	default:
		return marketdata.Event{}, marketdata.NewParseError(s.line, fmt.Errorf("bad kind %q", kindStr))
	}
	return marketdata.Event{
		Kind:      marketdata.OrderEvent,
		Timestamp: ts,
		Order: marketdata.OrderFields{
			OrderID: bookkit.OrderID(orderID),
			Side:    side,
			Qty:     bookkit.Qty(qty),
			Price:   bookkit.Price(price),
			Kind:    kind,
		},
	}, nil
}

func (s *CSVSource) parseCancel(record []string, ts bookkit.Timestamp) (marketdata.Event, *marketdata.RowError) {
	orderID, err := s.parseUint(record, colOrderID)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	reason, err := s.requireField(record, colReason)
	if err != nil {
		return marketdata.Event{}, marketdata.NewParseError(s.line, err)
	}
	return marketdata.Event{
		Kind:      marketdata.CancelEvent,
		Timestamp: ts,
		Cancel: marketdata.CancelFields{
			OrderID: bookkit.OrderID(orderID),
			Reason:  reason,
		},
	}, nil
}

// BuildTimeIndex performs a single forward scan from the current position
// (intended to be called immediately after NewCSVSource, before the first
// NextEvent) recording a (timestamp, byte offset) pair every sampleEvery
// rows, then rewinds to the start of the data section. SeekToTime uses the
// resulting sparse index to jump near its target instead of scanning from
// the beginning.
func (s *CSVSource) BuildTimeIndex(sampleEvery int) error {
	if s.seeker == nil {
		return ErrNotSeekable
	}
	if sampleEvery <= 0 {
		sampleEvery = 1
	}

	count := 0
	for {
		offsetBefore := s.readerBase + s.reader.InputOffset()
		ev, err := s.readRaw()
		if err != nil {
			if err == io.EOF {
				break
			}
			if _, ok := err.(*marketdata.RowError); ok {
				continue
			}
			return err
		}
		if count%sampleEvery == 0 {
			s.timeIndex = append(s.timeIndex, timeIndexEntry{ts: ev.Timestamp, offset: offsetBefore})
		}
		count++
	}

	return s.rewindTo(s.dataStart)
}

// rewindTo seeks the underlying file to offset and re-anchors the csv
// reader and line counter there; offset must point to the start of a CSV
// row (or to dataStart, the start of the body).
func (s *CSVSource) rewindTo(offset int64) error {
	if _, err := s.seeker.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("replay: seeking: %w", err)
	}
	br := bufio.NewReader(s.seeker)
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	s.reader = cr
	s.readerBase = offset
	s.finished = false
	s.pending = nil
	s.haveLastSeenTs = false
	return nil
}

// SeekToTime implements marketdata.Source: it advances the cursor to the
// first event with timestamp >= tsNs.
//
// On a seekable source this is fully deterministic and idempotent: it
// always recomputes the target position from the timestamp index (or the
// start of the stream) rather than from wherever the cursor currently
// sits, so repeating the same call, or calling it with an earlier
// timestamp, always lands on the same row.
//
// A non-seekable source cannot be rewound, so it only supports
// monotonically increasing seeks: a target at or before the most recently
// consumed event's timestamp fails with ErrBackwardSeekUnsupported instead
// of silently scanning from wherever the cursor happens to be (which would
// make the result depend on prior calls). Repeating the same forward
// target while the cursor is already parked there is still idempotent,
// since the pending event is left untouched.
func (s *CSVSource) SeekToTime(tsNs bookkit.Timestamp) error {
	if s.seeker == nil && s.pending != nil && s.pending.Timestamp >= tsNs {
		return nil
	}

	switch {
	case s.seeker != nil:
		startOffset := s.dataStart
		if len(s.timeIndex) > 0 {
			i := sort.Search(len(s.timeIndex), func(i int) bool { return s.timeIndex[i].ts >= tsNs })
			if i > 0 {
				startOffset = s.timeIndex[i-1].offset
			}
		}
		if err := s.rewindTo(startOffset); err != nil {
			return err
		}
	case s.haveLastSeenTs && tsNs <= s.lastSeenTs:
		return fmt.Errorf("%w: target %d is not after the last consumed event at %d", ErrBackwardSeekUnsupported, tsNs, s.lastSeenTs)
	}

	s.pending = nil
	s.pacer.Reset()

	for {
		ev, err := s.readRaw()
		if err != nil {
			if _, ok := err.(*marketdata.RowError); ok {
				continue
			}
			return err
		}
		if ev.Timestamp >= tsNs {
			s.pending = &ev
			return nil
		}
	}
}
