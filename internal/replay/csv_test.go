package replay

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbookcore/internal/bookkit"
	"orderbookcore/internal/marketdata"
)

const sampleCSV = `event_type,timestamp,order_id,side,qty,price,kind,trade_id,bid_price,ask_price,bid_qty,ask_qty,reason
order,100,1,buy,10,990,limit,,,,,,
order,200,2,sell,5,995,limit,,,,,,
trade,300,,buy,5,995,,t-1,,,,,
quote,400,,,,,,,990,995,10,5,
cancel,500,1,,,,,,,,,,stale
`

// onlyReader strips any Seek method its wrapped reader might have, so
// NewCSVSource's io.ReadSeeker type-assertion genuinely fails.
type onlyReader struct {
	io.Reader
}

func newUnseekable(t *testing.T, csv string) *CSVSource {
	t.Helper()
	src, err := NewCSVSource(onlyReader{strings.NewReader(csv)}, WithPlaybackSpeed(1e18))
	require.NoError(t, err)
	return src
}

func newSeekable(t *testing.T, csv string) *CSVSource {
	t.Helper()
	src, err := NewCSVSource(bytes.NewReader([]byte(csv)), WithPlaybackSpeed(1e18))
	require.NoError(t, err)
	return src
}

func TestNewCSVSource_RejectsMissingRequiredHeader(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader("foo,bar\n1,2\n"))
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestNextEvent_DispatchesAllFourEventKinds(t *testing.T) {
	src := newUnseekable(t, sampleCSV)

	var kinds []marketdata.EventKind
	for {
		ev, err := src.NextEvent(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, []marketdata.EventKind{
		marketdata.OrderEvent,
		marketdata.OrderEvent,
		marketdata.TradeEvent,
		marketdata.QuoteEvent,
		marketdata.CancelEvent,
	}, kinds)
}

func TestNextEvent_ParsesOrderFields(t *testing.T) {
	src := newUnseekable(t, sampleCSV)

	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, marketdata.OrderEvent, ev.Kind)
	assert.Equal(t, bookkit.OrderID(1), ev.Order.OrderID)
	assert.Equal(t, bookkit.Buy, ev.Order.Side)
	assert.Equal(t, bookkit.Qty(10), ev.Order.Qty)
	assert.Equal(t, bookkit.Price(990), ev.Order.Price)
	assert.Equal(t, bookkit.Limit, ev.Order.Kind)
}

func TestNextEvent_ReportsRowErrorForUnknownEventType(t *testing.T) {
	csv := "event_type,timestamp\nbogus,1\n"
	src := newUnseekable(t, csv)

	_, err := src.NextEvent(context.Background())
	var rowErr *marketdata.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, marketdata.SchemaErrorClass, rowErr.Class)
	assert.Equal(t, 1, src.Stats().SchemaErrors)
}

func TestNextEvent_ReportsRowErrorForMalformedColumn(t *testing.T) {
	csv := "event_type,timestamp,order_id,side,qty,price,kind\norder,100,1,buy,notanumber,990,limit\n"
	src := newUnseekable(t, csv)

	_, err := src.NextEvent(context.Background())
	var rowErr *marketdata.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, marketdata.ParseErrorClass, rowErr.Class)
	assert.Equal(t, 1, src.Stats().ParseErrors)
}

func TestNextEvent_ReturnsEOFAtEnd(t *testing.T) {
	src := newUnseekable(t, sampleCSV)
	for i := 0; i < 5; i++ {
		_, err := src.NextEvent(context.Background())
		require.NoError(t, err)
	}
	_, err := src.NextEvent(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, src.IsFinished())
}

func TestSeekToTime_SkipsEarlierEventsWithoutIndex(t *testing.T) {
	src := newUnseekable(t, sampleCSV)
	require.NoError(t, src.SeekToTime(300))

	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bookkit.Timestamp(300), ev.Timestamp)
	assert.Equal(t, marketdata.TradeEvent, ev.Kind)
}

func TestSeekToTime_IsIdempotent(t *testing.T) {
	src := newUnseekable(t, sampleCSV)
	require.NoError(t, src.SeekToTime(300))
	require.NoError(t, src.SeekToTime(300))

	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bookkit.Timestamp(300), ev.Timestamp)
}

func TestSeekToTime_RejectsBackwardSeekOnNonSeekableSource(t *testing.T) {
	src := newUnseekable(t, sampleCSV)
	require.NoError(t, src.SeekToTime(300))

	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	require.Equal(t, bookkit.Timestamp(300), ev.Timestamp)

	err = src.SeekToTime(200)
	assert.ErrorIs(t, err, ErrBackwardSeekUnsupported)
}

func TestSeekToTime_ForwardSeekOnNonSeekableSourceAdvancesPastConsumed(t *testing.T) {
	src := newUnseekable(t, sampleCSV)
	require.NoError(t, src.SeekToTime(200))

	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	require.Equal(t, bookkit.Timestamp(200), ev.Timestamp)

	require.NoError(t, src.SeekToTime(400))
	ev, err = src.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bookkit.Timestamp(400), ev.Timestamp)
}

func TestSeekToTime_WithTimeIndexOnSeekableSource(t *testing.T) {
	src := newSeekable(t, sampleCSV)
	require.NoError(t, src.BuildTimeIndex(1))
	require.NotEmpty(t, src.timeIndex)

	require.NoError(t, src.SeekToTime(400))
	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bookkit.Timestamp(400), ev.Timestamp)
	assert.Equal(t, marketdata.QuoteEvent, ev.Kind)

	// Confirm a full replay after the index build still starts from the
	// first row: BuildTimeIndex must rewind to the data start.
	src2 := newSeekable(t, sampleCSV)
	require.NoError(t, src2.BuildTimeIndex(2))
	first, err := src2.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bookkit.Timestamp(100), first.Timestamp)
}

func TestBuildTimeIndex_RejectsNonSeekableSource(t *testing.T) {
	src := newUnseekable(t, sampleCSV)
	assert.ErrorIs(t, src.BuildTimeIndex(1), ErrNotSeekable)
}
