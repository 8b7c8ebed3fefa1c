package broadcast

import (
	"testing"

	"github.com/uhyunpark/hyperlicked-indexer/internal/candles"
	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

type fakeEventSource struct {
	evs []events.Event
	err error
}

func (f *fakeEventSource) QueryByMint(mint string) ([]events.Event, error) {
	return f.evs, f.err
}

type fakeCandleSource struct {
	result candles.QueryResult
	err    error
}

func (f *fakeCandleSource) Query(mint string, interval candles.Interval, page, pageSize uint32) (candles.QueryResult, error) {
	return f.result, f.err
}

func TestRecentEventsReturnsNewestFirstCappedAtLimit(t *testing.T) {
	src := &fakeEventSource{evs: []events.Event{
		events.TokenCreated{Signature: "sig1"},
		events.TokenCreated{Signature: "sig2"},
		events.TokenCreated{Signature: "sig3"},
	}}
	got, err := recentEvents(src, "mintA", 2)
	if err != nil {
		t.Fatalf("recentEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].EventSignature() != "sig3" || got[1].EventSignature() != "sig2" {
		t.Errorf("order = %v, %v, want newest-first sig3, sig2", got[0].EventSignature(), got[1].EventSignature())
	}
}

func TestRecentEventsZeroLimitReturnsEverythingNewestFirst(t *testing.T) {
	src := &fakeEventSource{evs: []events.Event{
		events.TokenCreated{Signature: "sig1"},
		events.TokenCreated{Signature: "sig2"},
	}}
	got, err := recentEvents(src, "mintA", 0)
	if err != nil {
		t.Fatalf("recentEvents: %v", err)
	}
	if len(got) != 2 || got[0].EventSignature() != "sig2" {
		t.Errorf("got = %v, want both reversed", got)
	}
}

func TestRecentCandlesReturnsNewestFirstCappedAtLimit(t *testing.T) {
	src := &fakeCandleSource{result: candles.QueryResult{Candles: []candles.Candle{
		{Time: 1}, {Time: 2}, {Time: 3},
	}}}
	got, err := recentCandles(src, "mintA", candles.Interval1s, 2)
	if err != nil {
		t.Fatalf("recentCandles: %v", err)
	}
	if len(got) != 2 || got[0].Time != 3 || got[1].Time != 2 {
		t.Errorf("got = %+v, want newest-first [3,2]", got)
	}
}
