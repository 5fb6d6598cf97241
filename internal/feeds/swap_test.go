package feeds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSwapQuoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("buyAmount"); got != "500000000000000000000" {
			t.Fatalf("expected buyAmount in atoms, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sellAmount": "1500000000000000000",
			"to":         "0xrouter",
			"data":       "0xdeadbeef",
			"value":      "1500000000000000000",
		})
	}))
	defer srv.Close()

	s := NewSwap(SwapOptions{BaseURL: srv.URL, SUSDTokenAddress: "0xsusd", Timeout: time.Second}, noopLogger())
	quote, err := s.FetchSwapQuote(context.Background(), decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("fetch swap quote: %v", err)
	}
	if quote.RequiredETH.Cmp(decimal.RequireFromString("1.5")) != 0 {
		t.Fatalf("expected 1.5 ETH required, got %s", quote.RequiredETH)
	}
	if quote.Call.Contract != "0xrouter" || quote.Call.Method != "swap" {
		t.Fatalf("unexpected swap call %+v", quote.Call)
	}
}

func TestSwapQuoteRejectsNonPositiveAmount(t *testing.T) {
	s := NewSwap(SwapOptions{BaseURL: "http://example.invalid"}, noopLogger())
	if _, err := s.FetchSwapQuote(context.Background(), decimal.Zero); err == nil {
		t.Fatal("zero missing amount should fail")
	}
}

func TestSwapQuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSwap(SwapOptions{BaseURL: srv.URL, SUSDTokenAddress: "0xsusd", Timeout: time.Second}, noopLogger())
	if _, err := s.FetchSwapQuote(context.Background(), decimal.NewFromInt(1)); err == nil {
		t.Fatal("HTTP 429 should fail")
	}
}

func TestStatusSetConjunction(t *testing.T) {
	set := NewStatusSet(FeedIssuance, FeedBurn, FeedPerformance)
	if set.Ready() {
		t.Fatal("loading feeds must not report ready")
	}

	set.Mark(FeedIssuance, nil)
	set.Mark(FeedBurn, nil)
	if set.Ready() {
		t.Fatal("one loading feed keeps the aggregate not ready")
	}

	set.Mark(FeedPerformance, nil)
	if !set.Ready() {
		t.Fatal("all feeds ready should flip the aggregate")
	}

	set.Mark(FeedBurn, context.DeadlineExceeded)
	if set.Ready() {
		t.Fatal("an errored feed must clear the aggregate")
	}
	if set.FirstError() == nil {
		t.Fatal("first error should surface")
	}
	if !set.Ready(FeedIssuance, FeedPerformance) {
		t.Fatal("named subset excluding the errored feed should be ready")
	}
}
