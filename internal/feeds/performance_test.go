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

func perfServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"performanceHistory": map[string]any{
					"history": []map[string]string{
						{"performance": "0.05", "timestamp": "1650000000000"},
						{"performance": "0", "timestamp": "1650086400000"},
						{"performance": "-0.02", "timestamp": "1650172800000"},
					},
				},
			},
		})
	}))
}

func TestPerformanceFetchConvertsToPercentage(t *testing.T) {
	srv := perfServer(t, nil)
	defer srv.Close()

	p := NewPerformance(PerformanceOptions{
		BaseURL:     srv.URL,
		PoolAddress: "0x65bb99e80a863e0e27ee6d09c794ed8c0be47186",
		Timeout:     time.Second,
	}, nil, noopLogger())

	samples, err := p.FetchPerformance(context.Background())
	if err != nil {
		t.Fatalf("fetch performance: %v", err)
	}
	// The zero row survives here; dropping it is the reconciler's job.
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[0].Performance.Cmp(decimal.NewFromInt(5)) != 0 {
		t.Fatalf("fraction 0.05 should become percentage 5, got %s", samples[0].Performance)
	}
	if samples[0].TimestampMS != 1650000000000 {
		t.Fatalf("timestamp should stay in milliseconds, got %d", samples[0].TimestampMS)
	}
	if samples[2].Performance.Cmp(decimal.NewFromInt(-2)) != 0 {
		t.Fatalf("fraction -0.02 should become percentage -2, got %s", samples[2].Performance)
	}
}

func TestPerformanceErrorsArrayFailsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":   map[string]any{"performanceHistory": map[string]any{"history": []any{}}},
			"errors": []map[string]string{{"message": "pool not found"}},
		})
	}))
	defer srv.Close()

	p := NewPerformance(PerformanceOptions{
		BaseURL:     srv.URL,
		PoolAddress: "0x1",
		Timeout:     time.Second,
	}, nil, noopLogger())

	if _, err := p.FetchPerformance(context.Background()); err == nil {
		t.Fatal("application-level errors must fail the query even on HTTP 200")
	}
}

func TestPerformanceMissingConfig(t *testing.T) {
	p := NewPerformance(PerformanceOptions{}, nil, noopLogger())
	if _, err := p.FetchPerformance(context.Background()); err == nil {
		t.Fatal("missing base url should fail")
	}

	p = NewPerformance(PerformanceOptions{BaseURL: "http://example.invalid"}, nil, noopLogger())
	if _, err := p.FetchPerformance(context.Background()); err == nil {
		t.Fatal("missing pool address should fail")
	}
}
