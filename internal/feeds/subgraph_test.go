package feeds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger { return zerolog.Nop() }

func TestSubgraphMissingURL(t *testing.T) {
	s := NewSubgraph(SubgraphOptions{}, noopLogger())
	if _, err := s.FetchIssued(context.Background()); err == nil {
		t.Fatal("missing base url should fail")
	}
}

func TestSubgraphFetchIssued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"dailyIssueds": []map[string]string{
					{"id": "1650000000", "totalDebt": "123.45"},
					{"id": "1649913600", "totalDebt": "120"},
				},
			},
		})
	}))
	defer srv.Close()

	s := NewSubgraph(SubgraphOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	records, err := s.FetchIssued(context.Background())
	if err != nil {
		t.Fatalf("fetch issued: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Timestamp != 1650000000 {
		t.Fatalf("record id should become the timestamp, got %d", records[0].Timestamp)
	}
	if records[0].TotalDebt.Cmp(decimal.RequireFromString("123.45")) != 0 {
		t.Fatalf("unexpected total debt %s", records[0].TotalDebt)
	}
}

func TestSubgraphErrorsArrayFailsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":   map[string]any{"dailyBurneds": []any{}},
			"errors": []map[string]string{{"message": "indexing error"}},
		})
	}))
	defer srv.Close()

	s := NewSubgraph(SubgraphOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := s.FetchBurned(context.Background()); err == nil {
		t.Fatal("non-empty errors array must fail the query")
	}
}

func TestSubgraphHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSubgraph(SubgraphOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := s.FetchBurned(context.Background()); err == nil {
		t.Fatal("HTTP 502 should fail")
	}
}

func TestSubgraphFetchClaims(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"feesClaimeds": []map[string]string{
					{"id": "0xabc-1", "timestamp": "1650001234"},
				},
			},
		})
	}))
	defer srv.Close()

	s := NewSubgraph(SubgraphOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	claims, err := s.FetchClaims(context.Background(), "0xDEAD")
	if err != nil {
		t.Fatalf("fetch claims: %v", err)
	}
	if len(claims) != 1 || claims[0].Timestamp != 1650001234 {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSubgraphBadRecordID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"dailyIssueds": []map[string]string{{"id": "not-a-number", "totalDebt": "1"}},
			},
		})
	}))
	defer srv.Close()

	s := NewSubgraph(SubgraphOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := s.FetchIssued(context.Background()); err == nil {
		t.Fatal("unparseable record id should fail")
	}
}
