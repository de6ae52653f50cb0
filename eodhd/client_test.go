package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
)

func newTestServer(t *testing.T, status int, payload any, capturedPath *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capturedPath != nil {
			*capturedPath = r.URL.Path
		}
		if got := r.URL.Query().Get("api_token"); got != "test-key" {
			t.Errorf("api_token = %q, want test-key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLivePrice(t *testing.T) {
	var path string
	srv := newTestServer(t, http.StatusOK, map[string]any{"code": "AAPL.US", "close": 165.5, "previousClose": 160}, &path)

	client := NewClient("test-key", WithBaseURL(srv.URL))
	price, err := client.LivePrice(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("LivePrice failed: %v", err)
	}
	if path != "/real-time/AAPL.US" {
		t.Errorf("expected path /real-time/AAPL.US, got %s", path)
	}
	if !price.Equal(decimal.RequireFromString("165.5")) {
		t.Errorf("expected price 165.5, got %s", price)
	}
}

func TestLivePrice_PreviousClose(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, map[string]any{"code": "AAPL.US", "close": "NA", "previousClose": "160.25"}, nil)

	price, err := NewClient("test-key", WithBaseURL(srv.URL)).LivePrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("LivePrice failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("160.25")) {
		t.Errorf("expected previous close 160.25, got %s", price)
	}
}

func TestLivePrice_APIError(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, "Ticker Not Found", nil)

	_, err := NewClient("test-key", WithBaseURL(srv.URL)).LivePrice(context.Background(), "NOPE")
	if !errors.Is(err, mfm.ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected a 404 APIError, got %v", err)
	}
}

func TestRate(t *testing.T) {
	var path string
	srv := newTestServer(t, http.StatusOK, map[string]any{"code": "USDILS.FOREX", "close": 3.7123}, &path)
	client := NewClient("test-key", WithBaseURL(srv.URL))

	r, err := client.Rate(context.Background(), mfm.USD, mfm.ILS)
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if path != "/real-time/USDILS.FOREX" {
		t.Errorf("expected path /real-time/USDILS.FOREX, got %s", path)
	}
	if !r.Equal(decimal.RequireFromString("3.7123")) {
		t.Errorf("expected rate 3.7123, got %s", r)
	}

	v, err := client.Convert(context.Background(), mfm.USD, mfm.ILS, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !v.Equal(decimal.RequireFromString("37.123")) {
		t.Errorf("expected 37.123, got %s", v)
	}
}

func TestRate_Identity(t *testing.T) {
	// no server: the identity must not hit the network
	client := NewClient("test-key", WithBaseURL("http://127.0.0.1:0"))
	r, err := client.Rate(context.Background(), mfm.ILS, mfm.ILS)
	if err != nil || !r.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Rate(ILS, ILS) = %s, %v want 1", r, err)
	}
}

func TestRate_Unavailable(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, map[string]any{"code": "USDILS.FOREX", "close": "NA"}, nil)

	_, err := NewClient("test-key", WithBaseURL(srv.URL)).Rate(context.Background(), mfm.USD, mfm.ILS)
	if !errors.Is(err, mfm.ErrConversionRateUnavailable) {
		t.Errorf("expected ErrConversionRateUnavailable, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	var path string
	srv := newTestServer(t, http.StatusOK, []map[string]any{
		{"Code": "AAPL", "Exchange": "US", "Name": "Apple Inc", "Currency": "USD", "previousCloseDate": "2025-01-02"},
	}, &path)

	results, err := NewClient("test-key", WithBaseURL(srv.URL)).Search(context.Background(), "apple")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if path != "/search/apple" {
		t.Errorf("expected path /search/apple, got %s", path)
	}
	if len(results) != 1 || results[0].Code != "AAPL" || results[0].PreviousCloseDate.String() != "2025-01-02" {
		t.Errorf("unexpected results %+v", results)
	}
}
