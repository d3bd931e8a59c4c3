package products

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func TestSearchBuildsOffersWithRealPrice(t *testing.T) {
	prices := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/product/12345.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [{"price": 2.5}]}`))
	}))
	defer prices.Close()

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search_terms") != "tomatoes" {
			t.Errorf("search_terms = %q", r.URL.Query().Get("search_terms"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products": [
			{"product_name": "Cherry Tomatoes", "brands": "FarmCo", "stores": "GreenMart", "code": "12345"},
			{"product_name": "", "brands": "SkipMe", "stores": "", "code": ""},
			{"product_name": "Plum Tomatoes", "brands": "", "stores": "", "code": ""}
		]}`))
	}))
	defer search.Close()

	client := NewOpenFoodFactsWithBaseURLs(search.URL, prices.URL)
	client.SeedJitter(1)

	offers, err := client.Search(context.Background(), "tomatoes")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("len = %d, want 2 (nameless product skipped)", len(offers))
	}
	if offers[0].Name != "Cherry Tomatoes - FarmCo" || offers[0].Price != "2.50" || offers[0].Store != "GreenMart" {
		t.Fatalf("unexpected first offer: %+v", offers[0])
	}
	if offers[1].Name != "Plum Tomatoes - Generic" || offers[1].Store != "Multiple Stores" {
		t.Fatalf("unexpected second offer: %+v", offers[1])
	}
	// No barcode price for the second offer, so it must carry an estimate.
	assertTwoDecimalPrice(t, offers[1].Price)
}

func TestSearchFallsBackOnEmptyResults(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products": []}`))
	}))
	defer search.Close()

	client := NewOpenFoodFactsWithBaseURLs(search.URL, search.URL)
	offers, err := client.Search(context.Background(), "dragonfruit jam")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(offers) != 3 {
		t.Fatalf("len = %d, want 3 generic offers", len(offers))
	}
	if offers[0].Name != "Fresh Dragonfruit Jam" || offers[0].Store != "Local Grocery" {
		t.Fatalf("unexpected fallback offer: %+v", offers[0])
	}
}

func TestSearchFallsBackOnProviderError(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer search.Close()

	client := NewOpenFoodFactsWithBaseURLs(search.URL, search.URL)
	offers, err := client.Search(context.Background(), "milk")
	if err != nil {
		t.Fatalf("Search() error = %v, adapter failures must not propagate", err)
	}
	if len(offers) != 3 {
		t.Fatalf("len = %d, want generic fallback offers", len(offers))
	}
}

func TestEstimatePriceBounds(t *testing.T) {
	client := NewOpenFoodFactsWithBaseURLs("", "")
	client.SeedJitter(42)

	cases := []struct {
		name string
		base float64
	}{
		{"Organic Oat Bars", 6.99},
		{"Whole Milk 1L", 4.49},
		{"Salmon Fillet", 9.99},
		{"Mystery Item", 3.99},
	}

	for _, tc := range cases {
		for i := 0; i < 20; i++ {
			price := client.EstimatePrice(tc.name)
			v := assertTwoDecimalPrice(t, price)
			if v < 0.99 {
				t.Fatalf("EstimatePrice(%q) = %v, below floor", tc.name, v)
			}
			if v < tc.base-0.51 || v > tc.base+0.51 {
				t.Fatalf("EstimatePrice(%q) = %v, outside %v +/- 0.50", tc.name, v, tc.base)
			}
		}
	}
}

func assertTwoDecimalPrice(t *testing.T, price string) float64 {
	t.Helper()
	parts := strings.Split(price, ".")
	if len(parts) != 2 || len(parts[1]) != 2 {
		t.Fatalf("price %q is not a two-decimal string", price)
	}
	v, err := strconv.ParseFloat(price, 64)
	if err != nil || v < 0 {
		t.Fatalf("price %q is not a non-negative number", price)
	}
	return v
}
