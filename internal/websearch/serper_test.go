package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

func TestQueryNewsCategory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news" {
			t.Errorf("path = %q, want /news", r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "secret" {
			t.Errorf("missing api key header")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["q"] != "ai chips" {
			t.Errorf("q = %v, want %q", body["q"], "ai chips")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"news": [
			{"title": "Chip wars", "snippet": "a snippet", "source": "Reuters", "date": "2 hours ago", "link": "https://example.com/a"},
			{"title": "More chips", "snippet": "b snippet", "source": "AP", "date": "1 day ago", "link": "https://example.com/b"}
		]}`))
	}))
	defer ts.Close()

	client := NewSerperWithBaseURL("secret", ts.URL)
	got, err := client.Query(context.Background(), "ai chips", session.CategoryNews, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Title != "Chip wars" || got[0].Source != "Reuters" || got[0].Date != "2 hours ago" {
		t.Fatalf("unexpected first result: %+v", got[0])
	}
}

func TestQueryPlacesAndShoppingFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/places":
			_, _ = w.Write([]byte(`{"places": [{"title": "Cafe Uno", "address": "1 Main St", "phoneNumber": "+1 555 0100", "rating": 4.6}]}`))
		case "/shopping":
			_, _ = w.Write([]byte(`{"shopping": [{"title": "Kettle", "price": "$29.99", "source": "ShopMart", "link": "https://example.com/k"}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer ts.Close()

	client := NewSerperWithBaseURL("secret", ts.URL)

	places, err := client.Query(context.Background(), "cafe near me", session.CategoryPlaces, 5)
	if err != nil {
		t.Fatalf("Query(places) error = %v", err)
	}
	if len(places) != 1 || places[0].Address != "1 Main St" || places[0].Rating != 4.6 || places[0].Phone != "+1 555 0100" {
		t.Fatalf("unexpected places result: %+v", places)
	}

	shopping, err := client.Query(context.Background(), "kettle", session.CategoryShopping, 5)
	if err != nil {
		t.Fatalf("Query(shopping) error = %v", err)
	}
	if len(shopping) != 1 || shopping[0].Price != "$29.99" || shopping[0].Source != "ShopMart" {
		t.Fatalf("unexpected shopping result: %+v", shopping)
	}
}

func TestQueryErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewSerperWithBaseURL("bad", ts.URL)
	if _, err := client.Query(context.Background(), "x", session.CategoryWeb, 5); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}
