package products

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const userAgent = "multiagentsystem/1.0"

// Offer is one product candidate. Price is a two-decimal string and may be
// empty when no price source resolved.
type Offer struct {
	Name  string `json:"name"`
	Price string `json:"price,omitempty"`
	Store string `json:"store"`
	Code  string `json:"code,omitempty"`
}

// Client looks up grocery product offers for a search term.
type Client interface {
	Search(ctx context.Context, term string) ([]Offer, error)
}

// OpenFoodFacts implements Client against the OpenFoodFacts product
// database, probing OpenPrices for real prices and estimating when none is
// available.
type OpenFoodFacts struct {
	searchBaseURL string
	pricesBaseURL string
	client        *http.Client

	mu  sync.Mutex
	rng *rand.Rand
}

func NewOpenFoodFacts() *OpenFoodFacts {
	return NewOpenFoodFactsWithBaseURLs(
		"https://world.openfoodfacts.org/cgi/search.pl",
		"https://prices.openfoodfacts.org/api/v1",
	)
}

func NewOpenFoodFactsWithBaseURLs(searchBaseURL, pricesBaseURL string) *OpenFoodFacts {
	return &OpenFoodFacts{
		searchBaseURL: searchBaseURL,
		pricesBaseURL: pricesBaseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SeedJitter makes price estimation deterministic, for tests.
func (o *OpenFoodFacts) SeedJitter(seed int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rng = rand.New(rand.NewSource(seed))
}

// Search queries OpenFoodFacts and returns up to five priced offers. When
// the provider yields nothing usable it falls back to generic offers so the
// cart flow still has candidates to select from.
func (o *OpenFoodFacts) Search(ctx context.Context, term string) ([]Offer, error) {
	offers, err := o.searchProducts(ctx, term)
	if err != nil || len(offers) == 0 {
		return o.genericFallback(term), nil
	}
	return offers, nil
}

func (o *OpenFoodFacts) searchProducts(ctx context.Context, term string) ([]Offer, error) {
	q := url.Values{}
	q.Set("search_terms", term)
	q.Set("search_simple", "1")
	q.Set("json", "1")
	q.Set("page_size", "10")
	q.Set("fields", "product_name,brands,stores,code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.searchBaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("product search status %d: %s", res.StatusCode, string(body))
	}

	var parsed struct {
		Products []struct {
			ProductName string `json:"product_name"`
			Brands      string `json:"brands"`
			Stores      string `json:"stores"`
			Code        string `json:"code"`
		} `json:"products"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode product search: %w", err)
	}

	var offers []Offer
	for _, p := range parsed.Products {
		if len(offers) == 5 {
			break
		}
		name := strings.TrimSpace(p.ProductName)
		if name == "" {
			continue
		}
		brands := strings.TrimSpace(p.Brands)
		if brands == "" {
			brands = "Generic"
		}
		store := strings.TrimSpace(p.Stores)
		if store == "" {
			store = "Multiple Stores"
		}

		price := ""
		if p.Code != "" {
			price = o.lookupPrice(ctx, p.Code)
		}
		if price == "" {
			price = o.EstimatePrice(name)
		}

		offers = append(offers, Offer{
			Name:  name + " - " + brands,
			Price: price,
			Store: store,
			Code:  p.Code,
		})
	}
	return offers, nil
}

// lookupPrice probes OpenPrices for the latest recorded price of a barcode.
// Failures degrade to "" so the caller estimates instead.
func (o *OpenFoodFacts) lookupPrice(ctx context.Context, code string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.pricesBaseURL+"/product/"+code+".json", nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := o.client.Do(req)
	if err != nil {
		return ""
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return ""
	}

	var parsed struct {
		Items []struct {
			Price float64 `json:"price"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return ""
	}
	if len(parsed.Items) == 0 || parsed.Items[0].Price <= 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", parsed.Items[0].Price)
}

var basePriceTable = []struct {
	keywords []string
	price    float64
}{
	{[]string{"organic", "premium", "artisan"}, 6.99},
	{[]string{"milk", "yogurt", "cheese", "dairy"}, 4.49},
	{[]string{"bread", "baguette", "roll"}, 3.29},
	{[]string{"pasta", "rice", "noodle"}, 2.99},
	{[]string{"meat", "chicken", "beef", "pork"}, 7.99},
	{[]string{"fish", "salmon", "tuna"}, 9.99},
	{[]string{"fruit", "apple", "banana", "orange"}, 3.49},
	{[]string{"vegetable", "tomato", "lettuce", "carrot"}, 2.99},
	{[]string{"snack", "chips", "cookie"}, 3.99},
	{[]string{"juice", "soda", "drink", "beverage"}, 4.99},
	{[]string{"cereal", "oatmeal", "granola"}, 4.49},
}

const defaultBasePrice = 3.99

// EstimatePrice derives a plausible price from the product name: a category
// base price with +/-0.50 jitter, floored at 0.99.
func (o *OpenFoodFacts) EstimatePrice(name string) string {
	lower := strings.ToLower(name)

	base := defaultBasePrice
	for _, row := range basePriceTable {
		matched := false
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if matched {
			base = row.price
			break
		}
	}

	o.mu.Lock()
	jitter := o.rng.Float64() - 0.5
	o.mu.Unlock()

	price := base + jitter
	if price < 0.99 {
		price = 0.99
	}
	return fmt.Sprintf("%.2f", price)
}

func (o *OpenFoodFacts) genericFallback(term string) []Offer {
	title := titleCase(term)
	return []Offer{
		{Name: "Fresh " + title, Price: "3.99", Store: "Local Grocery"},
		{Name: "Organic " + title, Price: "5.49", Store: "Organic Market"},
		{Name: title + " (Store Brand)", Price: "2.99", Store: "Supermarket"},
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
