package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

// Client runs one category search and returns normalized results.
type Client interface {
	Query(ctx context.Context, text string, category session.Category, count int) ([]session.Result, error)
}

// Serper implements Client against the Serper.dev search API.
type Serper struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSerper(apiKey string) *Serper {
	return NewSerperWithBaseURL(apiKey, "https://google.serper.dev")
}

func NewSerperWithBaseURL(apiKey, baseURL string) *Serper {
	return &Serper{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func endpointPath(category session.Category) string {
	switch category {
	case session.CategoryNews:
		return "/news"
	case session.CategoryImages:
		return "/images"
	case session.CategoryVideos:
		return "/videos"
	case session.CategoryPlaces:
		return "/places"
	case session.CategoryShopping:
		return "/shopping"
	case session.CategoryScholar:
		return "/scholar"
	default:
		return "/search"
	}
}

type serperItem struct {
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet"`
	Link        string  `json:"link"`
	Source      string  `json:"source"`
	Date        string  `json:"date"`
	Address     string  `json:"address"`
	PhoneNumber string  `json:"phoneNumber"`
	Price       string  `json:"price"`
	Rating      float64 `json:"rating"`
	ImageURL    string  `json:"imageUrl"`
}

type serperResponse struct {
	Organic  []serperItem `json:"organic"`
	News     []serperItem `json:"news"`
	Images   []serperItem `json:"images"`
	Videos   []serperItem `json:"videos"`
	Places   []serperItem `json:"places"`
	Shopping []serperItem `json:"shopping"`
}

func (s *Serper) Query(ctx context.Context, text string, category session.Category, count int) ([]session.Result, error) {
	if count <= 0 {
		count = 10
	}
	payload, err := json.Marshal(map[string]any{"q": text, "num": count})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpointPath(category), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("search status %d: %s", res.StatusCode, string(body))
	}

	var parsed serperResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := parsed.itemsFor(category)
	out := make([]session.Result, 0, len(items))
	for _, item := range items {
		link := item.Link
		if link == "" {
			link = item.ImageURL
		}
		out = append(out, session.Result{
			Title:   item.Title,
			Snippet: item.Snippet,
			Source:  item.Source,
			Link:    link,
			Date:    item.Date,
			Address: item.Address,
			Phone:   item.PhoneNumber,
			Price:   item.Price,
			Rating:  item.Rating,
		})
	}
	return out, nil
}

func (r serperResponse) itemsFor(category session.Category) []serperItem {
	switch category {
	case session.CategoryNews:
		return r.News
	case session.CategoryImages:
		return r.Images
	case session.CategoryVideos:
		return r.Videos
	case session.CategoryPlaces:
		return r.Places
	case session.CategoryShopping:
		return r.Shopping
	default:
		// Web and scholar results both arrive under "organic".
		return r.Organic
	}
}
