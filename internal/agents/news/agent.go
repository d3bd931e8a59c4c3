// Package news implements the search and news agent: category searches
// against a web search provider plus follow-up resolution over the most
// recent cached result list.
package news

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/websearch"
)

const maxShown = 5

// Agent answers search queries and follow-up questions about the last
// result list.
type Agent struct {
	llm    llm.Completer
	search websearch.Client
}

func New(completer llm.Completer, search websearch.Client) *Agent {
	return &Agent{llm: completer, search: search}
}

// Process handles one search-domain turn. Follow-up turns read the cached
// list; everything else runs a fresh category search that overwrites it.
func (a *Agent) Process(ctx context.Context, text string, nc session.NewsContext) (string, session.NewsContext) {
	if isFollowUp(text, nc) {
		return a.followUp(text, nc), nc
	}
	return a.freshSearch(ctx, text, nc)
}

// referringPhrases mark a turn as being about the previous results rather
// than a new search.
var referringPhrases = []string{
	"tell me more", "more about", "more detail", "more details",
	"first one", "second one", "third one", "fourth one", "fifth one",
	"that one", "that place", "that article", "that paper", "that product",
	"the link", "its link", "summarize", "summary", "which one",
}

func isFollowUp(text string, nc session.NewsContext) bool {
	if len(nc.Current()) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range referringPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
}

var digitRe = regexp.MustCompile(`\b([1-5])\b`)

// parseOrdinal extracts a 1-based position from the turn text, from either
// an ordinal word or a digit 1-5. Returns 0 when none is present.
func parseOrdinal(text string) int {
	lower := strings.ToLower(text)
	for word, n := range ordinalWords {
		if strings.Contains(lower, word) {
			return n
		}
	}
	if m := digitRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func (a *Agent) followUp(text string, nc session.NewsContext) string {
	results := nc.Current()
	n := parseOrdinal(text)
	if n == 0 {
		return overview(results, nc.LastQuery)
	}
	limit := len(results)
	if limit > maxShown {
		limit = maxShown
	}
	if n > limit {
		return fmt.Sprintf("I only have %d results from the last search. Pick a number from 1 to %d.", limit, limit)
	}
	return detail(results[n-1], nc.LastSearchType, n)
}

// detail renders one cached item using the field template for its category.
func detail(r session.Result, category session.Category, position int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is result %d: %s\n", position, r.Title)
	switch category {
	case session.CategoryNews:
		if r.Source != "" {
			fmt.Fprintf(&b, "Source: %s\n", r.Source)
		}
		if r.Date != "" {
			fmt.Fprintf(&b, "Date: %s\n", r.Date)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&b, "%s\n", r.Snippet)
		}
	case session.CategoryPlaces:
		if r.Rating > 0 {
			fmt.Fprintf(&b, "Rating: %.1f\n", r.Rating)
		}
		if r.Address != "" {
			fmt.Fprintf(&b, "Address: %s\n", r.Address)
		}
		if r.Phone != "" {
			fmt.Fprintf(&b, "Phone: %s\n", r.Phone)
		}
	case session.CategoryShopping:
		if r.Price != "" {
			fmt.Fprintf(&b, "Price: %s\n", r.Price)
		}
		if r.Source != "" {
			fmt.Fprintf(&b, "Sold by: %s\n", r.Source)
		}
	default:
		if r.Snippet != "" {
			fmt.Fprintf(&b, "%s\n", r.Snippet)
		}
	}
	if r.Link != "" {
		fmt.Fprintf(&b, "Link: %s", r.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}

func overview(results []session.Result, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the results I have for %q:\n", query)
	for i, r := range results {
		if i >= maxShown {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
	}
	b.WriteString("Tell me a number for more detail.")
	return b.String()
}

// handler names are what the classification prompt returns; each maps to
// one search category plus a render style.
const (
	handlerNews     = "news"
	handlerResearch = "research"
	handlerLocal    = "local"
	handlerShopping = "shopping"
	handlerMedia    = "media"
	handlerWeb      = "web"
)

func (a *Agent) freshSearch(ctx context.Context, text string, nc session.NewsContext) (string, session.NewsContext) {
	handler := a.classifyHandler(ctx, text)

	category := session.CategoryWeb
	count := 10
	switch handler {
	case handlerNews:
		category = session.CategoryNews
	case handlerResearch:
		category = session.CategoryScholar
		count = 8
	case handlerLocal:
		category = session.CategoryPlaces
	case handlerShopping:
		category = session.CategoryShopping
	case handlerMedia:
		category = session.CategoryImages
		if strings.Contains(strings.ToLower(text), "video") {
			category = session.CategoryVideos
		}
	}

	results, err := a.search.Query(ctx, text, category, count)
	if err != nil {
		log.Printf("news: search %s: %v", category, err)
		return fmt.Sprintf("Sorry, I couldn't fetch %s results right now.", category), nc
	}

	if nc.Results == nil {
		nc.Results = make(map[session.Category][]session.Result)
	}
	nc.Results[category] = results
	nc.LastSearchType = category
	nc.LastQuery = text

	return renderList(category, results), nc
}

// classifyHandler asks the model which handler owns the query, with keyword
// heuristics as the fallback strategy.
func (a *Agent) classifyHandler(ctx context.Context, text string) string {
	prompt := fmt.Sprintf(`Analyze the user query and determine which handler covers it.

User Query: %s

Handlers:
- news: breaking news, headlines, current events
- research: academic papers, patents, scholarly research
- local: places, restaurants, hotels, businesses
- shopping: products, prices, shopping
- media: images, videos
- web: general web searches

Return JSON: {"handler": "handler_name"}`, text)

	var parsed struct {
		Handler string `json:"handler"`
	}
	if err := llm.Classify(ctx, a.llm, prompt, &parsed); err == nil {
		switch parsed.Handler {
		case handlerNews, handlerResearch, handlerLocal, handlerShopping, handlerMedia, handlerWeb:
			return parsed.Handler
		}
	}
	return keywordHandler(text)
}

func keywordHandler(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "news", "today", "latest", "breaking"):
		return handlerNews
	case containsAny(lower, "research", "paper", "study", "scholar"):
		return handlerResearch
	case containsAny(lower, "place", "restaurant", "hotel", "near"):
		return handlerLocal
	case containsAny(lower, "buy", "price", "shop", "product"):
		return handlerShopping
	case containsAny(lower, "image", "video", "photo"):
		return handlerMedia
	default:
		return handlerWeb
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func renderList(category session.Category, results []session.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No %s results found.", category)
	}

	var b strings.Builder
	switch category {
	case session.CategoryNews:
		fmt.Fprintf(&b, "Found %d news articles:\n", len(results))
	case session.CategoryScholar:
		fmt.Fprintf(&b, "Found %d academic papers:\n", len(results))
	case session.CategoryPlaces:
		fmt.Fprintf(&b, "Found %d places:\n", len(results))
	case session.CategoryShopping:
		fmt.Fprintf(&b, "Found %d products:\n", len(results))
	case session.CategoryImages, session.CategoryVideos:
		fmt.Fprintf(&b, "Found %d %s:\n", len(results), category)
	default:
		fmt.Fprintf(&b, "Found %d web results:\n", len(results))
	}

	for i, r := range results {
		if i >= maxShown {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		switch category {
		case session.CategoryNews:
			if r.Source != "" {
				fmt.Fprintf(&b, "   Source: %s\n", r.Source)
			}
			if r.Snippet != "" {
				fmt.Fprintf(&b, "   %s\n", r.Snippet)
			}
		case session.CategoryPlaces:
			if r.Rating > 0 {
				fmt.Fprintf(&b, "   Rating: %.1f\n", r.Rating)
			}
			if r.Address != "" {
				fmt.Fprintf(&b, "   %s\n", r.Address)
			}
		case session.CategoryShopping:
			if r.Price != "" {
				fmt.Fprintf(&b, "   Price: %s\n", r.Price)
			}
			if r.Source != "" {
				fmt.Fprintf(&b, "   Sold by: %s\n", r.Source)
			}
		case session.CategoryImages, session.CategoryVideos:
			// titles only
		default:
			if r.Snippet != "" {
				fmt.Fprintf(&b, "   %s\n", r.Snippet)
			}
		}
	}
	b.WriteString("Ask me about any of these or search for something else.")
	return b.String()
}
