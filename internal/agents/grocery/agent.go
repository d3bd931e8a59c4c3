// Package grocery implements the grocery ordering agent with its
// multi-stage confirmation flow.
package grocery

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/products"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

// action is the user intent for one turn, decided before any provider call.
type action string

const (
	actionSearch       action = "search"
	actionConfirm      action = "confirm"
	actionConfirmYes   action = "confirm_yes"
	actionFinalConfirm action = "final_confirm"
	actionCancel       action = "cancel"
)

var yesWords = []string{"yes", "yeah", "sure", "ok", "okay", "proceed", "go ahead"}

var noWords = []string{"no", "cancel", "not now", "stop", "nevermind", "nope"}

// Agent runs grocery turns. Each turn passes through understand, search,
// reason and respond stages against the session's grocery context.
type Agent struct {
	llm      llm.Completer
	products products.Client
}

func New(completer llm.Completer, client products.Client) *Agent {
	return &Agent{llm: completer, products: client}
}

// Process handles one grocery turn and returns the reply plus the updated
// context. It never returns an error; provider failures degrade to the
// generic fallback offers and extraction failures to rule-based tokenizing.
func (a *Agent) Process(ctx context.Context, text string, gc session.GroceryContext) (string, session.GroceryContext) {
	act, items := a.understand(ctx, text, gc)

	var byItem map[string][]products.Offer
	var order []string
	if act == actionSearch {
		byItem, order = a.searchAll(ctx, items)
	}

	gc = reason(act, byItem, order, gc)
	return respond(gc), gc
}

// understand decides the turn's action from the confirmation stage and the
// raw text, extracting item names only when the turn is a fresh request.
func (a *Agent) understand(ctx context.Context, text string, gc session.GroceryContext) (action, []string) {
	lower := strings.ToLower(strings.TrimSpace(text))

	switch gc.Stage {
	case session.StageAwaitingYes:
		if containsAny(lower, yesWords) {
			return actionConfirmYes, nil
		}
		if containsAny(lower, noWords) {
			return actionCancel, nil
		}
	case session.StageAwaitingFinal:
		if containsAny(lower, yesWords) || strings.Contains(lower, "confirm") {
			return actionFinalConfirm, nil
		}
		if containsAny(lower, noWords) {
			return actionCancel, nil
		}
	}

	if gc.AwaitingConfirmation && (strings.Contains(lower, "confirm") || containsAny(lower, yesWords)) {
		return actionConfirm, nil
	}
	if containsAny(lower, noWords) || strings.Contains(lower, "clear") || strings.Contains(lower, "reset") {
		return actionCancel, nil
	}

	return actionSearch, a.extractItems(ctx, text)
}

// extractItems asks the model for a structured item list, falling back to
// rule-based tokenizing when the call fails or returns nothing.
func (a *Agent) extractItems(ctx context.Context, text string) []string {
	prompt := fmt.Sprintf(`Extract only the grocery item names from this sentence: %q

Return ONLY a JSON object with this format:
{"items": ["item1", "item2", "item3"]}

Examples:
- "I want tomatoes and eggs" -> {"items": ["tomatoes", "eggs"]}
- "Get me pasta, rice, and milk" -> {"items": ["pasta", "rice", "milk"]}

Now extract from: %q`, text, text)

	var parsed struct {
		Items []string `json:"items"`
	}
	if err := llm.Classify(ctx, a.llm, prompt, &parsed); err == nil && len(parsed.Items) > 0 {
		return parsed.Items
	} else if err != nil {
		log.Printf("grocery: item extraction: %v", err)
	}
	return extractItemsSimple(text)
}

var leadPhrases = []*regexp.Regexp{
	regexp.MustCompile(`\bi want to buy\b`),
	regexp.MustCompile(`\bi need\b`),
	regexp.MustCompile(`\bplease get me\b`),
	regexp.MustCompile(`\bcan i have\b`),
}

var stopWords = map[string]bool{
	"i": true, "want": true, "to": true, "buy": true, "need": true,
	"get": true, "some": true, "a": true, "an": true, "the": true,
	"please": true, "can": true, "could": true, "would": true,
	"like": true, "love": true, "shopping": true, "for": true,
	"me": true, "my": true, "and": true, "or": true, "also": true,
	"plus": true,
}

// extractItemsSimple tokenizes without a model: strip lead phrases, split on
// separators, drop stop words and short fragments. Single-word fragments
// survive even when they are stop words.
func extractItemsSimple(text string) []string {
	lower := strings.ToLower(text)
	for _, re := range leadPhrases {
		lower = re.ReplaceAllString(lower, "")
	}

	fragments := []string{strings.TrimSpace(lower)}
	for _, sep := range []string{",", " and ", "&", "plus"} {
		var next []string
		for _, f := range fragments {
			for _, part := range strings.Split(f, sep) {
				next = append(next, strings.TrimSpace(part))
			}
		}
		fragments = next
	}

	var items []string
	for _, f := range fragments {
		words := strings.Fields(f)
		var kept []string
		for _, w := range words {
			if !stopWords[w] || len(words) == 1 {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			continue
		}
		item := strings.Join(kept, " ")
		if len(item) > 2 {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return items
}

// searchAll fans out one product search per item. Order preserves the
// request's item order regardless of completion order.
func (a *Agent) searchAll(ctx context.Context, items []string) (map[string][]products.Offer, []string) {
	results := make([][]products.Offer, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item string) {
			defer wg.Done()
			offers, err := a.products.Search(ctx, item)
			if err != nil {
				log.Printf("grocery: search %q: %v", item, err)
				return
			}
			results[i] = offers
		}(i, item)
	}
	wg.Wait()

	byItem := make(map[string][]products.Offer, len(items))
	for i, item := range items {
		byItem[item] = results[i]
	}
	return byItem, items
}

// reason applies the state transition for the decided action. For a fresh
// search it builds the cart by picking the cheapest priced offer per item,
// or the first candidate when no offer carries a parseable price. Items
// with zero candidates are dropped.
func reason(act action, byItem map[string][]products.Offer, order []string, gc session.GroceryContext) session.GroceryContext {
	switch act {
	case actionFinalConfirm:
		gc.Stage = session.StageCompleted
		gc.AwaitingConfirmation = false
		gc.Cart = nil
		return gc
	case actionCancel:
		gc.Stage = session.StageCancelled
		gc.AwaitingConfirmation = false
		gc.Cart = nil
		return gc
	case actionConfirm:
		if gc.AwaitingConfirmation {
			gc.Stage = session.StageAwaitingYes
		}
		return gc
	case actionConfirmYes:
		gc.Stage = session.StageAwaitingFinal
		return gc
	}

	if len(byItem) == 0 {
		gc.Cart = nil
		return gc
	}

	var cart []session.CartItem
	for _, item := range order {
		offers := byItem[item]
		if len(offers) == 0 {
			continue
		}
		best, ok := cheapest(offers)
		if !ok {
			best = offers[0]
		}
		cart = append(cart, session.CartItem{
			Name:  best.Name,
			Price: best.Price,
			Store: best.Store,
			Code:  best.Code,
		})
	}

	gc.Cart = cart
	gc.AwaitingConfirmation = true
	gc.Stage = session.StageInitial
	return gc
}

func cheapest(offers []products.Offer) (products.Offer, bool) {
	var best products.Offer
	bestPrice := 0.0
	found := false
	for _, o := range offers {
		p, ok := parsePrice(o.Price)
		if !ok {
			continue
		}
		if !found || p < bestPrice {
			best, bestPrice, found = o, p, true
		}
	}
	return best, found
}

func parsePrice(s string) (float64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" || s == "N/A" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// respond renders the fixed template for the context's stage.
func respond(gc session.GroceryContext) string {
	switch {
	case gc.Stage == session.StageCompleted:
		return "Perfect! Your order has been placed successfully! " +
			"Please pay attention to your phone - you will receive a delivery call soon. " +
			"Thank you for shopping with us!"

	case gc.Stage == session.StageCancelled:
		return "Okay, no problem! Your cart has been cleared. I'm here whenever you need me!"

	case gc.Stage == session.StageAwaitingFinal:
		if len(gc.Cart) == 0 {
			return "Sorry, your cart is empty. Please start a new order."
		}
		return "Are you sure you want to proceed? " +
			"I will use your saved card details to complete the payment. " +
			"Say yes to confirm or no to cancel."

	case gc.Stage == session.StageAwaitingYes:
		if len(gc.Cart) == 0 {
			return "Sorry, your cart is empty. Please start a new order."
		}
		var parts []string
		for _, item := range gc.Cart {
			parts = append(parts, fmt.Sprintf("%s for $%s", item.Name, item.Price))
		}
		return fmt.Sprintf("Let me confirm your order. You selected: %s. "+
			"The total is $%.2f. "+
			"Would you like to proceed? Say yes to continue or no to cancel.",
			strings.Join(parts, ", "), cartTotal(gc.Cart))

	case len(gc.Cart) == 0:
		return "Sorry, I couldn't find those items. Please try again with different items."

	default:
		var desc string
		if len(gc.Cart) == 1 {
			desc = fmt.Sprintf("%s for $%s", gc.Cart[0].Name, gc.Cart[0].Price)
		} else {
			var parts []string
			for _, item := range gc.Cart[:len(gc.Cart)-1] {
				parts = append(parts, fmt.Sprintf("%s for $%s", item.Name, item.Price))
			}
			last := gc.Cart[len(gc.Cart)-1]
			desc = fmt.Sprintf("%s, and %s for $%s", strings.Join(parts, ", "), last.Name, last.Price)
		}
		return fmt.Sprintf("I found %d items for you: %s. "+
			"Total price: $%.2f. "+
			"Say confirm to review your order, or cancel to clear your cart.",
			len(gc.Cart), desc, cartTotal(gc.Cart))
	}
}

func cartTotal(cart []session.CartItem) float64 {
	total := 0.0
	for _, item := range cart {
		p, _ := parsePrice(item.Price)
		total += p
	}
	return total
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
