// Package weather implements the weather agent: current conditions,
// multi-day forecasts and two-city comparisons.
package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/weatherapi"
)

const defaultForecastDays = 5

// Agent answers weather questions. It holds no per-session state.
type Agent struct {
	llm     llm.Completer
	weather weatherapi.Client
}

func New(completer llm.Completer, client weatherapi.Client) *Agent {
	return &Agent{llm: completer, weather: client}
}

type intent struct {
	Kind   string   `json:"kind"` // current, forecast or compare
	Cities []string `json:"cities"`
}

// Process handles one weather turn. Provider and extraction failures all
// render as user-facing text.
func (a *Agent) Process(ctx context.Context, text string) string {
	in := a.classify(ctx, text)
	if len(in.Cities) == 0 {
		return "Which city would you like the weather for?"
	}

	switch in.Kind {
	case "forecast":
		return a.forecast(ctx, in.Cities[0])
	case "compare":
		if len(in.Cities) < 2 {
			return "I need two cities to compare. Which two did you mean?"
		}
		return a.compare(ctx, in.Cities[0], in.Cities[1])
	default:
		return a.current(ctx, in.Cities[0])
	}
}

func (a *Agent) classify(ctx context.Context, text string) intent {
	prompt := fmt.Sprintf(`Classify this weather question and extract the city names.

Question: %s

Kinds:
- current: current conditions for one city
- forecast: upcoming days for one city
- compare: two cities side by side

Return JSON: {"kind": "current|forecast|compare", "cities": ["City"]}`, text)

	var parsed intent
	if err := llm.Classify(ctx, a.llm, prompt, &parsed); err == nil && len(parsed.Cities) > 0 {
		switch parsed.Kind {
		case "current", "forecast", "compare":
			return parsed
		}
	}
	return heuristicIntent(text)
}

var cityInRe = regexp.MustCompile(`(?i)\b(?:in|for|at)\s+([a-zA-Z][a-zA-Z\s'-]*?)(?:\?|\.|,|$)`)

var compareRe = regexp.MustCompile(`(?i)\b(?:compare\s+)?([a-zA-Z][a-zA-Z'-]*(?:\s[a-zA-Z'-]+)?)\s+(?:and|vs|versus|with|to)\s+([a-zA-Z][a-zA-Z'-]*(?:\s[a-zA-Z'-]+)?)\s*\??$`)

// heuristicIntent is the fallback extraction: keyword kind detection plus
// simple preposition and conjunction patterns for city names.
func heuristicIntent(text string) intent {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "compare") || strings.Contains(lower, " vs ") || strings.Contains(lower, "versus") {
		if m := compareRe.FindStringSubmatch(text); m != nil {
			return intent{Kind: "compare", Cities: []string{strings.TrimSpace(m[1]), strings.TrimSpace(m[2])}}
		}
		return intent{Kind: "compare"}
	}

	kind := "current"
	if strings.Contains(lower, "forecast") || strings.Contains(lower, "tomorrow") ||
		strings.Contains(lower, "next few days") || strings.Contains(lower, "this week") {
		kind = "forecast"
	}

	if m := cityInRe.FindStringSubmatch(text); m != nil {
		city := strings.TrimSpace(m[1])
		// Strip trailing time words the preposition pattern can swallow.
		for _, suffix := range []string{" tomorrow", " today", " this week"} {
			city = strings.TrimSuffix(strings.ToLower(city), suffix)
		}
		if city != "" {
			return intent{Kind: kind, Cities: []string{titleCase(city)}}
		}
	}
	return intent{Kind: kind}
}

func (a *Agent) current(ctx context.Context, city string) string {
	r, err := a.weather.Current(ctx, city)
	if err != nil {
		return renderError(city, err)
	}
	return fmt.Sprintf("Weather in %s: %s, %.1f°C (feels like %.1f°C), humidity %d%%, wind %.1f m/s.",
		r.City, strings.ToLower(r.Description), r.Temp, r.FeelsLike, r.Humidity, r.WindSpeed)
}

func (a *Agent) forecast(ctx context.Context, city string) string {
	days, err := a.weather.Forecast(ctx, city, defaultForecastDays)
	if err != nil {
		return renderError(city, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s:\n", city)
	for _, d := range days {
		fmt.Fprintf(&b, "%s: %s, %.1f°C, %d%% chance of rain\n", d.Date, d.Condition, d.Temp, d.RainProbability)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Agent) compare(ctx context.Context, city1, city2 string) string {
	r1, err := a.weather.Current(ctx, city1)
	if err != nil {
		return renderError(city1, err)
	}
	r2, err := a.weather.Current(ctx, city2)
	if err != nil {
		return renderError(city2, err)
	}

	diff := math.Abs(r1.Temp - r2.Temp)
	return fmt.Sprintf("%s is %.1f°C with %s, while %s is %.1f°C with %s. The difference is %.1f°C.",
		r1.City, r1.Temp, strings.ToLower(r1.Description),
		r2.City, r2.Temp, strings.ToLower(r2.Description), diff)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func renderError(city string, err error) string {
	if errors.Is(err, weatherapi.ErrCityNotFound) {
		return fmt.Sprintf("I couldn't find a city called %q. Could you check the spelling?", city)
	}
	return fmt.Sprintf("Sorry, I couldn't fetch the weather for %s right now.", city)
}
