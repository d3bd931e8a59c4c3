package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"
)

// ErrCityNotFound reports a city name the provider does not recognize.
var ErrCityNotFound = errors.New("city not found")

// Reading holds current conditions for one city.
type Reading struct {
	City        string  `json:"city"`
	Temp        float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
}

// DailyReading is one forecast day.
type DailyReading struct {
	Date            string  `json:"date"`
	Temp            float64 `json:"temperature"`
	Condition       string  `json:"condition"`
	RainProbability int     `json:"rain_probability"`
}

// Client fetches weather data.
type Client interface {
	Current(ctx context.Context, city string) (Reading, error)
	Forecast(ctx context.Context, city string, days int) ([]DailyReading, error)
}

// OpenWeather implements Client against the OpenWeatherMap REST API.
type OpenWeather struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenWeather(apiKey string) *OpenWeather {
	return NewOpenWeatherWithBaseURL(apiKey, "https://api.openweathermap.org")
}

func NewOpenWeatherWithBaseURL(apiKey, baseURL string) *OpenWeather {
	return &OpenWeather{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *OpenWeather) get(ctx context.Context, path, city string) ([]byte, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	res, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", ErrCityNotFound, city)
	}
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("weather status %d: %s", res.StatusCode, string(body))
	}
	return io.ReadAll(res.Body)
}

func (w *OpenWeather) Current(ctx context.Context, city string) (Reading, error) {
	body, err := w.get(ctx, "/data/2.5/weather", city)
	if err != nil {
		return Reading{}, err
	}

	var parsed struct {
		Name string `json:"name"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Reading{}, fmt.Errorf("decode weather: %w", err)
	}

	reading := Reading{
		City:      parsed.Name,
		Temp:      round1(parsed.Main.Temp),
		FeelsLike: round1(parsed.Main.FeelsLike),
		Humidity:  parsed.Main.Humidity,
		WindSpeed: round1(parsed.Wind.Speed),
	}
	if len(parsed.Weather) > 0 {
		reading.Condition = parsed.Weather[0].Main
		reading.Description = parsed.Weather[0].Description
	}
	return reading, nil
}

func (w *OpenWeather) Forecast(ctx context.Context, city string, days int) ([]DailyReading, error) {
	if days <= 0 {
		days = 5
	}
	body, err := w.get(ctx, "/data/2.5/forecast", city)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Weather []struct {
				Description string `json:"description"`
			} `json:"weather"`
			Pop float64 `json:"pop"`
		} `json:"list"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}

	// The 5-day endpoint returns 3-hour slots; every 8th entry is one day.
	var out []DailyReading
	for i := 0; i < len(parsed.List) && len(out) < days; i += 8 {
		item := parsed.List[i]
		daily := DailyReading{
			Date:            time.Unix(item.Dt, 0).UTC().Format("2006-01-02"),
			Temp:            round1(item.Main.Temp),
			RainProbability: int(item.Pop * 100),
		}
		if len(item.Weather) > 0 {
			daily.Condition = item.Weather[0].Description
		}
		out = append(out, daily)
	}
	return out, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
