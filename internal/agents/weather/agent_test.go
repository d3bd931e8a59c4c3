package weather

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/weatherapi"
)

type stubWeather struct {
	readings  map[string]weatherapi.Reading
	forecasts map[string][]weatherapi.DailyReading
}

func (s *stubWeather) Current(_ context.Context, city string) (weatherapi.Reading, error) {
	r, ok := s.readings[city]
	if !ok {
		return weatherapi.Reading{}, weatherapi.ErrCityNotFound
	}
	return r, nil
}

func (s *stubWeather) Forecast(_ context.Context, city string, _ int) ([]weatherapi.DailyReading, error) {
	f, ok := s.forecasts[city]
	if !ok {
		return nil, weatherapi.ErrCityNotFound
	}
	return f, nil
}

func testStub() *stubWeather {
	return &stubWeather{
		readings: map[string]weatherapi.Reading{
			"Paris":  {City: "Paris", Temp: 21.5, FeelsLike: 20.9, Humidity: 60, Condition: "Clouds", Description: "Scattered clouds", WindSpeed: 3.2},
			"Oslo":   {City: "Oslo", Temp: 12.0, FeelsLike: 10.5, Humidity: 75, Condition: "Rain", Description: "Light rain", WindSpeed: 5.1},
			"Lisbon": {City: "Lisbon", Temp: 27.0, FeelsLike: 27.5, Humidity: 50, Condition: "Clear", Description: "Clear sky", WindSpeed: 2.0},
		},
		forecasts: map[string][]weatherapi.DailyReading{
			"Paris": {
				{Date: "2026-09-02", Temp: 22.0, Condition: "clear sky", RainProbability: 10},
				{Date: "2026-09-03", Temp: 19.5, Condition: "light rain", RainProbability: 70},
			},
		},
	}
}

func TestHeuristicIntent(t *testing.T) {
	tests := []struct {
		text string
		want intent
	}{
		{"what's the weather in Paris?", intent{Kind: "current", Cities: []string{"Paris"}}},
		{"forecast for Paris this week", intent{Kind: "forecast", Cities: []string{"Paris"}}},
		{"compare Paris and Oslo", intent{Kind: "compare", Cities: []string{"Paris", "Oslo"}}},
		{"Oslo vs Lisbon?", intent{Kind: "compare", Cities: []string{"Oslo", "Lisbon"}}},
	}
	for _, tt := range tests {
		if got := heuristicIntent(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("heuristicIntent(%q) = %+v, want %+v", tt.text, got, tt.want)
		}
	}
}

func TestCurrentWeather(t *testing.T) {
	agent := New(llm.NewMockCompleter(), testStub())

	reply := agent.Process(context.Background(), "what's the weather in Paris?")
	for _, want := range []string{"Paris", "21.5°C", "scattered clouds", "humidity 60%"} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q: %s", want, reply)
		}
	}
}

func TestForecast(t *testing.T) {
	agent := New(llm.NewMockCompleter(), testStub())

	reply := agent.Process(context.Background(), "forecast for Paris this week")
	if !strings.Contains(reply, "2026-09-02") || !strings.Contains(reply, "70% chance of rain") {
		t.Errorf("forecast reply = %s", reply)
	}
}

func TestCompare(t *testing.T) {
	agent := New(llm.NewMockCompleter(), testStub())

	reply := agent.Process(context.Background(), "compare Paris and Oslo")
	for _, want := range []string{"Paris is 21.5°C", "Oslo is 12.0°C", "difference is 9.5°C"} {
		if !strings.Contains(reply, want) {
			t.Errorf("compare reply missing %q: %s", want, reply)
		}
	}
}

func TestUnknownCityRendersNotFound(t *testing.T) {
	agent := New(llm.NewMockCompleter(), testStub())

	reply := agent.Process(context.Background(), "what's the weather in Atlantis?")
	if !strings.Contains(reply, `couldn't find a city called "Atlantis"`) {
		t.Errorf("reply = %s", reply)
	}
}

func TestModelExtractionPreferred(t *testing.T) {
	agent := New(
		llm.NewMockCompleter(`{"kind": "current", "cities": ["Lisbon"]}`),
		testStub(),
	)

	reply := agent.Process(context.Background(), "is it beach weather where my sister lives")
	if !strings.Contains(reply, "Lisbon") {
		t.Errorf("reply = %s", reply)
	}
}

func TestNoCityAsksForOne(t *testing.T) {
	agent := New(llm.NewMockCompleter(), testStub())

	reply := agent.Process(context.Background(), "what's the weather like")
	if !strings.Contains(reply, "Which city") {
		t.Errorf("reply = %s", reply)
	}
}
