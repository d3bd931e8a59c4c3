package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/observability"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/weatherapi"
)

type failingWeather struct{ err error }

func (f failingWeather) Current(_ context.Context, _ string) (weatherapi.Reading, error) {
	return weatherapi.Reading{}, f.err
}

func (f failingWeather) Forecast(_ context.Context, _ string, _ int) ([]weatherapi.DailyReading, error) {
	return nil, f.err
}

func TestCountingCompleterRecordsFailures(t *testing.T) {
	metrics := observability.NewMetrics("appinstrllm")
	model := llm.NewMockCompleter("ok")
	c := countingCompleter{next: model, metrics: metrics}

	if _, err := c.Complete(context.Background(), "first"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := testutil.ToFloat64(metrics.ProviderErrors.WithLabelValues("llm", "error")); got != 0 {
		t.Fatalf("llm error count = %v after success, want 0", got)
	}

	model.Fail(errors.New("model down"))
	if _, err := c.Complete(context.Background(), "second"); err == nil {
		t.Fatal("expected completer error to pass through")
	}
	if got := testutil.ToFloat64(metrics.ProviderErrors.WithLabelValues("llm", "error")); got != 1 {
		t.Fatalf("llm error count = %v, want 1", got)
	}
}

func TestCountingWeatherClassifiesNotFound(t *testing.T) {
	metrics := observability.NewMetrics("appinstrweather")
	c := countingWeather{
		next:    failingWeather{err: fmt.Errorf("lookup oslo: %w", weatherapi.ErrCityNotFound)},
		metrics: metrics,
	}

	if _, err := c.Current(context.Background(), "Oslo"); !errors.Is(err, weatherapi.ErrCityNotFound) {
		t.Fatalf("Current() error = %v, want ErrCityNotFound", err)
	}
	if _, err := c.Forecast(context.Background(), "Oslo", 5); !errors.Is(err, weatherapi.ErrCityNotFound) {
		t.Fatalf("Forecast() error = %v, want ErrCityNotFound", err)
	}
	if got := testutil.ToFloat64(metrics.ProviderErrors.WithLabelValues("openweather", "not_found")); got != 2 {
		t.Fatalf("openweather not_found count = %v, want 2", got)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "canceled"},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), "timeout"},
		{fmt.Errorf("lookup: %w", weatherapi.ErrCityNotFound), "not_found"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
