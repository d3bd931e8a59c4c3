package app

import (
	"context"
	"errors"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/mailcal"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/observability"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/products"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/weatherapi"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/websearch"
)

// Provider failures are counted at the wiring boundary so the agents and
// adapters stay metrics-free.

func errorCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, weatherapi.ErrCityNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type countingCompleter struct {
	next    llm.Completer
	metrics *observability.Metrics
}

func (c countingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.next.Complete(ctx, prompt)
	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues("llm", errorCode(err)).Inc()
	}
	return out, err
}

type countingWeather struct {
	next    weatherapi.Client
	metrics *observability.Metrics
}

func (c countingWeather) Current(ctx context.Context, city string) (weatherapi.Reading, error) {
	out, err := c.next.Current(ctx, city)
	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues("openweather", errorCode(err)).Inc()
	}
	return out, err
}

func (c countingWeather) Forecast(ctx context.Context, city string, days int) ([]weatherapi.DailyReading, error) {
	out, err := c.next.Forecast(ctx, city, days)
	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues("openweather", errorCode(err)).Inc()
	}
	return out, err
}

type countingSearch struct {
	next    websearch.Client
	metrics *observability.Metrics
}

func (c countingSearch) Query(ctx context.Context, text string, category session.Category, count int) ([]session.Result, error) {
	out, err := c.next.Query(ctx, text, category, count)
	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues("serper", errorCode(err)).Inc()
	}
	return out, err
}

type countingProducts struct {
	next    products.Client
	metrics *observability.Metrics
}

func (c countingProducts) Search(ctx context.Context, term string) ([]products.Offer, error) {
	out, err := c.next.Search(ctx, term)
	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues("openfoodfacts", errorCode(err)).Inc()
	}
	return out, err
}

type countingMail struct {
	next    mailcal.Client
	metrics *observability.Metrics
}

func (c countingMail) count(err error) {
	if err != nil {
		c.metrics.ProviderErrors.WithLabelValues("google", errorCode(err)).Inc()
	}
}

func (c countingMail) ListUnread(ctx context.Context, max int) ([]session.Message, error) {
	out, err := c.next.ListUnread(ctx, max)
	c.count(err)
	return out, err
}

func (c countingMail) GetMessage(ctx context.Context, id string) (session.Message, error) {
	out, err := c.next.GetMessage(ctx, id)
	c.count(err)
	return out, err
}

func (c countingMail) Send(ctx context.Context, to, subject, body, threadID string) (string, error) {
	out, err := c.next.Send(ctx, to, subject, body, threadID)
	c.count(err)
	return out, err
}

func (c countingMail) MarkRead(ctx context.Context, id string) error {
	err := c.next.MarkRead(ctx, id)
	c.count(err)
	return err
}

func (c countingMail) CreateEvent(ctx context.Context, ev mailcal.Event) (string, error) {
	out, err := c.next.CreateEvent(ctx, ev)
	c.count(err)
	return out, err
}

func (c countingMail) FreeBusy(ctx context.Context, start, end time.Time) (bool, []mailcal.Interval, error) {
	busy, intervals, err := c.next.FreeBusy(ctx, start, end)
	c.count(err)
	return busy, intervals, err
}
