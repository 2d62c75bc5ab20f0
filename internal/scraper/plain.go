package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// PlainFetcher is an ordinary HTTP GET with a generic browser user agent.
type PlainFetcher struct {
	client *resty.Client
}

func NewPlainFetcher(timeout time.Duration) *PlainFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0").
		SetHeader("Accept", "text/html")
	return &PlainFetcher{client: client}
}

func (f *PlainFetcher) Name() string { return "plain" }

func (f *PlainFetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode())
	}
	return resp.String(), nil
}
