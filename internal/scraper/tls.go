package scraper

import (
	"context"
	"fmt"
	"io"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// TLSFetcher impersonates a desktop Chrome TLS and HTTP/2 fingerprint so the
// page's anti-bot challenge treats it as a browser.
type TLSFetcher struct {
	client tls_client.HttpClient
}

// NewTLSFetcher builds a fetcher for the named tls-client profile. Unknown
// names fall back to the library default.
func NewTLSFetcher(profile string, timeout time.Duration) (*TLSFetcher, error) {
	p, ok := profiles.MappedTLSClients[profile]
	if !ok {
		p = profiles.DefaultClientProfile
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(),
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(p),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
		tls_client.WithRandomTLSExtensionOrder(),
		tls_client.WithCatchPanics(),
	)
	if err != nil {
		return nil, fmt.Errorf("create tls client: %w", err)
	}
	return &TLSFetcher{client: client}, nil
}

func (f *TLSFetcher) Name() string { return "tls-client" }

func (f *TLSFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header = fhttp.Header{
		"accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"accept-language": {"en-US,en;q=0.9"},
		"user-agent":      {browserUserAgent},
		fhttp.HeaderOrderKey: {
			"accept",
			"accept-language",
			"user-agent",
		},
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	return string(body), nil
}
