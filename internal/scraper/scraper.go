package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/ethflow-bot/internal/logging"
)

// FetchError wraps the last failure of the fetcher chain for one URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher returns the raw HTML of a page.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string) (string, error)
}

// Scraper tries each fetcher in order and flattens the first HTML it gets.
type Scraper struct {
	fetchers []Fetcher
	pages    *gocache.Cache
	log      *logrus.Entry
}

type Options struct {
	Fetchers []Fetcher
	CacheTTL time.Duration // 0 disables the page cache
	Logger   logrus.FieldLogger
}

func New(opts Options) *Scraper {
	s := &Scraper{
		fetchers: opts.Fetchers,
		log:      logging.Component(opts.Logger, "scraper"),
	}
	if opts.CacheTTL > 0 {
		s.pages = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// FetchPageText returns the visible text of url as trimmed, non-empty lines.
func (s *Scraper) FetchPageText(ctx context.Context, url string) ([]string, error) {
	if s.pages != nil {
		if cached, ok := s.pages.Get(url); ok {
			s.log.WithField("url", url).Debug("using cached page text")
			return cached.([]string), nil
		}
	}

	if len(s.fetchers) == 0 {
		return nil, &FetchError{URL: url, Err: errors.New("no fetchers configured")}
	}

	var lastErr error
	for _, f := range s.fetchers {
		start := time.Now()
		html, err := f.Fetch(ctx, url)
		if err != nil {
			s.log.WithFields(logrus.Fields{"fetcher": f.Name(), "url": url}).
				WithError(err).Warn("fetch failed, trying next fetcher")
			lastErr = err
			continue
		}

		lines, err := ExtractLines(html)
		if err != nil {
			lastErr = err
			continue
		}

		s.log.WithFields(logrus.Fields{
			"fetcher": f.Name(),
			"lines":   len(lines),
			"took":    time.Since(start).Round(time.Millisecond),
		}).Info("page fetched")

		if s.pages != nil {
			s.pages.SetDefault(url, lines)
		}
		return lines, nil
	}

	return nil, &FetchError{URL: url, Err: lastErr}
}
