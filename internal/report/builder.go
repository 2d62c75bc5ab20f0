// Package report assembles the ETH report text. Each section is built on its
// own and renders an N/A placeholder with the reason on failure, so one upstream outage
// never hides the other sections.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/ethflow-bot/internal/farside"
	"github.com/kjannette/ethflow-bot/internal/format"
	"github.com/kjannette/ethflow-bot/internal/logging"
	"github.com/kjannette/ethflow-bot/internal/models"
)

// DefaultTimeout bounds one Build across every upstream call it makes.
const DefaultTimeout = 45 * time.Second

const (
	Footer    = "Джерела: CoinGecko, Farside."
	flowTitle = "3) Великі фонди (spot ETH ETF"
)

type PriceSource interface {
	GetPriceAndVolume(ctx context.Context) (*models.PriceSnapshot, error)
}

type PageSource interface {
	FetchPageText(ctx context.Context, url string) ([]string, error)
}

type FlowParser interface {
	Parse(lines []string) (*models.FlowReport, error)
}

// Archive stores successfully parsed flow reports.
type Archive interface {
	RecordFlows(ctx context.Context, reportID string, r *models.FlowReport) error
}

type Options struct {
	Prices   PriceSource
	Pages    PageSource
	Parser   FlowParser
	FlowsURL string
	Archive  Archive
	Timeout  time.Duration
	Now      func() time.Time
	Logger   logrus.FieldLogger
}

type Builder struct {
	prices   PriceSource
	pages    PageSource
	parser   FlowParser
	flowsURL string
	archive  Archive
	timeout  time.Duration
	now      func() time.Time
	log      *logrus.Entry
}

func NewBuilder(opts Options) *Builder {
	if opts.Parser == nil {
		opts.Parser = farside.NewParser(farside.DefaultAnchor)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Builder{
		prices:   opts.Prices,
		pages:    opts.Pages,
		parser:   opts.Parser,
		flowsURL: opts.FlowsURL,
		archive:  opts.Archive,
		timeout:  opts.Timeout,
		now:      opts.Now,
		log:      logging.Component(opts.Logger, "report"),
	}
}

// Build returns the full report. It never fails: section errors are
// rendered in place. Sections still waiting when the timeout expires are
// rendered as unavailable.
func (b *Builder) Build(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	id := uuid.NewString()
	log := b.log.WithField("report_id", id)
	start := b.now()

	var (
		priceLine, volumeLine string
		flowSection           string
	)

	// Sections swallow their own errors; the group only joins them.
	var g errgroup.Group
	g.Go(func() error {
		priceLine, volumeLine = b.priceSection(ctx, log)
		return nil
	})
	g.Go(func() error {
		flowSection = b.flowSection(ctx, log, id)
		return nil
	})
	_ = g.Wait()

	header := fmt.Sprintf("ETH звіт — %s (Kyiv)", format.NowStamp(start))
	log.WithField("took", b.now().Sub(start).Round(time.Millisecond)).Info("report built")

	return strings.Join([]string{header, priceLine, volumeLine, flowSection, Footer}, "\n")
}

func (b *Builder) priceSection(ctx context.Context, log *logrus.Entry) (string, string) {
	snap, err := b.prices.GetPriceAndVolume(ctx)
	if err != nil {
		log.WithError(err).Warn("price section unavailable")
		return unavailable("1) Ціна", err), unavailable("2) Об'єм (24h)", err)
	}
	return PriceLine(snap), VolumeLine(snap)
}

func (b *Builder) flowSection(ctx context.Context, log *logrus.Entry, id string) string {
	lines, err := b.pages.FetchPageText(ctx, b.flowsURL)
	if err != nil {
		log.WithError(err).Warn("flow page unavailable")
		return unavailable(flowTitle+")", err)
	}

	r, err := b.parser.Parse(lines)
	if err != nil {
		log.WithError(err).Warn("flow table not recognized")
		return unavailable(flowTitle+")", err)
	}

	if b.archive != nil {
		if err := b.archive.RecordFlows(ctx, id, r); err != nil {
			log.WithError(err).Warn("archive flows failed")
		}
	}
	return FlowSection(r)
}

func PriceLine(s *models.PriceSnapshot) string {
	return fmt.Sprintf("1) Ціна: %s (%s)", format.Price(s.Price), format.SignedPct(s.PriceChangePct24h))
}

func VolumeLine(s *models.PriceSnapshot) string {
	return fmt.Sprintf("2) Об'єм (24h): %s (%s)", format.Money(&s.Volume24h), s.VolumeChangePct)
}

func FlowSection(r *models.FlowReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s — %s vs %s):", flowTitle, r.MostRecent.DateLabel(), r.Prior.DateLabel())
	for _, line := range farside.Lines(r) {
		sb.WriteString("\n• ")
		sb.WriteString(line)
	}
	return sb.String()
}

func unavailable(title string, err error) string {
	return fmt.Sprintf("%s: N/A — %v", title, err)
}
