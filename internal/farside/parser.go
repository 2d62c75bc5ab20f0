// Package farside rebuilds the spot ETH ETF flow table from the flattened text
// of the Farside page and reconciles its two most recent populated days.
//
// The page is reduced to one trimmed line per text node before it reaches this
// package, so the table structure has to be recovered from line order alone:
// the fund-name header, then the ticker row ending at "Fee", then one block of
// ten value lines after every date line.
package farside

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/ethflow-bot/internal/models"
)

const (
	DefaultAnchor = "Blackrock"
	feeLine       = "Fee"
	zeroToken     = "-"
)

var (
	tickerPattern = regexp.MustCompile(`^[A-Z]{1,6}\*?$`)
	datePattern   = regexp.MustCompile(`^\d{1,2} [A-Z][a-z]{2} \d{4}$`)
	valuePattern  = regexp.MustCompile(`^(?:\(\d[\d,]*\.?\d*\)|\d[\d,]*\.?\d*|-)$`)
)

// Parser runs the extraction stages against one flattened page.
type Parser struct {
	Anchor string
}

func NewParser(anchor string) *Parser {
	if anchor == "" {
		anchor = DefaultAnchor
	}
	return &Parser{Anchor: anchor}
}

// Parse is shorthand for NewParser(DefaultAnchor).Parse(lines).
func Parse(lines []string) (*models.FlowReport, error) {
	return NewParser(DefaultAnchor).Parse(lines)
}

func (p *Parser) Parse(lines []string) (*models.FlowReport, error) {
	anchor, names, err := LocateFunds(lines, p.Anchor)
	if err != nil {
		return nil, err
	}

	tickers, err := CollectTickers(lines, anchor)
	if err != nil {
		return nil, err
	}

	labels := BuildLabels(names, tickers)

	rows := ScanRows(lines)
	if len(rows) < 2 {
		return nil, &ParseError{Stage: StageRows, Msg: "Недостатньо дат з даними"}
	}

	qualifying := FilterRows(rows)
	if len(qualifying) < 2 {
		return nil, &ParseError{Stage: StageFilter, Msg: "Немає двох днів з реальними даними"}
	}

	recent, err := parseRow(qualifying[len(qualifying)-1])
	if err != nil {
		return nil, err
	}
	prior, err := parseRow(qualifying[len(qualifying)-2])
	if err != nil {
		return nil, err
	}

	return &models.FlowReport{
		MostRecent: recent,
		Prior:      prior,
		Funds:      ComputeDeltas(labels, recent.Values, prior.Values),
	}, nil
}

// LocateFunds finds the anchor line and returns its index together with the
// nine fund display names that start there.
func LocateFunds(lines []string, anchor string) (int, []string, error) {
	idx := indexFrom(lines, anchor, 0)
	if idx < 0 {
		return -1, nil, &ParseError{Stage: StageAnchor, Msg: fmt.Sprintf("Не знайдено '%s' у таблиці", anchor)}
	}
	if idx+models.FundColumns > len(lines) {
		return -1, nil, &ParseError{
			Stage: StageAnchor,
			Msg:   fmt.Sprintf("Після '%s' лише %d рядків замість %d назв фондів", anchor, len(lines)-idx, models.FundColumns),
		}
	}
	names := make([]string, models.FundColumns)
	copy(names, lines[idx:idx+models.FundColumns])
	return idx, names, nil
}

// CollectTickers gathers ticker symbols between the fund-name block and the
// first "Fee" line after the anchor.
func CollectTickers(lines []string, anchor int) ([]string, error) {
	fee := indexFrom(lines, feeLine, anchor)
	if fee < 0 {
		return nil, &ParseError{Stage: StageTickers, Msg: "Не знайдено 'Fee' після фондів"}
	}

	var tickers []string
	for i := anchor + models.FundColumns; i < fee; i++ {
		if tickerPattern.MatchString(lines[i]) {
			tickers = append(tickers, lines[i])
		}
	}
	if len(tickers) < models.FundColumns {
		return nil, &ParseError{
			Stage: StageTickers,
			Msg:   fmt.Sprintf("Очікувалось %d тікерів, знайдено %d: %v", models.FundColumns, len(tickers), tickers),
		}
	}
	return tickers[:models.FundColumns], nil
}

// BuildLabels pairs names with tickers and appends the total column.
func BuildLabels(names, tickers []string) []string {
	n := min(len(names), len(tickers))
	labels := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		labels = append(labels, fmt.Sprintf("%s (%s)", names[i], tickers[i]))
	}
	return append(labels, models.TotalLabel)
}

// ScanRows returns every date line followed by ten well-formed value tokens,
// in document order. Date lines without such a block are table headers or
// unrelated text and are skipped.
func ScanRows(lines []string) []models.FlowRow {
	var rows []models.FlowRow
	for i, line := range lines {
		if !datePattern.MatchString(line) {
			continue
		}
		date, err := time.Parse(models.DateLayout, line)
		if err != nil {
			continue
		}
		if i+1+models.FlowColumns > len(lines) {
			continue
		}
		tokens := lines[i+1 : i+1+models.FlowColumns]
		if !allValues(tokens) {
			continue
		}
		rows = append(rows, models.FlowRow{
			Date:   date,
			Raw:    line,
			Tokens: append([]string(nil), tokens...),
		})
	}
	return rows
}

// FilterRows keeps rows where at least one fund has reported.
func FilterRows(rows []models.FlowRow) []models.FlowRow {
	var out []models.FlowRow
	for _, r := range rows {
		if hasFundData(r.Tokens) {
			out = append(out, r)
		}
	}
	return out
}

// ParseValue converts a table token to a signed amount. "-" is zero and
// parentheses mark a negative number; explicit signs are not part of the
// table's notation and are rejected.
func ParseValue(token string) (decimal.Decimal, error) {
	s := strings.TrimSpace(token)
	if s == zeroToken {
		return decimal.Zero, nil
	}
	if strings.ContainsAny(s, "+-") {
		return decimal.Zero, &InvalidNumericToken{Token: token}
	}
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if neg {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), ".")
	v, err := decimal.NewFromString(s)
	if err != nil || s == "" {
		return decimal.Zero, &InvalidNumericToken{Token: token}
	}
	if neg {
		v = v.Neg()
	}
	return v, nil
}

// ComputeDeltas lines up labels with the recent and prior values.
func ComputeDeltas(labels []string, recent, prior []decimal.Decimal) []models.FundFlow {
	n := min(len(labels), len(recent), len(prior))
	out := make([]models.FundFlow, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.FundFlow{
			Label:  labels[i],
			Value:  recent[i],
			Delta:  recent[i].Sub(prior[i]),
			Status: models.StatusOf(recent[i]),
		})
	}
	return out
}

func parseRow(r models.FlowRow) (models.FlowRow, error) {
	values := make([]decimal.Decimal, len(r.Tokens))
	for i, tok := range r.Tokens {
		v, err := ParseValue(tok)
		if err != nil {
			return r, err
		}
		values[i] = v
	}
	r.Values = values
	return r, nil
}

func hasFundData(tokens []string) bool {
	for _, tok := range tokens[:min(len(tokens), models.FundColumns)] {
		if strings.TrimSpace(tok) != zeroToken {
			return true
		}
	}
	return false
}

func allValues(tokens []string) bool {
	for _, tok := range tokens {
		if !valuePattern.MatchString(tok) {
			return false
		}
	}
	return true
}

func indexFrom(lines []string, target string, from int) int {
	for i := max(from, 0); i < len(lines); i++ {
		if lines[i] == target {
			return i
		}
	}
	return -1
}
