// Package format renders report values as display strings.
package format

import (
	"math"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const NA = "N/A"

var (
	printer = message.NewPrinter(language.English)
	units   = []string{"", "K", "M", "B", "T"}
	kyiv    = loadKyiv()
)

func loadKyiv() *time.Location {
	for _, name := range []string{"Europe/Kyiv", "Europe/Kiev"} {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("EET", 2*60*60)
}

// Kyiv returns the report timezone.
func Kyiv() *time.Location { return kyiv }

// Money scales x to the largest suffix keeping |x| below 1000 and renders it
// as "$1,234.56K". A nil value renders as N/A.
func Money(x *float64) string {
	if x == nil {
		return NA
	}
	v := *x
	k := 0
	for math.Abs(v) >= 1000 && k < len(units)-1 {
		v /= 1000
		k++
	}
	return printer.Sprintf("$%.2f", v) + units[k]
}

// PercentDelta returns the signed change from old to new in percent.
func PercentDelta(newV, oldV *float64) string {
	if newV == nil || oldV == nil || *oldV == 0 {
		return NA
	}
	d := (*newV - *oldV) / *oldV * 100
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return NA
	}
	return SignedPct(d)
}

func SignedPct(v float64) string {
	if v >= 0 {
		return printer.Sprintf("+%.2f%%", v)
	}
	return printer.Sprintf("%.2f%%", v)
}

// Price renders a spot price with thousands grouping, e.g. "$3,000.00".
func Price(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// NowStamp renders now in the Kyiv zone as "2006-01-02 15:04".
func NowStamp(now time.Time) string {
	return now.In(kyiv).Format("2006-01-02 15:04")
}

func Float(v float64) *float64 { return &v }
