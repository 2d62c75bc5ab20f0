package farside

import (
	"fmt"

	"github.com/kjannette/ethflow-bot/internal/models"
)

var statusText = map[models.FlowStatus]string{
	models.Inflow:    "приплив",
	models.Outflow:   "відтік",
	models.Unchanged: "без змін",
}

// Lines renders one line per fund, in column order with the total last.
func Lines(r *models.FlowReport) []string {
	out := make([]string, 0, len(r.Funds))
	for _, f := range r.Funds {
		out = append(out, FundLine(f))
	}
	return out
}

func FundLine(f models.FundFlow) string {
	if f.Status == models.Unchanged {
		return fmt.Sprintf("%s: %s", f.Label, statusText[f.Status])
	}
	delta := f.Delta.Round(models.FlowDecimals)
	sign := ""
	if !delta.IsNegative() {
		sign = "+"
	}
	return fmt.Sprintf("%s: %s %s (%s%s)",
		f.Label, statusText[f.Status],
		f.Value.StringFixed(models.FlowDecimals),
		sign, delta.StringFixed(models.FlowDecimals),
	)
}
