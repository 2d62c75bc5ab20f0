package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FundColumns  = 9
	FlowColumns  = FundColumns + 1
	TotalLabel   = "Total"
	DateLayout   = "2 Jan 2006"
	FlowDecimals = 1
)

// FlowStatus classifies a single day's flow value.
type FlowStatus string

const (
	Inflow    FlowStatus = "inflow"
	Outflow   FlowStatus = "outflow"
	Unchanged FlowStatus = "unchanged"
)

// StatusOf classifies v by sign.
func StatusOf(v decimal.Decimal) FlowStatus {
	switch v.Sign() {
	case 1:
		return Inflow
	case -1:
		return Outflow
	default:
		return Unchanged
	}
}

// FlowRow is one reporting day of the flow table: nine funds then the total.
type FlowRow struct {
	Date   time.Time         `json:"date"`
	Raw    string            `json:"raw"`
	Tokens []string          `json:"-"`
	Values []decimal.Decimal `json:"values"`
}

func (r FlowRow) DateLabel() string {
	if r.Raw != "" {
		return r.Raw
	}
	return r.Date.Format(DateLayout)
}

type FundFlow struct {
	Label  string          `json:"label"`
	Value  decimal.Decimal `json:"value"`
	Delta  decimal.Decimal `json:"delta"`
	Status FlowStatus      `json:"status"`
}

// FlowReport reconciles the two most recent populated days.
type FlowReport struct {
	MostRecent FlowRow    `json:"mostRecent"`
	Prior      FlowRow    `json:"prior"`
	Funds      []FundFlow `json:"funds"`
}

// FlowRecord is an archived FlowReport.
type FlowRecord struct {
	ID         int64           `json:"id"`
	ReportID   string          `json:"reportId"`
	RecentDate time.Time       `json:"recentDate"`
	PriorDate  time.Time       `json:"priorDate"`
	Funds      []FundFlow      `json:"funds"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"createdAt"`
}
