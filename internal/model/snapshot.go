package model

// GrowthDirection is the sign of the revenue comparison.
type GrowthDirection string

const (
	DirectionNone    GrowthDirection = ""
	DirectionGrowth  GrowthDirection = "growth"
	DirectionDecline GrowthDirection = "decline"
)

// RangeSource records where the 52-week range came from.
type RangeSource string

const (
	RangeSourceNone     RangeSource = ""
	RangeSourceProvider RangeSource = "provider"
	RangeSourceHistory  RangeSource = "history"
)

// StockSnapshot is the normalized per-ticker record.
//
// Ratios (ProfitMargin, ROA, ROE, DividendYield, RevenueGrowth, EarningsGrowth)
// are fractions: 0.23 means 23%. RevenueGrowthPct is the only field already
// expressed in percent.
type StockSnapshot struct {
	Ticker             TickerSymbol    `json:"ticker"`
	Name               string          `json:"name,omitempty"`
	MarketCapBillions  *float64        `json:"market_cap_billions"`
	ProfitMargin       *float64        `json:"profit_margin"`
	ROA                *float64        `json:"roa"`
	ROE                *float64        `json:"roe"`
	PERatio            *float64        `json:"pe_ratio"`
	PEGRatio           *float64        `json:"peg_ratio"`
	Beta               *float64        `json:"beta"`
	DividendYield      *float64        `json:"dividend_yield"`
	TrailingEPS        *float64        `json:"trailing_eps"`
	ForwardEPS         *float64        `json:"forward_eps"`
	CurrentPrice       *float64        `json:"current_price"`
	Week52Low          *float64        `json:"week52_low"`
	Week52High         *float64        `json:"week52_high"`
	Week52Source       RangeSource     `json:"week52_source,omitempty"`
	Week52RangeDisplay string          `json:"week52_range_display"`
	RevenueGrowth      *float64        `json:"revenue_growth"`
	EarningsGrowth     *float64        `json:"earnings_growth"`
	PreviousRevenue    *float64        `json:"previous_revenue"`
	CurrentRevenue     *float64        `json:"current_revenue"`
	RevenueGrowthPct   *float64        `json:"revenue_growth_pct"`
	GrowthDirection    GrowthDirection `json:"growth_direction,omitempty"`
}
