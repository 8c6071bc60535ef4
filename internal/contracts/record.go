package contracts

import (
	"strings"
	"time"
)

// Prediction target names. 모델 아티팩트와 타깃 행렬의 키로 사용.
const (
	TargetDay0High  = "day0_high"
	TargetDay0Close = "day0_close"
	TargetDay1Close = "day1_close"
)

// TargetNames returns the three prediction targets in canonical order.
func TargetNames() []string {
	return []string{TargetDay0High, TargetDay0Close, TargetDay1Close}
}

// TradeMetrics holds the secondary KIS daily indicators for a listing.
// All-or-nothing group: 수집되면 전부, 아니면 nil (결측은 0으로 처리).
type TradeMetrics struct {
	Day0Volume       float64 `json:"day0_volume"`
	Day0TradingValue float64 `json:"day0_trading_value"`
	Day1Volume       float64 `json:"day1_volume"`
	Day1TradingValue float64 `json:"day1_trading_value"`
	Day0TurnoverRate float64 `json:"day0_turnover_rate"`
	Day1TurnoverRate float64 `json:"day1_turnover_rate"`
	Day0Volatility   float64 `json:"day0_volatility"`
}

// RawIPORecord is one collected listing. Immutable after collection;
// the feature pipeline consumes it read-only.
type RawIPORecord struct {
	// Identity
	Code        string    `json:"code"`
	CompanyName string    `json:"company_name"`
	ListingDate time.Time `json:"listing_date"`

	// Offer terms (KRW). 밴드 위반은 검증하지 않고 그대로 통과시킨다.
	PriceLower         float64 `json:"ipo_price_lower"`
	PriceUpper         float64 `json:"ipo_price_upper"`
	PriceConfirmed     float64 `json:"ipo_price_confirmed"`
	SharesOffered      int64   `json:"shares_offered"`
	PaidInCapital      float64 `json:"paid_in_capital"`
	EstimatedMarketCap float64 `json:"estimated_market_cap"`

	// Demand signals
	InstitutionalDemandRate     float64 `json:"institutional_demand_rate"`
	SubscriptionCompetitionRate float64 `json:"subscription_competition_rate"`
	LockupRatio                 float64 `json:"lockup_ratio"`

	// Allocation split (percent)
	AllocationEqualPct        float64 `json:"allocation_ratio_equal"`
	AllocationProportionalPct float64 `json:"allocation_ratio_proportional"`

	// Categorical (open vocabulary)
	ListingMethod string `json:"listing_method"`
	Industry      string `json:"industry"`
	Theme         string `json:"theme"`

	// Trade outcomes - the prediction targets. Present only once the
	// trading day has elapsed.
	Day0High  *float64 `json:"day0_high,omitempty"`
	Day0Close *float64 `json:"day0_close,omitempty"`
	Day1Close *float64 `json:"day1_close,omitempty"`

	// Secondary trade metrics from KIS
	Trade *TradeMetrics `json:"trade_metrics,omitempty"`
}

// HasAllTargets reports whether all three prediction targets are observed.
// Training eligibility filter의 기준.
func (r *RawIPORecord) HasAllTargets() bool {
	return r.Day0High != nil && r.Day0Close != nil && r.Day1Close != nil
}

// Target returns the named target value, false if unobserved.
func (r *RawIPORecord) Target(name string) (float64, bool) {
	var p *float64
	switch name {
	case TargetDay0High:
		p = r.Day0High
	case TargetDay0Close:
		p = r.Day0Close
	case TargetDay1Close:
		p = r.Day1Close
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// IsSPAC reports whether the listing is a special purpose acquisition
// company. SPAC은 예측 대상에서 제외한다.
func (r *RawIPORecord) IsSPAC() bool {
	return strings.Contains(r.CompanyName, "기업인수목적") ||
		strings.Contains(r.Industry, "SPAC")
}

// PaddedCode returns the exchange ticker zero-padded to 6 digits.
func (r *RawIPORecord) PaddedCode() string {
	code := r.Code
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}

// RecordRef identifies a record included in a feature matrix row.
type RecordRef struct {
	Code        string    `json:"code"`
	CompanyName string    `json:"company_name"`
	ListingDate time.Time `json:"listing_date"`
}

// Ref returns the identity triple of the record.
func (r *RawIPORecord) Ref() RecordRef {
	return RecordRef{
		Code:        r.Code,
		CompanyName: r.CompanyName,
		ListingDate: r.ListingDate,
	}
}
