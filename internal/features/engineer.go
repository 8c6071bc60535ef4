package features

import (
	"math"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

// Categorical columns with open vocabularies.
const (
	colListingMethod = "listing_method"
	colIndustry      = "industry"
	colTheme         = "theme"
)

// canonicalFeatureNames is the fixed feature order. 학습에 쓴 순서와
// 추론에 쓰는 순서가 한 글자라도 다르면 모델이 조용히 망가진다.
var canonicalFeatureNames = []string{
	"ipo_price_confirmed",
	"shares_offered",
	"institutional_demand_rate",
	"lockup_ratio",
	"subscription_competition_rate",
	"market_cap_ratio",
	"total_offering_value",
	"ipo_price_range_pct",
	"price_positioning",
	"demand_to_lockup_ratio",
	"allocation_balance",
	"high_competition",
	"high_demand",
	"listing_month",
	"listing_quarter",
	"listing_day_of_week",
	"listing_method_encoded",
	"industry_encoded",
	"theme_encoded",
	"day0_volume",
	"day0_trading_value",
	"day1_volume",
	"day1_trading_value",
	"day0_turnover_rate",
	"day1_turnover_rate",
	"day0_volatility",
}

// Engineer derives the fixed-width feature vector from raw IPO records
// and owns the fitted categorical/scaling state.
// ⭐ SSOT: 피처 파생 로직은 여기서만
type Engineer struct {
	cfg    config.ModelSettings
	logger *logger.Logger

	encoder      *CategoryEncoder
	scaler       *Scaler
	featureNames []string
	fitted       bool
}

// NewEngineer creates an unfitted feature engineer.
func NewEngineer(cfg config.ModelSettings, log *logger.Logger) *Engineer {
	return &Engineer{
		cfg:    cfg,
		logger: log.WithComponent("features.engineer"),
	}
}

// Fitted reports whether encoder/scaler state is available.
func (e *Engineer) Fitted() bool {
	return e.fitted
}

// FeatureNames returns the ordered feature-name list.
func (e *Engineer) FeatureNames() []string {
	if e.fitted {
		return append([]string(nil), e.featureNames...)
	}
	return append([]string(nil), canonicalFeatureNames...)
}

// FitTransform fits the encoder and scaler on the training-eligible subset
// of records (those with all three trade outcomes observed) and returns the
// scaled feature matrix, the raw target matrix and the identity of each
// included row. Records missing targets are excluded, never an error;
// an empty eligible set is.
func (e *Engineer) FitTransform(records []contracts.RawIPORecord) (*contracts.FeatureMatrix, contracts.TargetMatrix, []contracts.RecordRef, error) {
	if len(records) == 0 {
		return nil, nil, nil, ErrNoTrainingRecords
	}

	eligible := make([]contracts.RawIPORecord, 0, len(records))
	for _, r := range records {
		if r.HasAllTargets() {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return nil, nil, nil, ErrNoTrainingRecords
	}

	if skipped := len(records) - len(eligible); skipped > 0 {
		e.logger.WithFields(map[string]interface{}{
			"total":    len(records),
			"eligible": len(eligible),
			"skipped":  skipped,
		}).Info("Excluded records without full trade outcomes from training")
	}

	// Fit categorical codes on the eligible corpus only
	encoder := NewCategoryEncoder()
	methods := make([]string, len(eligible))
	industries := make([]string, len(eligible))
	themes := make([]string, len(eligible))
	for i, r := range eligible {
		methods[i] = r.ListingMethod
		industries[i] = r.Industry
		themes[i] = r.Theme
	}
	encoder.Fit(colListingMethod, methods)
	encoder.Fit(colIndustry, industries)
	encoder.Fit(colTheme, themes)

	e.encoder = encoder
	e.featureNames = append([]string(nil), canonicalFeatureNames...)

	// Derive raw rows, then fit the scaler on them
	rows := make([][]float64, len(eligible))
	warned := make(map[string]struct{})
	for i, r := range eligible {
		rows[i] = e.derive(&r, warned)
	}

	e.scaler = FitScaler(rows)
	e.fitted = true

	for _, row := range rows {
		e.scaler.Apply(row)
	}

	targets := contracts.TargetMatrix{}
	for _, name := range contracts.TargetNames() {
		vals := make([]float64, len(eligible))
		for i, r := range eligible {
			v, _ := r.Target(name)
			vals[i] = v
		}
		targets[name] = vals
	}

	refs := make([]contracts.RecordRef, len(eligible))
	for i, r := range eligible {
		refs[i] = r.Ref()
	}

	e.logger.WithFields(map[string]interface{}{
		"rows":     len(rows),
		"features": len(e.featureNames),
	}).Info("Fitted feature transformers")

	return &contracts.FeatureMatrix{Names: e.FeatureNames(), Rows: rows}, targets, refs, nil
}

// Transform applies the fitted derivation, encoding and scaling to records.
// Records lacking trade outcomes are accepted; unknown category values map
// to the reserved unknown code.
func (e *Engineer) Transform(records []contracts.RawIPORecord) (*contracts.FeatureMatrix, error) {
	if !e.fitted {
		return nil, ErrNotFitted
	}

	rows := make([][]float64, len(records))
	warned := make(map[string]struct{})
	for i, r := range records {
		row := e.derive(&r, warned)
		e.scaler.Apply(row)
		rows[i] = row
	}

	return &contracts.FeatureMatrix{Names: e.FeatureNames(), Rows: rows}, nil
}

// derive builds the unscaled feature row for one record. warned dedupes
// unknown-category log lines per call so one new theme does not flood the
// log across a multi-hundred-record batch.
func (e *Engineer) derive(r *contracts.RawIPORecord, warned map[string]struct{}) []float64 {
	priceLower := e.sanitize(r.Code, "ipo_price_lower", r.PriceLower, warned)
	priceUpper := e.sanitize(r.Code, "ipo_price_upper", r.PriceUpper, warned)
	priceConfirmed := e.sanitize(r.Code, "ipo_price_confirmed", r.PriceConfirmed, warned)
	demandRate := e.sanitize(r.Code, "institutional_demand_rate", r.InstitutionalDemandRate, warned)
	lockup := e.sanitize(r.Code, "lockup_ratio", r.LockupRatio, warned)
	competition := e.sanitize(r.Code, "subscription_competition_rate", r.SubscriptionCompetitionRate, warned)
	paidIn := e.sanitize(r.Code, "paid_in_capital", r.PaidInCapital, warned)
	marketCap := e.sanitize(r.Code, "estimated_market_cap", r.EstimatedMarketCap, warned)
	allocEqual := e.sanitize(r.Code, "allocation_ratio_equal", r.AllocationEqualPct, warned)
	allocProp := e.sanitize(r.Code, "allocation_ratio_proportional", r.AllocationProportionalPct, warned)
	shares := float64(r.SharesOffered)

	priceRange := priceUpper - priceLower

	rangePct := 0.0
	if priceLower != 0 {
		rangePct = priceRange / priceLower
	}

	// 확정가가 밴드 어디에 박혔는지. 밴드 폭이 0이면 중앙으로 본다.
	positioning := 0.5
	if priceRange != 0 {
		positioning = (priceConfirmed - priceLower) / priceRange
		if positioning < 0 {
			positioning = 0
		} else if positioning > 1 {
			positioning = 1
		}
	}

	marketCapRatio := 0.0
	if paidIn != 0 {
		marketCapRatio = marketCap / paidIn
	}

	demandToLockup := 0.0
	if lockup != 0 {
		demandToLockup = demandRate / lockup
	}

	highCompetition := 0.0
	if competition > e.cfg.HighCompetitionThreshold {
		highCompetition = 1
	}
	highDemand := 0.0
	if demandRate > e.cfg.HighDemandThreshold {
		highDemand = 1
	}

	month := float64(r.ListingDate.Month())
	quarter := float64((int(r.ListingDate.Month())-1)/3 + 1)
	// 월요일=0 (학습/추론 양쪽에서 같은 규약만 지키면 된다)
	dayOfWeek := float64((int(r.ListingDate.Weekday()) + 6) % 7)

	methodCode := e.encode(r.Code, colListingMethod, r.ListingMethod, warned)
	industryCode := e.encode(r.Code, colIndustry, r.Industry, warned)
	themeCode := e.encode(r.Code, colTheme, r.Theme, warned)

	trade := r.Trade
	if trade == nil {
		trade = &contracts.TradeMetrics{}
	}

	return []float64{
		priceConfirmed,
		shares,
		demandRate,
		lockup,
		competition,
		marketCapRatio,
		shares * priceConfirmed,
		rangePct,
		positioning,
		demandToLockup,
		math.Abs(allocEqual - allocProp),
		highCompetition,
		highDemand,
		month,
		quarter,
		dayOfWeek,
		methodCode,
		industryCode,
		themeCode,
		e.sanitize(r.Code, "day0_volume", trade.Day0Volume, warned),
		e.sanitize(r.Code, "day0_trading_value", trade.Day0TradingValue, warned),
		e.sanitize(r.Code, "day1_volume", trade.Day1Volume, warned),
		e.sanitize(r.Code, "day1_trading_value", trade.Day1TradingValue, warned),
		e.sanitize(r.Code, "day0_turnover_rate", trade.Day0TurnoverRate, warned),
		e.sanitize(r.Code, "day1_turnover_rate", trade.Day1TurnoverRate, warned),
		e.sanitize(r.Code, "day0_volatility", trade.Day0Volatility, warned),
	}
}

// encode looks up a categorical code, substituting the reserved unknown
// code for values never seen at fit time. Logged once per unique value.
func (e *Engineer) encode(recordCode, column, value string, warned map[string]struct{}) float64 {
	code, known := e.encoder.Encode(column, value)
	if !known {
		key := column + "=" + value
		if _, dup := warned[key]; !dup {
			warned[key] = struct{}{}
			e.logger.WithFields(map[string]interface{}{
				"code":   recordCode,
				"column": column,
				"value":  value,
			}).Warn("Unknown category value, using reserved code")
		}
	}
	return float64(code)
}

// sanitize defaults malformed numerics to 0 so one bad upstream field
// cannot abort a batch. Logged once per field name.
func (e *Engineer) sanitize(recordCode, field string, v float64, warned map[string]struct{}) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if _, dup := warned["malformed:"+field]; !dup {
			warned["malformed:"+field] = struct{}{}
			e.logger.WithFields(map[string]interface{}{
				"code":  recordCode,
				"field": field,
			}).Warn("Malformed numeric field, defaulting to 0")
		}
		return 0
	}
	return v
}
