package contracts

// PredictionArtifact is the static JSON document consumed by the dashboard.
// 필드 이름과 구조는 프론트엔드 계약이므로 함부로 바꾸지 않는다.
type PredictionArtifact struct {
	Metadata ArtifactMetadata `json:"metadata"`
	IPOs     []IPOPrediction  `json:"ipos"`
}

// ArtifactMetadata describes the run that produced the artifact.
type ArtifactMetadata struct {
	GeneratedAt  string    `json:"generated_at"` // ISO-8601
	ModelVersion string    `json:"model_version"`
	TotalIPOs    int       `json:"total_ipos"`
	DateRange    DateRange `json:"date_range"`
	FeaturesUsed []string  `json:"features_used"`
	ModelType    string    `json:"model_type"`
}

// DateRange is the listing-date span covered by the artifact.
type DateRange struct {
	Start string `json:"start"` // YYYY-MM-DD
	End   string `json:"end"`
}

// IPOPrediction is one listing's entry in the artifact. Actual/error
// fields are emitted only when all three trade outcomes are observed;
// the dashboard treats missing fields as undefined.
type IPOPrediction struct {
	ID          int    `json:"id"`
	CompanyName string `json:"company_name"`
	Code        string `json:"code"`
	ListingDate string `json:"listing_date"`
	Industry    string `json:"industry"`
	Theme       string `json:"theme"`

	IPOPriceLower     int64 `json:"ipo_price_lower"`
	IPOPriceUpper     int64 `json:"ipo_price_upper"`
	IPOPriceConfirmed int64 `json:"ipo_price_confirmed"`
	SharesOffered     int64 `json:"shares_offered"`

	InstitutionalDemandRate     float64 `json:"institutional_demand_rate"`
	SubscriptionCompetitionRate float64 `json:"subscription_competition_rate"`
	LockupRatio                 float64 `json:"lockup_ratio"`

	// Predictions (KRW, rounded once at assembly)
	PredictedDay0High  int64 `json:"predicted_day0_high"`
	PredictedDay0Close int64 `json:"predicted_day0_close"`
	PredictedDay1Close int64 `json:"predicted_day1_close"`

	// Predicted returns relative to the confirmed offer price (percent)
	PredictedDay0HighReturn  float64 `json:"predicted_day0_high_return"`
	PredictedDay0CloseReturn float64 `json:"predicted_day0_close_return"`
	PredictedDay1CloseReturn float64 `json:"predicted_day1_close_return"`

	// Ground truth, present only when the trading days have elapsed
	ActualDay0High  *int64 `json:"actual_day0_high,omitempty"`
	ActualDay0Close *int64 `json:"actual_day0_close,omitempty"`
	ActualDay1Close *int64 `json:"actual_day1_close,omitempty"`

	ActualDay0HighReturn  *float64 `json:"actual_day0_high_return,omitempty"`
	ActualDay0CloseReturn *float64 `json:"actual_day0_close_return,omitempty"`
	ActualDay1CloseReturn *float64 `json:"actual_day1_close_return,omitempty"`

	ErrorDay0Close    *float64 `json:"error_day0_close,omitempty"`
	ErrorPctDay0Close *float64 `json:"error_pct_day0_close,omitempty"`
}
