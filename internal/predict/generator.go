package predict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/internal/features"
	"github.com/wonny/ipocast/internal/model"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

// Generator orchestrates feature transform + ensemble predict over the
// full record set and assembles the dashboard artifact.
// ⭐ SSOT: 아티팩트 조립과 기록은 여기서만
type Generator struct {
	engineer *features.Engineer
	ensemble *model.Ensemble
	cfg      config.ModelSettings
	logger   *logger.Logger
	now      func() time.Time
}

// NewGenerator creates a generator over fitted transformer and model
// state.
func NewGenerator(engineer *features.Engineer, ensemble *model.Ensemble, cfg config.ModelSettings, log *logger.Logger) *Generator {
	return &Generator{
		engineer: engineer,
		ensemble: ensemble,
		cfg:      cfg,
		logger:   log.WithComponent("predict.generator"),
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source. 테스트용.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the artifact for every non-SPAC record, with or without
// observed trade outcomes. A record lacking outcomes simply omits the
// actual/error fields; it never fails the batch.
func (g *Generator) Generate(records []contracts.RawIPORecord) (*contracts.PredictionArtifact, error) {
	kept := make([]contracts.RawIPORecord, 0, len(records))
	for _, r := range records {
		if r.IsSPAC() {
			continue
		}
		kept = append(kept, r)
	}
	if skipped := len(records) - len(kept); skipped > 0 {
		g.logger.WithField("count", skipped).Info("Filtered SPAC listings from artifact")
	}

	matrix, err := g.engineer.Transform(kept)
	if err != nil {
		return nil, fmt.Errorf("feature transform: %w", err)
	}

	preds, err := g.ensemble.Predict(matrix)
	if err != nil {
		return nil, fmt.Errorf("ensemble predict: %w", err)
	}

	ipos := make([]contracts.IPOPrediction, len(kept))
	for i := range kept {
		ipos[i] = g.assemble(&kept[i], i,
			preds[contracts.TargetDay0High][i],
			preds[contracts.TargetDay0Close][i],
			preds[contracts.TargetDay1Close][i],
		)
	}

	artifact := &contracts.PredictionArtifact{
		Metadata: contracts.ArtifactMetadata{
			GeneratedAt:  g.now().Format(time.RFC3339),
			ModelVersion: g.cfg.Version,
			TotalIPOs:    len(ipos),
			DateRange:    dateRange(kept),
			FeaturesUsed: g.engineer.FeatureNames(),
			ModelType:    g.cfg.Type,
		},
		IPOs: ipos,
	}

	g.logger.WithFields(map[string]interface{}{
		"total":    len(ipos),
		"features": len(artifact.Metadata.FeaturesUsed),
	}).Info("Assembled prediction artifact")

	return artifact, nil
}

// assemble builds one artifact entry. Price rounding to whole KRW happens
// here and nowhere else.
func (g *Generator) assemble(r *contracts.RawIPORecord, id int, rawHigh, rawClose0, rawClose1 float64) contracts.IPOPrediction {
	predHigh := roundPrice(rawHigh)
	predClose0 := roundPrice(rawClose0)
	predClose1 := roundPrice(rawClose1)

	confirmed := r.PriceConfirmed

	p := contracts.IPOPrediction{
		ID:          id,
		CompanyName: r.CompanyName,
		Code:        r.PaddedCode(),
		ListingDate: r.ListingDate.Format("2006-01-02"),
		Industry:    r.Industry,
		Theme:       r.Theme,

		IPOPriceLower:     int64(r.PriceLower),
		IPOPriceUpper:     int64(r.PriceUpper),
		IPOPriceConfirmed: int64(confirmed),
		SharesOffered:     r.SharesOffered,

		InstitutionalDemandRate:     r.InstitutionalDemandRate,
		SubscriptionCompetitionRate: r.SubscriptionCompetitionRate,
		LockupRatio:                 r.LockupRatio,

		PredictedDay0High:  predHigh,
		PredictedDay0Close: predClose0,
		PredictedDay1Close: predClose1,

		PredictedDay0HighReturn:  returnPct(float64(predHigh), confirmed),
		PredictedDay0CloseReturn: returnPct(float64(predClose0), confirmed),
		PredictedDay1CloseReturn: returnPct(float64(predClose1), confirmed),
	}

	// 세 결과가 전부 관측된 레코드만 실제값/오차 필드를 받는다
	if r.HasAllTargets() {
		actualHigh := roundPrice(*r.Day0High)
		actualClose0 := roundPrice(*r.Day0Close)
		actualClose1 := roundPrice(*r.Day1Close)

		p.ActualDay0High = &actualHigh
		p.ActualDay0Close = &actualClose0
		p.ActualDay1Close = &actualClose1

		p.ActualDay0HighReturn = ptr(returnPct(float64(actualHigh), confirmed))
		p.ActualDay0CloseReturn = ptr(returnPct(float64(actualClose0), confirmed))
		p.ActualDay1CloseReturn = ptr(returnPct(float64(actualClose1), confirmed))

		p.ErrorDay0Close = ptr(float64(predClose0 - actualClose0))
		if actualClose0 != 0 {
			p.ErrorPctDay0Close = ptr(round2(float64(predClose0-actualClose0) / float64(actualClose0) * 100))
		}
	}

	return p
}

// Write persists the artifact as one atomic operation: full temp file,
// then rename. Readers never observe a partial document.
func (g *Generator) Write(artifact *contracts.PredictionArtifact, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // 한글 그대로 내보낸다
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace artifact: %w", err)
	}

	g.logger.WithFields(map[string]interface{}{
		"path":  path,
		"bytes": buf.Len(),
	}).Info("Wrote prediction artifact")
	return nil
}

// roundPrice rounds a raw model output to whole KRW, half to even.
func roundPrice(v float64) int64 {
	return int64(math.RoundToEven(v))
}

// returnPct is the percent return of price over the confirmed offer price,
// rounded to two decimals. 공모가가 0이면 0.
func returnPct(price, confirmed float64) float64 {
	if confirmed == 0 {
		return 0
	}
	return round2((price - confirmed) / confirmed * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 { return &v }

// dateRange finds the min/max listing dates in the emitted set.
func dateRange(records []contracts.RawIPORecord) contracts.DateRange {
	if len(records) == 0 {
		return contracts.DateRange{}
	}

	min, max := records[0].ListingDate, records[0].ListingDate
	for _, r := range records[1:] {
		if r.ListingDate.Before(min) {
			min = r.ListingDate
		}
		if r.ListingDate.After(max) {
			max = r.ListingDate
		}
	}
	return contracts.DateRange{
		Start: min.Format("2006-01-02"),
		End:   max.Format("2006-01-02"),
	}
}
