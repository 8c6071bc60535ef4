package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/pkg/logger"
)

// Collector runs the two collection passes: offering terms from the
// scraper and trade outcomes from KIS.
type Collector struct {
	scraper *Scraper
	kis     *KISClient
	repo    *Repository
	logger  *logger.Logger

	indexPages int
}

// New creates a collector over the scraper, KIS client and repository.
func New(scraper *Scraper, kis *KISClient, repo *Repository, log *logger.Logger) *Collector {
	return &Collector{
		scraper:    scraper,
		kis:        kis,
		repo:       repo,
		logger:     log.WithComponent("collector"),
		indexPages: 3,
	}
}

// CollectListings scrapes the offering schedule and upserts the records.
// 이미 저장된 레코드는 공모 조건만 갱신되고 관측 결과는 유지된다.
func (c *Collector) CollectListings(ctx context.Context) (int, error) {
	records, err := c.scraper.FetchListings(ctx, c.indexPages)
	if err != nil {
		return 0, fmt.Errorf("scrape listings: %w", err)
	}

	valid := records[:0]
	for _, r := range records {
		if r.Code == "" || r.ListingDate.IsZero() {
			c.logger.WithField("company", r.CompanyName).Warn("Dropping record without code or listing date")
			continue
		}
		valid = append(valid, r)
	}

	if err := c.repo.SaveRecords(ctx, valid); err != nil {
		return 0, fmt.Errorf("save records: %w", err)
	}

	c.logger.WithField("count", len(valid)).Info("Collected listings")
	return len(valid), nil
}

// CollectOutcomes fetches trade outcomes for listings whose trading days
// have elapsed but whose targets are still missing. A listing whose
// second trading day has not closed yet is left pending, not an error.
func (c *Collector) CollectOutcomes(ctx context.Context, asOf time.Time) (int, error) {
	pending, err := c.repo.ListPendingOutcomes(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("list pending outcomes: %w", err)
	}

	updated := 0
	for i := range pending {
		rec := &pending[i]

		outcome, err := c.kis.FetchOutcome(ctx, rec.PaddedCode(), rec.ListingDate, rec.SharesOffered)
		if err != nil {
			if errors.Is(err, ErrOutcomeNotReady) {
				continue
			}
			c.logger.WithFields(map[string]interface{}{
				"code":  rec.Code,
				"error": err.Error(),
			}).Warn("Failed to fetch outcome")
			continue
		}

		if err := c.repo.SaveOutcome(ctx, rec.Code, rec.ListingDate, outcome); err != nil {
			return updated, fmt.Errorf("save outcome for %s: %w", rec.Code, err)
		}
		updated++
	}

	c.logger.WithFields(map[string]interface{}{
		"pending": len(pending),
		"updated": updated,
	}).Info("Collected trade outcomes")
	return updated, nil
}

// LoadRecords returns the full record set in artifact order.
func (c *Collector) LoadRecords(ctx context.Context) ([]contracts.RawIPORecord, error) {
	return c.repo.ListAll(ctx)
}
