package collector

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/ipocast/internal/contracts"
)

// Repository IPO 레코드 저장소
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const upsertQuery = `
	INSERT INTO ipo.listings
		(code, company_name, listing_date,
		 price_lower, price_upper, price_confirmed, shares_offered,
		 paid_in_capital, estimated_market_cap,
		 institutional_demand_rate, subscription_competition_rate, lockup_ratio,
		 allocation_equal_pct, allocation_proportional_pct,
		 listing_method, industry, theme, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())
	ON CONFLICT (code, listing_date) DO UPDATE SET
		company_name = EXCLUDED.company_name,
		price_lower = EXCLUDED.price_lower,
		price_upper = EXCLUDED.price_upper,
		price_confirmed = EXCLUDED.price_confirmed,
		shares_offered = EXCLUDED.shares_offered,
		paid_in_capital = EXCLUDED.paid_in_capital,
		estimated_market_cap = EXCLUDED.estimated_market_cap,
		institutional_demand_rate = EXCLUDED.institutional_demand_rate,
		subscription_competition_rate = EXCLUDED.subscription_competition_rate,
		lockup_ratio = EXCLUDED.lockup_ratio,
		allocation_equal_pct = EXCLUDED.allocation_equal_pct,
		allocation_proportional_pct = EXCLUDED.allocation_proportional_pct,
		listing_method = EXCLUDED.listing_method,
		industry = EXCLUDED.industry,
		theme = EXCLUDED.theme,
		updated_at = now()`

// SaveRecords 레코드 일괄 저장. 관측 결과(day0/day1) 컬럼은 건드리지 않는다.
func (r *Repository) SaveRecords(ctx context.Context, records []contracts.RawIPORecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertQuery,
			rec.Code, rec.CompanyName, rec.ListingDate,
			rec.PriceLower, rec.PriceUpper, rec.PriceConfirmed, rec.SharesOffered,
			rec.PaidInCapital, rec.EstimatedMarketCap,
			rec.InstitutionalDemandRate, rec.SubscriptionCompetitionRate, rec.LockupRatio,
			rec.AllocationEqualPct, rec.AllocationProportionalPct,
			rec.ListingMethod, rec.Industry, rec.Theme,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// SaveOutcome 상장일 거래 결과 저장
func (r *Repository) SaveOutcome(ctx context.Context, code string, listingDate time.Time, o *Outcome) error {
	query := `
		UPDATE ipo.listings SET
			day0_high = $3, day0_close = $4, day1_close = $5,
			day0_volume = $6, day0_trading_value = $7,
			day1_volume = $8, day1_trading_value = $9,
			day0_turnover_rate = $10, day1_turnover_rate = $11,
			day0_volatility = $12,
			updated_at = now()
		WHERE code = $1 AND listing_date = $2`

	_, err := r.pool.Exec(ctx, query, code, listingDate,
		o.Day0High, o.Day0Close, o.Day1Close,
		o.Trade.Day0Volume, o.Trade.Day0TradingValue,
		o.Trade.Day1Volume, o.Trade.Day1TradingValue,
		o.Trade.Day0TurnoverRate, o.Trade.Day1TurnoverRate,
		o.Trade.Day0Volatility,
	)
	return err
}

const recordColumns = `
	code, company_name, listing_date,
	price_lower, price_upper, price_confirmed, shares_offered,
	paid_in_capital, estimated_market_cap,
	institutional_demand_rate, subscription_competition_rate, lockup_ratio,
	allocation_equal_pct, allocation_proportional_pct,
	listing_method, industry, theme,
	day0_high, day0_close, day1_close,
	day0_volume, day0_trading_value, day1_volume, day1_trading_value,
	day0_turnover_rate, day1_turnover_rate, day0_volatility`

// ListAll 전체 레코드 조회. 아티팩트 출력 순서와 동일하게
// 상장일 내림차순, 코드 오름차순으로 정렬한다.
func (r *Repository) ListAll(ctx context.Context) ([]contracts.RawIPORecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM ipo.listings
		ORDER BY listing_date DESC, code ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListPendingOutcomes 상장일이 지났는데 거래 결과가 비어 있는 레코드 조회
func (r *Repository) ListPendingOutcomes(ctx context.Context, asOf time.Time) ([]contracts.RawIPORecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM ipo.listings
		WHERE listing_date < $1
		  AND (day0_high IS NULL OR day0_close IS NULL OR day1_close IS NULL)
		ORDER BY listing_date ASC, code ASC`

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]contracts.RawIPORecord, error) {
	var records []contracts.RawIPORecord
	for rows.Next() {
		var rec contracts.RawIPORecord
		var d0Vol, d0Val, d1Vol, d1Val, d0Turn, d1Turn, d0Volat *float64

		if err := rows.Scan(
			&rec.Code, &rec.CompanyName, &rec.ListingDate,
			&rec.PriceLower, &rec.PriceUpper, &rec.PriceConfirmed, &rec.SharesOffered,
			&rec.PaidInCapital, &rec.EstimatedMarketCap,
			&rec.InstitutionalDemandRate, &rec.SubscriptionCompetitionRate, &rec.LockupRatio,
			&rec.AllocationEqualPct, &rec.AllocationProportionalPct,
			&rec.ListingMethod, &rec.Industry, &rec.Theme,
			&rec.Day0High, &rec.Day0Close, &rec.Day1Close,
			&d0Vol, &d0Val, &d1Vol, &d1Val,
			&d0Turn, &d1Turn, &d0Volat,
		); err != nil {
			return nil, err
		}

		// 거래 지표는 전부 있거나 전부 없는 그룹으로 취급
		if d0Vol != nil {
			rec.Trade = &contracts.TradeMetrics{
				Day0Volume:       *d0Vol,
				Day0TradingValue: deref(d0Val),
				Day1Volume:       deref(d1Vol),
				Day1TradingValue: deref(d1Val),
				Day0TurnoverRate: deref(d0Turn),
				Day1TurnoverRate: deref(d1Turn),
				Day0Volatility:   deref(d0Volat),
			}
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Count 저장된 레코드 수
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM ipo.listings`).Scan(&n)
	return n, err
}
