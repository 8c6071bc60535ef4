package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/httputil"
	"github.com/wonny/ipocast/pkg/logger"
	"github.com/wonny/ipocast/pkg/redis"
)

// KISClient handles communication with KIS (한국투자증권) API
// ⭐ SSOT: KIS API 호출은 이 클라이언트에서만
type KISClient struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger
	cfg        config.KISConfig

	// Token management
	accessToken string
	tokenExpiry time.Time
	tokenMu     sync.RWMutex
}

// NewKISClient creates a new KIS API client. The HTTP client should carry
// the configured rate limit; KIS throttles aggressively.
func NewKISClient(cfg config.KISConfig, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *KISClient {
	return &KISClient{
		httpClient: httpClient,
		cache:      cache,
		logger:     log.WithComponent("collector.kis"),
		cfg:        cfg,
	}
}

// tokenResponse represents the OAuth token response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// getToken gets a valid access token, refreshing if necessary
func (c *KISClient) getToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	// Double-check after acquiring write lock
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	url := fmt.Sprintf("%s/oauth2/tokenP", c.cfg.BaseURL)
	body := fmt.Sprintf(`{"grant_type":"client_credentials","appkey":"%s","appsecret":"%s"}`,
		c.cfg.AppKey, c.cfg.AppSecret)

	resp, err := c.httpClient.Post(ctx, url, "application/json", strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second) // 1분 여유

	c.logger.WithFields(map[string]interface{}{
		"expires_in": tokenResp.ExpiresIn,
	}).Info("KIS access token refreshed")

	return c.accessToken, nil
}

// request makes an authenticated request to KIS API
func (c *KISClient) request(ctx context.Context, method, path string, trID string, body io.Reader) (*http.Response, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	url := fmt.Sprintf("%s%s", c.cfg.BaseURL, path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("appkey", c.cfg.AppKey)
	req.Header.Set("appsecret", c.cfg.AppSecret)
	req.Header.Set("tr_id", trID)

	return c.httpClient.Do(req)
}

// DailyPrice represents one trading day of a stock from KIS
type DailyPrice struct {
	TradeDate  string  `json:"stck_bsop_date"`
	OpenPrice  float64 `json:"stck_oprc,string"`
	HighPrice  float64 `json:"stck_hgpr,string"`
	LowPrice   float64 `json:"stck_lwpr,string"`
	ClosePrice float64 `json:"stck_clpr,string"`
	Volume     float64 `json:"acml_vol,string"`
	TradingVal float64 `json:"acml_tr_pbmn,string"`
}

// FetchDailyPrices gets recent daily prices for a stock, oldest first.
// 응답은 redis에 하루 캐시된다 (일봉은 당일 외 불변).
func (c *KISClient) FetchDailyPrices(ctx context.Context, stockCode string) ([]DailyPrice, error) {
	cacheKey := fmt.Sprintf("kis:daily:%s:%s", stockCode, time.Now().Format("20060102"))

	var cached []DailyPrice
	if hit, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	path := "/uapi/domestic-stock/v1/quotations/inquire-daily-price"
	trID := "FHKST01010400" // 국내주식 일별 시세

	params := fmt.Sprintf("?fid_cond_mrkt_div_code=J&fid_input_iscd=%s&fid_period_div_code=D&fid_org_adj_prc=0",
		stockCode)

	resp, err := c.request(ctx, http.MethodGet, path+params, trID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Output []DailyPrice `json:"output"`
		RtCd   string       `json:"rt_cd"`
		MsgCd  string       `json:"msg_cd"`
		Msg1   string       `json:"msg1"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if result.RtCd != "0" {
		return nil, fmt.Errorf("API error: %s - %s", result.MsgCd, result.Msg1)
	}

	prices := result.Output
	sort.Slice(prices, func(i, j int) bool { return prices[i].TradeDate < prices[j].TradeDate })

	if err := c.cache.Set(ctx, cacheKey, prices, 24*time.Hour); err != nil {
		c.logger.WithError(err).Warn("Failed to cache daily prices")
	}

	return prices, nil
}

// Outcome is the observed trade result of a listing: the three target
// prices plus the secondary trade indicators.
type Outcome struct {
	Day0High  float64
	Day0Close float64
	Day1Close float64
	Trade     contracts.TradeMetrics
}

// ErrOutcomeNotReady is returned when the listing day (or the following
// trading day) has not produced data yet.
var ErrOutcomeNotReady = fmt.Errorf("trade outcome not available yet")

// FetchOutcome assembles the listing-day outcome for a stock. day1 is the
// first trading day after the listing date, not the calendar day.
func (c *KISClient) FetchOutcome(ctx context.Context, stockCode string, listingDate time.Time, sharesOffered int64) (*Outcome, error) {
	prices, err := c.FetchDailyPrices(ctx, stockCode)
	if err != nil {
		return nil, err
	}

	day0Key := listingDate.Format("20060102")
	day0Idx := -1
	for i := range prices {
		if prices[i].TradeDate == day0Key {
			day0Idx = i
			break
		}
	}
	if day0Idx < 0 || day0Idx+1 >= len(prices) {
		return nil, fmt.Errorf("%w: %s listed %s", ErrOutcomeNotReady, stockCode, day0Key)
	}

	day0 := prices[day0Idx]
	day1 := prices[day0Idx+1]

	o := &Outcome{
		Day0High:  day0.HighPrice,
		Day0Close: day0.ClosePrice,
		Day1Close: day1.ClosePrice,
		Trade: contracts.TradeMetrics{
			Day0Volume:       day0.Volume,
			Day0TradingValue: day0.TradingVal,
			Day1Volume:       day1.Volume,
			Day1TradingValue: day1.TradingVal,
		},
	}

	if sharesOffered > 0 {
		o.Trade.Day0TurnoverRate = day0.Volume / float64(sharesOffered) * 100
		o.Trade.Day1TurnoverRate = day1.Volume / float64(sharesOffered) * 100
	}
	if day0.OpenPrice > 0 {
		o.Trade.Day0Volatility = (day0.HighPrice - day0.LowPrice) / day0.OpenPrice * 100
	}

	c.logger.WithFields(map[string]interface{}{
		"code":       stockCode,
		"day0":       day0.TradeDate,
		"day1":       day1.TradeDate,
		"day0_close": day0.ClosePrice,
	}).Debug("Fetched listing outcome")

	return o, nil
}
