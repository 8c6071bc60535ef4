package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/httputil"
	"github.com/wonny/ipocast/pkg/logger"
)

// Scraper collects IPO offering terms from 38커뮤니케이션 (38.co.kr).
// ⭐ SSOT: 38.co.kr 스크레이핑은 여기서만
type Scraper struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.Scrape38Config
}

// NewScraper creates a new 38.co.kr scraper
func NewScraper(cfg config.Scrape38Config, httpClient *httputil.Client, log *logger.Logger) *Scraper {
	return &Scraper{
		httpClient: httpClient,
		logger:     log.WithComponent("collector.scrape38"),
		cfg:        cfg,
	}
}

// listingSummary is one row of the listing schedule index page.
type listingSummary struct {
	DetailNo    string
	CompanyName string
	ListingDate time.Time
}

// FetchListings fetches the listing schedule index and then each detail
// page. A single broken detail page is skipped, not fatal.
func (s *Scraper) FetchListings(ctx context.Context, pages int) ([]contracts.RawIPORecord, error) {
	var records []contracts.RawIPORecord

	for page := 1; page <= pages; page++ {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		default:
		}

		url := fmt.Sprintf("%s/html/fund/index.htm?o=nw&page=%d", s.cfg.BaseURL, page)
		doc, err := s.fetchDocument(ctx, url)
		if err != nil {
			return records, fmt.Errorf("fetch index page %d: %w", page, err)
		}

		summaries := parseIndexPage(doc)
		if len(summaries) == 0 {
			break
		}

		for _, sum := range summaries {
			rec, err := s.fetchDetail(ctx, sum)
			if err != nil {
				s.logger.WithFields(map[string]interface{}{
					"company": sum.CompanyName,
					"no":      sum.DetailNo,
					"error":   err.Error(),
				}).Warn("Skipping broken detail page")
				continue
			}
			records = append(records, *rec)
		}
	}

	s.logger.WithField("count", len(records)).Info("Scraped listing schedule")
	return records, nil
}

func (s *Scraper) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Referer", s.cfg.BaseURL)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	return goquery.NewDocumentFromReader(strings.NewReader(string(body)))
}

func (s *Scraper) fetchDetail(ctx context.Context, sum listingSummary) (*contracts.RawIPORecord, error) {
	url := fmt.Sprintf("%s/html/fund/?o=v&no=%s", s.cfg.BaseURL, sum.DetailNo)
	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	rec, err := parseDetailPage(doc)
	if err != nil {
		return nil, err
	}

	rec.CompanyName = sum.CompanyName
	if rec.ListingDate.IsZero() {
		rec.ListingDate = sum.ListingDate
	}
	return rec, nil
}

var detailNoRe = regexp.MustCompile(`no=(\d+)`)

// parseIndexPage extracts company rows from the schedule index table.
// 구조: 회사명 링크(no= 파라미터) | ... | 상장일
func parseIndexPage(doc *goquery.Document) []listingSummary {
	var summaries []listingSummary

	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		link := row.Find(`a[href*="o=v"]`).First()
		if link.Length() == 0 {
			return
		}

		href, _ := link.Attr("href")
		m := detailNoRe.FindStringSubmatch(href)
		if m == nil {
			return
		}

		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}

		var listed time.Time
		row.Find("td").Each(func(j int, cell *goquery.Selection) {
			if !listed.IsZero() {
				return
			}
			if d, ok := parseKoreanDate(cell.Text()); ok {
				listed = d
			}
		})

		summaries = append(summaries, listingSummary{
			DetailNo:    m[1],
			CompanyName: name,
			ListingDate: listed,
		})
	})

	return summaries
}

// parseDetailPage extracts offering terms from a detail page. The page is
// label/value table cells; labels anchor parsing, cell order does not.
func parseDetailPage(doc *goquery.Document) (*contracts.RawIPORecord, error) {
	fields := map[string]string{}

	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td, th")
		texts := make([]string, 0, cells.Length())
		cells.Each(func(j int, cell *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(cell.Text()))
		})

		// 라벨 셀 다음 셀이 값
		for j := 0; j+1 < len(texts); j += 2 {
			label := strings.TrimSpace(strings.TrimSuffix(texts[j], ":"))
			if label == "" || texts[j+1] == "" {
				continue
			}
			if _, seen := fields[label]; !seen {
				fields[label] = texts[j+1]
			}
		}
	})

	rec := &contracts.RawIPORecord{}

	if v, ok := fields["종목코드"]; ok {
		rec.Code = strings.TrimSpace(v)
	}
	if rec.Code == "" {
		return nil, fmt.Errorf("detail page has no stock code")
	}

	if v, ok := fields["상장일"]; ok {
		if d, okd := parseKoreanDate(v); okd {
			rec.ListingDate = d
		}
	}

	if v, ok := fields["희망공모가액"]; ok {
		lower, upper := parsePriceBand(v)
		rec.PriceLower, rec.PriceUpper = lower, upper
	}
	if v, ok := fields["확정공모가"]; ok {
		rec.PriceConfirmed = parseNumber(v)
	}
	if v, ok := fields["공모주식수"]; ok {
		rec.SharesOffered = int64(parseNumber(v))
	}
	if v, ok := fields["납입자본금"]; ok {
		rec.PaidInCapital = parseNumber(v)
	}
	if v, ok := fields["시가총액"]; ok {
		rec.EstimatedMarketCap = parseNumber(v)
	}
	if v, ok := fields["기관경쟁률"]; ok {
		rec.InstitutionalDemandRate = parseRatio(v)
	}
	if v, ok := fields["청약경쟁률"]; ok {
		rec.SubscriptionCompetitionRate = parseRatio(v)
	}
	if v, ok := fields["의무보유확약"]; ok {
		rec.LockupRatio = parseNumber(v)
	}
	if v, ok := fields["균등배정"]; ok {
		rec.AllocationEqualPct = parseNumber(v)
	}
	if v, ok := fields["비례배정"]; ok {
		rec.AllocationProportionalPct = parseNumber(v)
	}
	if v, ok := fields["상장방식"]; ok {
		rec.ListingMethod = v
	}
	if v, ok := fields["업종"]; ok {
		rec.Industry = v
	}
	if v, ok := fields["테마"]; ok {
		rec.Theme = v
	}

	return rec, nil
}

var numberRe = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?`)

// parseNumber extracts the first number from text like "10,000 원" or
// "1,000,000 주" or "25.5%". Missing number parses to 0.
func parseNumber(s string) float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRatio parses competition ratios like "1,234.56:1" or "850.5 : 1".
func parseRatio(s string) float64 {
	head, _, found := strings.Cut(s, ":")
	if !found {
		head = s
	}
	return parseNumber(head)
}

// parsePriceBand parses "9,000 ~ 11,000 원" into lower and upper bounds.
// 단일 가격이면 양쪽 모두 그 값이다.
func parsePriceBand(s string) (lower, upper float64) {
	matches := numberRe.FindAllString(s, 2)
	if len(matches) == 0 {
		return 0, 0
	}
	lower = parseNumber(matches[0])
	if len(matches) > 1 {
		upper = parseNumber(matches[1])
	} else {
		upper = lower
	}
	return lower, upper
}

var dateRe = regexp.MustCompile(`(\d{4})[.\-/](\d{1,2})[.\-/](\d{1,2})`)

// parseKoreanDate parses "2024.10.01", "2024-10-01" or "2024/10/1".
func parseKoreanDate(s string) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
