package collector

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseIndexPage(t *testing.T) {
	html := `
	<table>
		<tr><th>기업명</th><th>공모가</th><th>상장일</th></tr>
		<tr>
			<td><a href="/html/fund/?o=v&no=2041">에이아이웍스</a></td>
			<td>22,000</td>
			<td>2024.10.01</td>
		</tr>
		<tr>
			<td><a href="/html/fund/?o=v&no=2042">바이오셀</a></td>
			<td>15,000</td>
			<td>2024.10.15</td>
		</tr>
		<tr><td>링크 없는 행</td><td>-</td><td>-</td></tr>
	</table>`

	summaries := parseIndexPage(docFrom(t, html))
	require.Len(t, summaries, 2)

	assert.Equal(t, "2041", summaries[0].DetailNo)
	assert.Equal(t, "에이아이웍스", summaries[0].CompanyName)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), summaries[0].ListingDate)

	assert.Equal(t, "2042", summaries[1].DetailNo)
	assert.Equal(t, "바이오셀", summaries[1].CompanyName)
}

func TestParseDetailPage(t *testing.T) {
	html := `
	<table>
		<tr><td>종목코드</td><td>123456</td><td>상장일</td><td>2024.10.01</td></tr>
		<tr><td>희망공모가액</td><td>20,000 ~ 24,000 원</td><td>확정공모가</td><td>22,000 원</td></tr>
		<tr><td>공모주식수</td><td>1,000,000 주</td><td>납입자본금</td><td>50,000,000,000 원</td></tr>
		<tr><td>시가총액</td><td>220,000,000,000 원</td><td>상장방식</td><td>일반상장</td></tr>
		<tr><td>기관경쟁률</td><td>850.5:1</td><td>청약경쟁률</td><td>1,234.56 : 1</td></tr>
		<tr><td>의무보유확약</td><td>30.0%</td><td>업종</td><td>소프트웨어</td></tr>
		<tr><td>균등배정</td><td>50%</td><td>비례배정</td><td>50%</td></tr>
		<tr><td>테마</td><td>AI</td><td></td><td></td></tr>
	</table>`

	rec, err := parseDetailPage(docFrom(t, html))
	require.NoError(t, err)

	assert.Equal(t, "123456", rec.Code)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), rec.ListingDate)
	assert.Equal(t, 20000.0, rec.PriceLower)
	assert.Equal(t, 24000.0, rec.PriceUpper)
	assert.Equal(t, 22000.0, rec.PriceConfirmed)
	assert.Equal(t, int64(1_000_000), rec.SharesOffered)
	assert.Equal(t, 5e10, rec.PaidInCapital)
	assert.Equal(t, 2.2e11, rec.EstimatedMarketCap)
	assert.Equal(t, 850.5, rec.InstitutionalDemandRate)
	assert.Equal(t, 1234.56, rec.SubscriptionCompetitionRate)
	assert.Equal(t, 30.0, rec.LockupRatio)
	assert.Equal(t, 50.0, rec.AllocationEqualPct)
	assert.Equal(t, 50.0, rec.AllocationProportionalPct)
	assert.Equal(t, "일반상장", rec.ListingMethod)
	assert.Equal(t, "소프트웨어", rec.Industry)
	assert.Equal(t, "AI", rec.Theme)
}

func TestParseDetailPage_NoCode(t *testing.T) {
	html := `<table><tr><td>상장일</td><td>2024.10.01</td></tr></table>`
	_, err := parseDetailPage(docFrom(t, html))
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"KRW with comma", "10,000 원", 10000},
		{"shares", "1,000,000 주", 1_000_000},
		{"percent", "25.5%", 25.5},
		{"negative", "-3.2", -3.2},
		{"empty", "", 0},
		{"dash", "-", 0},
		{"no number", "미정", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseNumber(tt.in))
		})
	}
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, 1234.56, parseRatio("1,234.56:1"))
	assert.Equal(t, 850.5, parseRatio("850.5 : 1"))
	assert.Equal(t, 42.0, parseRatio("42"))
	assert.Equal(t, 0.0, parseRatio("미정"))
}

func TestParsePriceBand(t *testing.T) {
	lower, upper := parsePriceBand("9,000 ~ 11,000 원")
	assert.Equal(t, 9000.0, lower)
	assert.Equal(t, 11000.0, upper)

	// 단일 가격
	lower, upper = parsePriceBand("10,000 원")
	assert.Equal(t, 10000.0, lower)
	assert.Equal(t, 10000.0, upper)

	lower, upper = parsePriceBand("")
	assert.Zero(t, lower)
	assert.Zero(t, upper)
}

func TestParseKoreanDate(t *testing.T) {
	d, ok := parseKoreanDate("2024.10.01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), d)

	d, ok = parseKoreanDate(" 2024-01-02 ")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d)

	_, ok = parseKoreanDate("2024.13.01")
	assert.False(t, ok)

	_, ok = parseKoreanDate("상장일 미정")
	assert.False(t, ok)
}
