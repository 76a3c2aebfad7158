package newsfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/httputil"
	"github.com/wonny/aegis-swing/pkg/logger"
)

const maxHeadlines = 20

// Scraper reads the news table of a quote page
// ⭐ SSOT: 헤드라인 수집은 이 스크레이퍼에서만
type Scraper struct {
	http    *httputil.Client
	baseURL string
	loc     *time.Location
	logger  *logger.Logger
}

// NewScraper creates a headline scraper; page timestamps are read in loc
func NewScraper(cfg config.NewsConfig, httpClient *httputil.Client, loc *time.Location, log *logger.Logger) *Scraper {
	httpClient.WithHeader("User-Agent", "Mozilla/5.0 (compatible; aegis-swing)")
	return &Scraper{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		loc:     loc,
		logger:  log.WithField("module", "newsfeed"),
	}
}

// Headlines returns the most recent headlines for a symbol, newest first
func (s *Scraper) Headlines(ctx context.Context, symbol string) ([]contracts.Headline, error) {
	u := fmt.Sprintf("%s/quote.ashx?t=%s", s.baseURL, url.QueryEscape(symbol))
	resp, err := s.http.Get(ctx, u)
	if err != nil {
		return nil, contracts.DataUnavailable("headlines "+symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("headlines %s: %w", symbol, contracts.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, contracts.DataUnavailable("headlines "+symbol, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("headlines %s: status %d", symbol, resp.StatusCode)
	}

	headlines, err := s.parse(resp.Body, symbol)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(headlines),
	}).Debug("Fetched headlines")
	return headlines, nil
}

// parse reads rows of #news-table: 날짜 셀은 "Oct-17-26 09:15AM" 또는 같은 날이면 "09:15AM"
func (s *Scraper) parse(r io.Reader, symbol string) ([]contracts.Headline, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse headlines %s: %w", symbol, err)
	}

	var (
		out     []contracts.Headline
		lastDay string
	)
	doc.Find("#news-table tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		link := cells.Eq(1).Find("a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}

		published, day := s.parseStamp(strings.TrimSpace(cells.Eq(0).Text()), lastDay)
		lastDay = day

		href, _ := link.Attr("href")
		source := strings.Trim(strings.TrimSpace(cells.Eq(1).Find("span").Last().Text()), "()")

		out = append(out, contracts.Headline{
			Symbol:      symbol,
			Title:       title,
			Source:      source,
			URL:         s.absolute(href),
			PublishedAt: published,
		})
		return len(out) < maxHeadlines
	})
	return out, nil
}

func (s *Scraper) parseStamp(text, lastDay string) (time.Time, string) {
	fields := strings.Fields(text)
	var day, clock string
	switch len(fields) {
	case 2:
		day, clock = fields[0], fields[1]
	case 1:
		day, clock = lastDay, fields[0]
	default:
		return time.Time{}, lastDay
	}
	if strings.EqualFold(day, "Today") {
		day = time.Now().In(s.loc).Format("Jan-02-06")
	}
	t, err := time.ParseInLocation("Jan-02-06 03:04PM", day+" "+clock, s.loc)
	if err != nil {
		return time.Time{}, day
	}
	return t, day
}

func (s *Scraper) absolute(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return s.baseURL + "/" + strings.TrimLeft(href, "/")
}
